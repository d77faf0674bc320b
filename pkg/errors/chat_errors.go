package errors

var (
	ErrSelfRequest      = InvalidArg("cannot add yourself as a friend")
	ErrInvalidUserID    = InvalidArg("invalid user id")
	ErrInvalidChatID    = InvalidArg("invalid chat id")
	ErrInvalidPayload   = InvalidPayload("invalid request payload")
	ErrUnauthorized     = Unauthorized("unauthorized")
	ErrUserNotFound     = New(CodeUserNotFound, "user does not exist")
	ErrAlreadyFriends   = New(CodeAlreadyFriends, "already friends")
	ErrDuplicateRequest = New(CodeDuplicateRequest, "friend request already sent")
	ErrNoPendingRequest = New(CodeNoPendingRequest, "no pending friend request")
	ErrNotFriends       = New(CodeNotFriends, "not friends")
	ErrStoreUnavailable = New(CodeStoreUnavailable, "store unavailable")
)
