package errors

// Code 错误码
type Code string

const (
	CodeUnknown          Code = "UNKNOWN"
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeInvalidPayload   Code = "INVALID_PAYLOAD"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeUserNotFound     Code = "USER_NOT_FOUND"
	CodeAlreadyFriends   Code = "ALREADY_FRIENDS"
	CodeDuplicateRequest Code = "DUPLICATE_REQUEST"
	CodeNoPendingRequest Code = "NO_PENDING_REQUEST"
	CodeNotFriends       Code = "NOT_FRIENDS"
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
)

// IsDomain 是否为预期内的业务失败（不重试、不按错误记录）
func (c Code) IsDomain() bool {
	switch c {
	case CodeAlreadyFriends, CodeDuplicateRequest, CodeNoPendingRequest, CodeNotFriends, CodeUserNotFound:
		return true
	}
	return false
}
