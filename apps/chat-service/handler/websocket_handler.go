package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"

	"goim-chat/apps/chat-service/service"
	apperrors "goim-chat/pkg/errors"
	"goim-chat/pkg/httpx"
	"goim-chat/pkg/logger"
	"goim-chat/pkg/middleware"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// 客户端帧动作
const (
	actionSubscribe   = "subscribe"
	actionUnsubscribe = "unsubscribe"
)

// 服务端回执事件
const (
	eventSubscriptionSucceeded = "subscription_succeeded"
	eventSubscriptionError     = "subscription_error"
	eventUnsubscribed          = "unsubscribed"
)

// Subscriber 总线订阅（redis.RedisClient）
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *goredis.PubSub
}

type clientFrame struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

type serverFrame struct {
	Event   string `json:"event"`
	Channel string `json:"channel"`
	Error   string `json:"error,omitempty"`
}

// WSHandler WebSocket协议处理器：按频道订阅总线并把事件原样推给客户端
type WSHandler struct {
	svc      *service.Service
	bus      Subscriber
	log      logger.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler 创建WebSocket处理器
func NewWSHandler(svc *service.Service, bus Subscriber, log logger.Logger) *WSHandler {
	return &WSHandler{
		svc: svc,
		bus: bus,
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (ws *WSHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1/realtime")
	{
		api.GET("/ws", ws.HandleConnection) // WebSocket长连接
	}
}

// wsConn 单个连接，写操作串行化
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

func (c *wsConn) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, data)
}

// HandleConnection 处理WebSocket连接。认证由 GinAuth 完成（支持 ?token=）
func (ws *WSHandler) HandleConnection(c *gin.Context) {
	userID, ok := middleware.CallerID(c)
	if !ok {
		httpx.WriteError(c, apperrors.ErrUnauthorized)
		return
	}

	conn, err := ws.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		ws.log.Error(c.Request.Context(), "WebSocket upgrade failed", logger.F("error", err.Error()))
		return
	}
	defer conn.Close()

	// 连接生命周期不跟随HTTP请求的超时
	ctx, cancel := context.WithCancel(logger.WithUserID(context.Background(), userID))
	defer cancel()

	client := &wsConn{conn: conn}
	pubsub := ws.bus.Subscribe(ctx)
	defer pubsub.Close()

	ws.log.Info(ctx, "WebSocket connected", logger.F("userID", userID))

	var forwardOnce sync.Once
	startForward := func() {
		forwardOnce.Do(func() { go ws.forward(ctx, client, pubsub) })
	}
	go ws.keepalive(ctx, client)

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	subscribed := make(map[string]struct{})
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.log.Warn(ctx, "WebSocket read failed", logger.F("error", err.Error()))
			}
			break
		}

		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Channel == "" {
			_ = client.writeJSON(&serverFrame{Event: eventSubscriptionError, Channel: frame.Channel, Error: apperrors.ErrInvalidPayload.Error()})
			continue
		}

		switch frame.Action {
		case actionSubscribe:
			if err := ws.subscribe(ctx, pubsub, userID, frame.Channel, subscribed); err != nil {
				_ = client.writeJSON(&serverFrame{Event: eventSubscriptionError, Channel: frame.Channel, Error: err.Error()})
				continue
			}
			startForward()
			_ = client.writeJSON(&serverFrame{Event: eventSubscriptionSucceeded, Channel: frame.Channel})
		case actionUnsubscribe:
			if _, ok := subscribed[frame.Channel]; ok {
				if err := pubsub.Unsubscribe(ctx, frame.Channel); err != nil {
					ws.log.Warn(ctx, "Unsubscribe failed", logger.F("channel", frame.Channel), logger.F("error", err.Error()))
				}
				delete(subscribed, frame.Channel)
			}
			_ = client.writeJSON(&serverFrame{Event: eventUnsubscribed, Channel: frame.Channel})
		default:
			_ = client.writeJSON(&serverFrame{Event: eventSubscriptionError, Channel: frame.Channel, Error: "unknown action"})
		}
	}

	ws.log.Info(ctx, "WebSocket disconnected", logger.F("userID", userID), logger.F("channels", len(subscribed)))
}

// subscribe 私有频道先过授权，再订阅总线
func (ws *WSHandler) subscribe(ctx context.Context, pubsub *goredis.PubSub, userID, channel string, subscribed map[string]struct{}) error {
	if _, ok := subscribed[channel]; ok {
		return nil
	}
	if err := ws.svc.Authorize(ctx, userID, channel); err != nil {
		return err
	}
	if err := pubsub.Subscribe(ctx, channel); err != nil {
		ws.log.Error(ctx, "Bus subscribe failed", logger.F("channel", channel), logger.F("error", err.Error()))
		return apperrors.StoreUnavailable("subscribe "+channel, err)
	}
	subscribed[channel] = struct{}{}
	return nil
}

// forward 总线消息原样推送给客户端，直到订阅关闭
func (ws *WSHandler) forward(ctx context.Context, client *wsConn, pubsub *goredis.PubSub) {
	for msg := range pubsub.Channel() {
		if err := client.write(websocket.TextMessage, []byte(msg.Payload)); err != nil {
			ws.log.Warn(ctx, "WebSocket push failed", logger.F("channel", msg.Channel), logger.F("error", err.Error()))
			return
		}
	}
}

func (ws *WSHandler) keepalive(ctx context.Context, client *wsConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
