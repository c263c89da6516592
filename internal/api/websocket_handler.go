package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wfunc/rps-arena/internal/config"
	ws "github.com/wfunc/rps-arena/internal/websocket"
)

// WebSocketHandler WebSocket处理器
type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(hub *ws.Hub, cfg config.WebSocketConfig, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    cfg.ReadBufferSize,
			WriteBufferSize:   cfg.WriteBufferSize,
			EnableCompression: cfg.EnableCompression,
			CheckOrigin:       originChecker(cfg.AllowedOrigins),
		},
		logger: logger,
	}
}

// originChecker 未配置白名单时放行所有来源
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// GameWebSocket 实时对局连接，身份取自令牌
// @Summary 实时对局 WebSocket
// @Tags Realtime
// @Param token query string false "身份令牌（无法设置请求头时使用）"
// @Router /ws [get]
func (h *WebSocketHandler) GameWebSocket(c *gin.Context) {
	identity, ok := signer(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket升级失败",
			zap.String("identity", identity),
			zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, identity)
	client.Serve()

	h.logger.Info("WebSocket连接建立",
		zap.String("client_id", client.ID),
		zap.String("identity", identity),
		zap.String("ip", c.ClientIP()))
}
