package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wfunc/rps-arena/internal/config"
	"github.com/wfunc/rps-arena/internal/game"
)

// MessageHandler 处理客户端上行消息及连接生命周期
type MessageHandler interface {
	OnConnect(c *Client)
	HandleClientMessage(c *Client, data []byte)
	OnDisconnect(c *Client)
}

// Hub WebSocket连接管理中心
type Hub struct {
	// 客户端连接池
	clients   map[string]*Client
	clientsMu sync.RWMutex

	// 身份到客户端的映射
	identityClients map[string][]*Client
	identityMu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	quitOnce   sync.Once

	handler MessageHandler
	options Options
	logger  *zap.Logger
}

// Message 上行消息
type Message struct {
	Type      string          `json:"type"`
	MatchID   string          `json:"match_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// 系统消息
const (
	MessageTypeConnected = "connected"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
)

// Options 连接参数
type Options struct {
	MaxMessageSize int64
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	SendBufferSize int
}

// DefaultOptions 默认连接参数
func DefaultOptions() Options {
	return Options{
		MaxMessageSize: 8192,
		PingInterval:   30 * time.Second,
		PongTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		SendBufferSize: 256,
	}
}

// OptionsFromConfig 从配置读取连接参数，未设置的项在 NewHub 中取默认值
func OptionsFromConfig(cfg config.WebSocketConfig) Options {
	return Options{
		MaxMessageSize: cfg.MaxMessageSize,
		PingInterval:   cfg.PingInterval,
		PongTimeout:    cfg.PongTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		SendBufferSize: cfg.SendBufferSize,
	}
}

// NewHub 创建Hub
func NewHub(handler MessageHandler, options Options, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultOptions()
	if options.MaxMessageSize <= 0 {
		options.MaxMessageSize = defaults.MaxMessageSize
	}
	if options.PingInterval <= 0 {
		options.PingInterval = defaults.PingInterval
	}
	if options.PongTimeout <= options.PingInterval {
		options.PongTimeout = options.PingInterval * 2
	}
	if options.WriteTimeout <= 0 {
		options.WriteTimeout = defaults.WriteTimeout
	}
	if options.SendBufferSize <= 0 {
		options.SendBufferSize = defaults.SendBufferSize
	}
	return &Hub{
		clients:         make(map[string]*Client),
		identityClients: make(map[string][]*Client),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
		quit:            make(chan struct{}),
		handler:         handler,
		options:         options,
		logger:          logger,
	}
}

// SetHandler 设置消息处理器，需在 Run 之前调用
func (h *Hub) SetHandler(handler MessageHandler) {
	h.handler = handler
}

// Run 运行Hub，直到 Shutdown
func (h *Hub) Run() {
	ticker := time.NewTicker(h.options.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ticker.C:
			h.heartbeat()

		case <-h.quit:
			h.closeAll()
			return
		}
	}
}

// Shutdown 关闭所有连接并停止 Run
func (h *Hub) Shutdown() {
	h.quitOnce.Do(func() { close(h.quit) })
}

func (h *Hub) registerClient(client *Client) {
	h.clientsMu.Lock()
	h.clients[client.ID] = client
	h.clientsMu.Unlock()

	h.identityMu.Lock()
	h.identityClients[client.Identity] = append(h.identityClients[client.Identity], client)
	h.identityMu.Unlock()

	h.logger.Info("WebSocket客户端连接",
		zap.String("client_id", client.ID),
		zap.String("identity", client.Identity))

	h.sendEvent(client.ID, game.NewEvent(MessageTypeConnected, "", map[string]string{
		"client_id": client.ID,
		"identity":  client.Identity,
	}))
	if h.handler != nil {
		h.handler.OnConnect(client)
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.clientsMu.Lock()
	_, ok := h.clients[client.ID]
	if ok {
		delete(h.clients, client.ID)
		close(client.send)
	}
	h.clientsMu.Unlock()
	if !ok {
		return
	}

	h.identityMu.Lock()
	clients := h.identityClients[client.Identity]
	for i, c := range clients {
		if c.ID == client.ID {
			h.identityClients[client.Identity] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(h.identityClients[client.Identity]) == 0 {
		delete(h.identityClients, client.Identity)
	}
	h.identityMu.Unlock()

	h.logger.Info("WebSocket客户端断开",
		zap.String("client_id", client.ID),
		zap.String("identity", client.Identity))

	if h.handler != nil {
		h.handler.OnDisconnect(client)
	}
}

func (h *Hub) closeAll() {
	h.clientsMu.Lock()
	for id, client := range h.clients {
		delete(h.clients, id)
		close(client.send)
	}
	h.clientsMu.Unlock()

	h.identityMu.Lock()
	h.identityClients = make(map[string][]*Client)
	h.identityMu.Unlock()
}

func (h *Hub) heartbeat() {
	data, err := json.Marshal(game.NewEvent(MessageTypePing, "", nil))
	if err != nil {
		return
	}
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("客户端发送缓冲区满", zap.String("client_id", client.ID))
		}
	}
}

// Send 实现 game.Notifier，不阻塞调用方
func (h *Hub) Send(connID string, event *game.Event) {
	if err := h.sendEvent(connID, event); err != nil {
		h.logger.Debug("事件未送达",
			zap.String("client_id", connID),
			zap.String("type", event.Type),
			zap.Error(err))
	}
}

func (h *Hub) sendEvent(connID string, event *game.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	client, ok := h.clients[connID]
	if !ok {
		return ErrClientNotFound
	}
	select {
	case client.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// SendToIdentity 发送给某身份的全部连接
func (h *Hub) SendToIdentity(identity string, event *game.Event) error {
	h.identityMu.RLock()
	clients := append([]*Client(nil), h.identityClients[identity]...)
	h.identityMu.RUnlock()

	if len(clients) == 0 {
		return ErrUserNotConnected
	}
	for _, client := range clients {
		h.Send(client.ID, event)
	}
	return nil
}

// GetOnlineCount 获取在线连接数
func (h *Hub) GetOnlineCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Register 注册客户端
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}
