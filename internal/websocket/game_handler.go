package websocket

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/wfunc/rps-arena/internal/errors"
	"github.com/wfunc/rps-arena/internal/game"
	"github.com/wfunc/rps-arena/internal/game/rps"
	"github.com/wfunc/rps-arena/internal/logger"
	"github.com/wfunc/rps-arena/internal/models"
)

const commandTimeout = 10 * time.Second

// GameMessageHandler 将客户端命令转交给对局协调者
type GameMessageHandler struct {
	hub         *Hub
	coordinator *game.Coordinator
	logger      *zap.Logger
}

// NewGameMessageHandler 创建游戏消息处理器
func NewGameMessageHandler(hub *Hub, coordinator *game.Coordinator, logger *zap.Logger) *GameMessageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GameMessageHandler{
		hub:         hub,
		coordinator: coordinator,
		logger:      logger,
	}
}

// ServerStatsPayload 服务端统计
type ServerStatsPayload struct {
	game.Stats
	Connections int `json:"connections"`
}

type matchRef struct {
	MatchID string `json:"match_id"`
}

type moveRequest struct {
	Move string `json:"move"`
}

// OnConnect 连接建立后恢复该身份的会话绑定
func (h *GameMessageHandler) OnConnect(client *Client) {
	if _, ok := h.coordinator.Rebind(client.ID, client.Identity); ok {
		h.logger.Info("玩家重新连接到会话",
			zap.String("client_id", client.ID),
			zap.String("identity", client.Identity))
	}
}

// OnDisconnect 连接断开
func (h *GameMessageHandler) OnDisconnect(client *Client) {
	h.coordinator.Disconnect(client.ID)
}

// HandleClientMessage 处理客户端消息
func (h *GameMessageHandler) HandleClientMessage(client *Client, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Warn("解析消息失败",
			zap.String("client_id", client.ID),
			zap.Error(err))
		h.sendError(client, "", apperrors.Wrap(err, apperrors.ErrMessageFormat))
		return
	}
	if msg.Type == "" {
		h.sendError(client, "", apperrors.New(apperrors.ErrMessageFormat, "消息类型不能为空"))
		return
	}

	logger.LogWebSocketMessage("in", msg.Type, msg.Data)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var err error
	switch msg.Type {
	case MessageTypePing:
		h.hub.Send(client.ID, game.NewEvent(MessageTypePong, "", nil))

	case MessageTypePong:

	case game.CmdCreateSession:
		err = h.handleCreate(ctx, client, &msg)

	case game.CmdJoinSession:
		err = h.handleJoin(ctx, client, &msg)

	case game.CmdSubmitMove:
		err = h.handleMove(client, &msg)

	case game.CmdLeaveSession:
		err = h.coordinator.Leave(client.Identity)

	case game.CmdQueryState:
		err = h.handleQuery(client, &msg)

	case game.CmdGetStats:
		h.hub.Send(client.ID, game.NewEvent(game.EventServerStats, "", ServerStatsPayload{
			Stats:       h.coordinator.Stats(),
			Connections: h.hub.GetOnlineCount(),
		}))

	case game.CmdStakeCreated:
		err = h.handleStakeCreated(ctx, client, &msg)

	case game.CmdStakeJoined:
		err = h.handleStakeJoined(ctx, client, &msg)

	default:
		err = apperrors.New(apperrors.ErrMessageFormat, "不支持的消息类型: "+msg.Type)
	}

	if err != nil {
		h.logger.Debug("命令被拒绝",
			zap.String("client_id", client.ID),
			zap.String("type", msg.Type),
			zap.Error(err))
		h.sendError(client, msg.MatchID, err)
	}
}

func (h *GameMessageHandler) handleCreate(ctx context.Context, client *Client, msg *Message) error {
	var req game.CreateSessionRequest
	if err := decodeData(msg, &req); err != nil {
		return err
	}
	if req.MatchID == "" {
		req.MatchID = msg.MatchID
	}
	_, err := h.coordinator.CreateSession(ctx, client.ID, client.Identity, req)
	return err
}

func (h *GameMessageHandler) handleJoin(ctx context.Context, client *Client, msg *Message) error {
	matchID, err := matchIDOf(msg)
	if err != nil {
		return err
	}
	_, err = h.coordinator.JoinSession(ctx, client.ID, client.Identity, matchID)
	return err
}

func (h *GameMessageHandler) handleMove(client *Client, msg *Message) error {
	var req moveRequest
	if err := decodeData(msg, &req); err != nil {
		return err
	}
	move, err := rps.ParseMove(req.Move)
	if err != nil {
		return err
	}
	return h.coordinator.SubmitMove(client.Identity, move)
}

func (h *GameMessageHandler) handleQuery(client *Client, msg *Message) error {
	var ref matchRef
	if err := decodeData(msg, &ref); err != nil {
		return err
	}
	if ref.MatchID == "" {
		ref.MatchID = msg.MatchID
	}
	view, err := h.coordinator.QueryState(client.Identity, ref.MatchID)
	if err != nil {
		return err
	}
	h.hub.Send(client.ID, game.NewEvent(game.EventSessionState, view.MatchID, view))
	return nil
}

// handleStakeCreated 创建者已在账本押注；尚无会话时先绑定
func (h *GameMessageHandler) handleStakeCreated(ctx context.Context, client *Client, msg *Message) error {
	matchID, err := matchIDOf(msg)
	if err != nil {
		return err
	}
	if _, err := h.coordinator.QueryState(client.Identity, matchID); apperrors.Is(err, apperrors.ErrNotFound) {
		_, err = h.coordinator.CreateSession(ctx, client.ID, client.Identity, game.CreateSessionRequest{
			GameType: game.GameTypeRPS,
			MatchID:  matchID,
			Currency: models.CurrencyNative,
		})
		if err != nil {
			return err
		}
	}
	_, err = h.coordinator.AcknowledgeStake(ctx, client.Identity, matchID)
	return err
}

// handleStakeJoined 加入者已在账本押注；尚未入座时先加入会话
func (h *GameMessageHandler) handleStakeJoined(ctx context.Context, client *Client, msg *Message) error {
	matchID, err := matchIDOf(msg)
	if err != nil {
		return err
	}
	view, err := h.coordinator.QueryState(client.Identity, matchID)
	if err != nil {
		return err
	}
	if !seated(view, client.Identity) {
		if _, err := h.coordinator.JoinSession(ctx, client.ID, client.Identity, matchID); err != nil {
			return err
		}
	}
	_, err = h.coordinator.AcknowledgeStake(ctx, client.Identity, matchID)
	return err
}

func (h *GameMessageHandler) sendError(client *Client, matchID string, err error) {
	h.hub.Send(client.ID, game.NewEvent(game.EventError, matchID, errorPayload(err)))
}

func errorPayload(err error) game.ErrorPayload {
	return game.ErrorPayload{
		Code:    int(apperrors.GetCode(err)),
		Kind:    string(apperrors.KindOf(err)),
		Message: err.Error(),
	}
}

func decodeData(msg *Message, v interface{}) error {
	if len(msg.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return apperrors.Wrap(err, apperrors.ErrMessageFormat)
	}
	return nil
}

func matchIDOf(msg *Message) (string, error) {
	var ref matchRef
	if err := decodeData(msg, &ref); err != nil {
		return "", err
	}
	if ref.MatchID == "" {
		ref.MatchID = msg.MatchID
	}
	if ref.MatchID == "" {
		return "", apperrors.New(apperrors.ErrInvalidParam, "缺少 match_id")
	}
	return ref.MatchID, nil
}

func seated(view *game.SessionView, identity string) bool {
	for _, p := range view.Players {
		if p.Identity == identity {
			return true
		}
	}
	return false
}
