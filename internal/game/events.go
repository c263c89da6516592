package game

import (
	"time"

	"github.com/wfunc/rps-arena/internal/game/rps"
	"github.com/wfunc/rps-arena/internal/ledger"
	"github.com/wfunc/rps-arena/internal/models"
)

// 下行事件
const (
	EventSessionCreated         = "session_created"
	EventParticipantJoined      = "participant_joined"
	EventSessionStarted         = "session_started"
	EventRoundStarted           = "round_started"
	EventMoveAccepted           = "move_accepted"
	EventOpponentMoved          = "opponent_moved"
	EventRoundResolved          = "round_resolved"
	EventCountdownTick          = "countdown_tick"
	EventSessionFinished        = "session_finished"
	EventParticipantDisconnect  = "participant_disconnected"
	EventParticipantReconnected = "participant_reconnected"
	EventParticipantLeft        = "participant_left"
	EventSessionState           = "session_state"
	EventServerStats            = "server_stats"
	EventError                  = "error"
)

// 上行事件
const (
	CmdCreateSession = "create_session"
	CmdJoinSession   = "join_session"
	CmdSubmitMove    = "submit_move"
	CmdLeaveSession  = "leave_session"
	CmdQueryState    = "query_state"
	CmdGetStats      = "get_stats"
	CmdStakeCreated  = "onchain_created"
	CmdStakeJoined   = "onchain_joined"
)

// Event 发往客户端的事件
type Event struct {
	Type      string      `json:"type"`
	MatchID   string      `json:"match_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// NewEvent 创建事件
func NewEvent(eventType, matchID string, data interface{}) *Event {
	return &Event{
		Type:      eventType,
		MatchID:   matchID,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

// JoinedPayload 玩家加入
type JoinedPayload struct {
	Identity string       `json:"identity"`
	Players  []PlayerView `json:"players"`
}

// StartedPayload 对局开始
type StartedPayload struct {
	Round       int          `json:"round"`
	RoundsToWin int          `json:"rounds_to_win"`
	TimeoutMs   int64        `json:"timeout_ms"`
	Players     []PlayerView `json:"players"`
}

// RoundPayload 回合开始、出招确认、对手已出招
type RoundPayload struct {
	Round     int   `json:"round"`
	TimeoutMs int64 `json:"timeout_ms,omitempty"`
}

// TickPayload 倒计时
type TickPayload struct {
	Round     int `json:"round"`
	Remaining int `json:"remaining"`
}

// RoundResolvedPayload 回合结果，Winner 为空表示平局
type RoundResolvedPayload struct {
	Round        int                 `json:"round"`
	Moves        map[string]rps.Move `json:"moves"`
	Winner       string              `json:"winner,omitempty"`
	Scores       map[string]int      `json:"scores"`
	AutoAssigned []string            `json:"auto_assigned,omitempty"`
}

// FinishedPayload 对局结束
type FinishedPayload struct {
	Winner      string              `json:"winner,omitempty"`
	FinalScores map[string]int      `json:"final_scores"`
	Payout      *ledger.Payout      `json:"payout,omitempty"`
	Reason      models.FinishReason `json:"reason"`
}

// PresencePayload 断线、重连、离开
type PresencePayload struct {
	Identity string `json:"identity"`
	GraceMs  int64  `json:"grace_ms,omitempty"`
}

// ErrorPayload 错误
type ErrorPayload struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
