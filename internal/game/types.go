package game

import (
	"time"

	"github.com/wfunc/rps-arena/internal/config"
	"github.com/wfunc/rps-arena/internal/ledger"
	"github.com/wfunc/rps-arena/internal/models"
)

// Timings 实时对局的各项时长，可热更新，对之后开始的回合生效
type Timings struct {
	RoundTimeout          time.Duration
	FirstRoundTimeout     time.Duration
	CountdownInterval     time.Duration
	DisconnectGrace       time.Duration
	EvictDelay            time.Duration
	FirstRoundDelay       time.Duration
	StakedFirstRoundDelay time.Duration
}

// TimingsFromConfig 从配置读取时长
func TimingsFromConfig(cfg config.GameConfig) Timings {
	return Timings{
		RoundTimeout:          cfg.RoundTimeout,
		FirstRoundTimeout:     cfg.FirstRoundTimeout,
		CountdownInterval:     cfg.CountdownInterval,
		DisconnectGrace:       cfg.DisconnectGrace,
		EvictDelay:            cfg.EvictDelay,
		FirstRoundDelay:       cfg.FirstRoundDelay,
		StakedFirstRoundDelay: cfg.StakedFirstRoundDelay,
	}
}

// CreateSessionRequest 创建会话请求
//
// 积分对局由协调者代为在账本创建；原生代币对局需先在账本创建，再携带 MatchID 绑定。
type CreateSessionRequest struct {
	GameType    string          `json:"game_type"`
	MatchID     string          `json:"match_id"`
	Stake       int64           `json:"stake"`
	Currency    models.Currency `json:"currency"`
	RoundsToWin int             `json:"rounds_to_win"`
}

// PlayerView 玩家视图
type PlayerView struct {
	Identity  string `json:"identity"`
	Wins      int    `json:"wins"`
	Connected bool   `json:"connected"`
	Ready     bool   `json:"ready"`
	HasMoved  bool   `json:"has_moved"`
}

// SessionView 会话快照
type SessionView struct {
	MatchID     string              `json:"match_id"`
	Status      SessionStatus       `json:"status"`
	Currency    models.Currency     `json:"currency"`
	Stake       int64               `json:"stake"`
	RoundsToWin int                 `json:"rounds_to_win"`
	Round       int                 `json:"round"`
	Players     []PlayerView        `json:"players"`
	Winner      string              `json:"winner,omitempty"`
	Reason      models.FinishReason `json:"reason,omitempty"`
	Payout      *ledger.Payout      `json:"payout,omitempty"`
	Deadline    *time.Time          `json:"deadline,omitempty"`
	History     []RoundRecord       `json:"history,omitempty"`
}

// RoundRecord 一回合的记录
type RoundRecord struct {
	Round        int      `json:"round"`
	PlayerOne    string   `json:"player_one_move"`
	PlayerTwo    string   `json:"player_two_move"`
	Winner       string   `json:"winner,omitempty"`
	AutoAssigned []string `json:"auto_assigned,omitempty"`
}

// Stats 协调者统计
type Stats struct {
	Sessions           int   `json:"sessions"`
	Waiting            int   `json:"waiting"`
	Active             int   `json:"active"`
	Finished           int   `json:"finished"`
	ConnectedPlayers   int   `json:"connected_players"`
	PendingReports     int   `json:"pending_reports"`
	SettledTotal       int64 `json:"settled_total"`
	SettlementFailures int64 `json:"settlement_failures"`
}
