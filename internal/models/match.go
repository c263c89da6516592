package models

import "time"

// Currency 对局货币类型
type Currency string

const (
	CurrencyPoints Currency = "points" // 积分
	CurrencyNative Currency = "native" // 原生代币
)

// Valid 是否为已知货币
func (c Currency) Valid() bool {
	return c == CurrencyPoints || c == CurrencyNative
}

// MatchStatus 对局状态
type MatchStatus string

const (
	MatchWaitingForPlayer MatchStatus = "waiting_for_player"
	MatchInProgress       MatchStatus = "in_progress"
	MatchDelegated        MatchStatus = "delegated"
	MatchFinished         MatchStatus = "finished"
	MatchAbandoned        MatchStatus = "abandoned"
)

// FinishReason 结束原因
type FinishReason string

const (
	FinishThreshold  FinishReason = "threshold"  // 达到胜局数
	FinishForfeit    FinishReason = "forfeit"    // 主动退出
	FinishDisconnect FinishReason = "disconnect" // 断线超时
	FinishAbandoned  FinishReason = "abandoned"  // 放弃，全额退款
)

// Match 对局记录（账本侧权威记录）
//
// 承诺在提交后、揭示前保存在 *Commitment 字段，揭示后的招式保存在 *Move 字段，
// 双方都揭示后即结算本回合并清空两组字段。
type Match struct {
	BaseModel
	MatchID             string       `gorm:"uniqueIndex;size:32;not null" json:"match_id"`
	PlayerOne           string       `gorm:"size:64;not null;index" json:"player_one"`
	PlayerTwo           *string      `gorm:"size:64;index" json:"player_two,omitempty"`
	Stake               int64        `gorm:"not null" json:"stake"`
	Currency            Currency     `gorm:"size:16;not null" json:"currency"`
	RoundsToWin         int          `gorm:"not null" json:"rounds_to_win"`
	CurrentRound        int          `gorm:"not null;default:0" json:"current_round"`
	PlayerOneWins       int          `gorm:"not null;default:0" json:"player_one_wins"`
	PlayerTwoWins       int          `gorm:"not null;default:0" json:"player_two_wins"`
	PlayerOneCommitment *string      `gorm:"size:64" json:"player_one_commitment,omitempty"`
	PlayerTwoCommitment *string      `gorm:"size:64" json:"player_two_commitment,omitempty"`
	PlayerOneMove       *int         `json:"-"`
	PlayerTwoMove       *int         `json:"-"`
	Status              MatchStatus  `gorm:"size:32;not null;index" json:"status"`
	Winner              *string      `gorm:"size:64" json:"winner,omitempty"`
	Authority           string       `gorm:"size:64" json:"authority,omitempty"`
	FinishReason        FinishReason `gorm:"size:16" json:"finish_reason,omitempty"`
	Settled             bool         `gorm:"not null;default:false" json:"settled"`
	SettledAt           *time.Time   `json:"settled_at,omitempty"`
}

// TableName 表名
func (Match) TableName() string {
	return "matches"
}

// IsParticipant 是否为对局参与者
func (m *Match) IsParticipant(identity string) bool {
	if identity == "" {
		return false
	}
	return m.PlayerOne == identity || (m.PlayerTwo != nil && *m.PlayerTwo == identity)
}

// Opponent 返回对手身份
func (m *Match) Opponent(identity string) string {
	if m.PlayerOne == identity {
		if m.PlayerTwo != nil {
			return *m.PlayerTwo
		}
		return ""
	}
	return m.PlayerOne
}

// IsTerminal 是否处于终态
func (m *Match) IsTerminal() bool {
	return m.Status == MatchFinished || (m.Status == MatchAbandoned && m.Settled)
}

// MatchReveal 揭示记录，同一对局内同一玩家的 nonce 不可重复
type MatchReveal struct {
	BaseModel
	MatchID  string `gorm:"size:32;not null;uniqueIndex:idx_reveal_nonce,priority:1;index" json:"match_id"`
	Identity string `gorm:"size:64;not null;uniqueIndex:idx_reveal_nonce,priority:2" json:"identity"`
	Nonce    string `gorm:"size:16;not null;uniqueIndex:idx_reveal_nonce,priority:3" json:"nonce"`
	Round    int    `gorm:"not null" json:"round"`
	Move     int    `gorm:"not null" json:"move"`
}

// TableName 表名
func (MatchReveal) TableName() string {
	return "match_reveals"
}
