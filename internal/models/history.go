package models

import "time"

// MatchHistory 已结束对局的归档
type MatchHistory struct {
	BaseModel
	MatchID       string       `gorm:"uniqueIndex;size:32;not null" json:"match_id"`
	PlayerOne     string       `gorm:"size:64;index" json:"player_one"`
	PlayerTwo     string       `gorm:"size:64;index" json:"player_two"`
	Winner        string       `gorm:"size:64" json:"winner"`
	PlayerOneWins int          `json:"player_one_wins"`
	PlayerTwoWins int          `json:"player_two_wins"`
	Rounds        int          `json:"rounds"`
	Currency      Currency     `gorm:"size:16" json:"currency"`
	Stake         int64        `json:"stake"`
	TotalPot      int64        `json:"total_pot"`
	WinnerPayout  int64        `json:"winner_payout"`
	PlatformFee   int64        `json:"platform_fee"`
	Reason        FinishReason `gorm:"size:16" json:"reason"`
	Extra         JSONMap      `gorm:"type:text" json:"extra,omitempty"`
	FinishedAt    time.Time    `json:"finished_at"`
}

// TableName 表名
func (MatchHistory) TableName() string {
	return "match_histories"
}
