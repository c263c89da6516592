package models

// Profile 玩家档案（账本侧权威记录）
type Profile struct {
	BaseModel
	Identity          string  `gorm:"uniqueIndex;size:64;not null" json:"identity"`
	PointsBalance     int64   `gorm:"not null;default:0" json:"points_balance"`
	GamesPlayed       int64   `gorm:"not null;default:0" json:"games_played"`
	Wins              int64   `gorm:"not null;default:0" json:"wins"`
	Losses            int64   `gorm:"not null;default:0" json:"losses"`
	TotalPointsEarned int64   `gorm:"not null;default:0" json:"total_points_earned"`
	ReferralCode      string  `gorm:"uniqueIndex;size:8;not null" json:"referral_code"`
	ReferredBy        *string `gorm:"size:64" json:"referred_by,omitempty"`
	ReferralCount     int64   `gorm:"not null;default:0" json:"referral_count"`
	ReferralEarnings  int64   `gorm:"not null;default:0" json:"referral_earnings"`
}

// TableName 表名
func (Profile) TableName() string {
	return "profiles"
}
