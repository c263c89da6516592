package models

// Account 原生代币账户
type Account struct {
	BaseModel
	Owner   string `gorm:"uniqueIndex;size:80;not null" json:"owner"`
	Balance int64  `gorm:"not null;default:0" json:"balance"`
}

// TableName 表名
func (Account) TableName() string {
	return "accounts"
}

// EntryKind 流水类型
type EntryKind string

const (
	EntryDeposit  EntryKind = "deposit"  // 充值
	EntryEscrow   EntryKind = "escrow"   // 押注入托管
	EntryPayout   EntryKind = "payout"   // 赢家派奖
	EntryFee      EntryKind = "fee"      // 平台手续费
	EntryReferral EntryKind = "referral" // 推荐佣金
	EntryRefund   EntryKind = "refund"   // 退款
	EntryBonus    EntryKind = "bonus"    // 奖励积分
	EntryGrant    EntryKind = "grant"    // 初始积分
)

// LedgerEntry 资金流水，只追加
type LedgerEntry struct {
	BaseModel
	EntryNo  string    `gorm:"uniqueIndex;size:64;not null" json:"entry_no"`
	MatchID  string    `gorm:"size:32;index" json:"match_id,omitempty"`
	Kind     EntryKind `gorm:"size:16;not null;index" json:"kind"`
	Currency Currency  `gorm:"size:16;not null" json:"currency"`
	From     string    `gorm:"size:80" json:"from,omitempty"`
	To       string    `gorm:"size:80" json:"to,omitempty"`
	Amount   int64     `gorm:"not null" json:"amount"`
	Memo     string    `gorm:"size:255" json:"memo,omitempty"`
}

// TableName 表名
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
