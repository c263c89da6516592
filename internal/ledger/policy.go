package ledger

import (
	"math"

	"github.com/wfunc/rps-arena/internal/config"
)

const bpsDenominator = 10000

// MaxStake 单方押注上限，保证奖池乘以费率不溢出
const MaxStake = math.MaxInt64 / 2 / bpsDenominator

// Policy 账本规则
type Policy struct {
	InitialPoints       int64
	PlatformFeeBps      int64
	ReferralBps         int64
	NativeWinBonus      int64
	MaxMatchIDLen       int
	MaxRoundsToWin      int
	CoordinatorIdentity string
	TreasuryIdentity    string
}

// DefaultPolicy 默认规则：初始 300 积分，平台抽成 5%
func DefaultPolicy() Policy {
	return PolicyFromConfig(config.Default().Ledger)
}

// PolicyFromConfig 从配置构建规则
func PolicyFromConfig(cfg config.LedgerConfig) Policy {
	return Policy{
		InitialPoints:       cfg.InitialPoints,
		PlatformFeeBps:      cfg.PlatformFeeBps,
		ReferralBps:         cfg.ReferralBps,
		NativeWinBonus:      cfg.NativeWinBonus,
		MaxMatchIDLen:       cfg.MaxMatchIDLen,
		MaxRoundsToWin:      cfg.MaxRoundsToWin,
		CoordinatorIdentity: cfg.CoordinatorIdentity,
		TreasuryIdentity:    cfg.TreasuryIdentity,
	}
}

// Payout 结算金额
type Payout struct {
	TotalPot     int64 `json:"total_pot"`
	WinnerPayout int64 `json:"winner_payout"`
	PlatformFee  int64 `json:"platform_fee"`
}

// ComputePayout 奖池为双倍押注，抽成后余额归赢家
func (p Policy) ComputePayout(stake int64) Payout {
	pot := stake * 2
	fee := pot * p.PlatformFeeBps / bpsDenominator
	return Payout{
		TotalPot:     pot,
		WinnerPayout: pot - fee,
		PlatformFee:  fee,
	}
}

// ReferralCommission 推荐佣金，从平台抽成中扣出
func (p Policy) ReferralCommission(pot, fee int64) int64 {
	commission := pot * p.ReferralBps / bpsDenominator
	if commission > fee {
		return fee
	}
	return commission
}

// EscrowAccount 对局托管账户
func EscrowAccount(matchID string) string {
	return "escrow:" + matchID
}
