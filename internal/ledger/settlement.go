package ledger

import (
	"context"
	"time"

	apperrors "github.com/wfunc/rps-arena/internal/errors"
	"github.com/wfunc/rps-arena/internal/models"
	"github.com/wfunc/rps-arena/internal/repository"
)

// Settlement 结算结果
type Settlement struct {
	MatchID            string           `json:"match_id"`
	Currency           models.Currency  `json:"currency"`
	Winner             string           `json:"winner,omitempty"`
	Loser              string           `json:"loser,omitempty"`
	Payout             Payout           `json:"payout"`
	Referrer           string           `json:"referrer,omitempty"`
	ReferralCommission int64            `json:"referral_commission,omitempty"`
	Bonus              int64            `json:"bonus,omitempty"`
	Refunds            map[string]int64 `json:"refunds,omitempty"`
}

// escrow 把押注从玩家转入托管
func (l *Ledger) escrow(ctx context.Context, r *repository.Repositories, matchID, identity string, stake int64, currency models.Currency) error {
	entry := models.LedgerEntry{
		MatchID:  matchID,
		Kind:     models.EntryEscrow,
		Currency: currency,
		From:     identity,
		To:       EscrowAccount(matchID),
		Amount:   stake,
	}
	switch currency {
	case models.CurrencyPoints:
		if err := r.Profiles.DeductPoints(ctx, identity, stake); err != nil {
			return err
		}
	case models.CurrencyNative:
		if err := r.Accounts.Debit(ctx, identity, stake); err != nil {
			return err
		}
		if err := r.Accounts.Credit(ctx, entry.To, stake); err != nil {
			return err
		}
	}
	return journal(ctx, r, entry)
}

// release 从托管付出，积分对局直接记入档案
func (l *Ledger) release(ctx context.Context, r *repository.Repositories, match *models.Match, kind models.EntryKind, to string, amount int64) error {
	if amount <= 0 {
		return nil
	}
	from := EscrowAccount(match.MatchID)
	switch match.Currency {
	case models.CurrencyPoints:
		if to != l.policy.TreasuryIdentity {
			if err := r.Profiles.AddPoints(ctx, to, amount); err != nil {
				return err
			}
		}
	case models.CurrencyNative:
		if err := r.Accounts.Debit(ctx, from, amount); err != nil {
			return apperrors.Wrap(err, apperrors.ErrDataIntegrity, "托管余额不足")
		}
		if err := r.Accounts.Credit(ctx, to, amount); err != nil {
			return err
		}
	}
	return journal(ctx, r, models.LedgerEntry{
		MatchID:  match.MatchID,
		Kind:     kind,
		Currency: match.Currency,
		From:     from,
		To:       to,
		Amount:   amount,
	})
}

// FinalizeMatch 结算已结束的对局：赢家得奖池扣除手续费后的余额
func (l *Ledger) FinalizeMatch(ctx context.Context, matchID string) (*Settlement, error) {
	var settlement *Settlement
	err := l.exec(ctx, "finalize_match", matchID, "", func(r *repository.Repositories) error {
		match, err := r.Matches.LockForUpdate(ctx, matchID)
		if err != nil {
			return err
		}
		if match.Settled {
			return apperrors.New(apperrors.ErrAlreadySettled)
		}
		if match.Status != models.MatchFinished || match.Winner == nil {
			return apperrors.New(apperrors.ErrInvalidState, "对局尚未结束: "+string(match.Status))
		}

		winner := *match.Winner
		loser := match.Opponent(winner)
		payout := l.policy.ComputePayout(match.Stake)
		settlement = &Settlement{
			MatchID:  matchID,
			Currency: match.Currency,
			Winner:   winner,
			Loser:    loser,
			Payout:   payout,
		}

		if err := l.release(ctx, r, match, models.EntryPayout, winner, payout.WinnerPayout); err != nil {
			return err
		}

		fee := payout.PlatformFee
		earned := payout.WinnerPayout
		if match.Currency == models.CurrencyNative {
			earned = 0
			if err := l.payReferral(ctx, r, match, winner, settlement); err != nil {
				return err
			}
			fee -= settlement.ReferralCommission
			// 原生代币对局不改动积分余额，奖励只计入累计获得
			if l.policy.NativeWinBonus > 0 {
				if err := journal(ctx, r, models.LedgerEntry{
					MatchID:  matchID,
					Kind:     models.EntryBonus,
					Currency: models.CurrencyPoints,
					To:       winner,
					Amount:   l.policy.NativeWinBonus,
				}); err != nil {
					return err
				}
				settlement.Bonus = l.policy.NativeWinBonus
				earned = l.policy.NativeWinBonus
			}
		}
		if err := l.release(ctx, r, match, models.EntryFee, l.policy.TreasuryIdentity, fee); err != nil {
			return err
		}

		if err := r.Profiles.RecordResult(ctx, winner, true, false, earned); err != nil {
			return err
		}
		if err := r.Profiles.RecordResult(ctx, loser, false, true, 0); err != nil {
			return err
		}
		return markSettled(ctx, r, match)
	})
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

// payReferral 赢家有推荐人时，从手续费中分出佣金
func (l *Ledger) payReferral(ctx context.Context, r *repository.Repositories, match *models.Match, winner string, s *Settlement) error {
	if l.policy.ReferralBps <= 0 {
		return nil
	}
	profile, err := r.Profiles.FindByIdentity(ctx, winner)
	if err != nil {
		return err
	}
	if profile.ReferredBy == nil {
		return nil
	}
	referrer, err := r.Profiles.LockForUpdate(ctx, *profile.ReferredBy)
	if err != nil {
		return err
	}

	commission := l.policy.ReferralCommission(s.Payout.TotalPot, s.Payout.PlatformFee)
	if commission <= 0 {
		return nil
	}
	if err := l.release(ctx, r, match, models.EntryReferral, referrer.Identity, commission); err != nil {
		return err
	}
	referrer.ReferralEarnings += commission
	if err := r.Profiles.Save(ctx, referrer); err != nil {
		return err
	}
	s.Referrer = referrer.Identity
	s.ReferralCommission = commission
	return nil
}

// FinalizeAbandonedMatch 放弃的对局全额退还双方押注
func (l *Ledger) FinalizeAbandonedMatch(ctx context.Context, matchID string) (*Settlement, error) {
	var settlement *Settlement
	err := l.exec(ctx, "finalize_abandoned_match", matchID, "", func(r *repository.Repositories) error {
		match, err := r.Matches.LockForUpdate(ctx, matchID)
		if err != nil {
			return err
		}
		if match.Settled {
			return apperrors.New(apperrors.ErrAlreadySettled)
		}
		if match.Status != models.MatchAbandoned {
			return apperrors.New(apperrors.ErrInvalidState, "对局未被放弃: "+string(match.Status))
		}

		settlement = &Settlement{
			MatchID:  matchID,
			Currency: match.Currency,
			Refunds:  make(map[string]int64, 2),
		}
		players := []string{match.PlayerOne}
		if match.PlayerTwo != nil {
			players = append(players, *match.PlayerTwo)
		}
		for _, player := range players {
			if err := l.release(ctx, r, match, models.EntryRefund, player, match.Stake); err != nil {
				return err
			}
			settlement.Refunds[player] = match.Stake
			if match.PlayerTwo == nil {
				continue
			}
			if err := r.Profiles.RecordResult(ctx, player, false, false, 0); err != nil {
				return err
			}
		}
		return markSettled(ctx, r, match)
	})
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

func markSettled(ctx context.Context, r *repository.Repositories, match *models.Match) error {
	now := time.Now()
	match.Settled = true
	match.SettledAt = &now
	return r.Matches.Save(ctx, match)
}
