package ledger

import (
	"context"

	apperrors "github.com/wfunc/rps-arena/internal/errors"
	"github.com/wfunc/rps-arena/internal/models"
	"github.com/wfunc/rps-arena/internal/repository"
)

// DelegationOutcome 协调者交还权限时回写的对局进度
type DelegationOutcome struct {
	CurrentRound  int                 `json:"current_round"`
	PlayerOneWins int                 `json:"player_one_wins"`
	PlayerTwoWins int                 `json:"player_two_wins"`
	Winner        string              `json:"winner,omitempty"`
	Reason        models.FinishReason `json:"reason,omitempty"`
}

// Delegate 参与者把对局的推进权限交给协调者
func (l *Ledger) Delegate(ctx context.Context, matchID, requester string) (*models.Match, error) {
	var match *models.Match
	err := l.exec(ctx, "delegate", matchID, requester, func(r *repository.Repositories) error {
		var err error
		match, err = r.Matches.LockForUpdate(ctx, matchID)
		if err != nil {
			return err
		}
		if match.Status != models.MatchInProgress {
			return apperrors.New(apperrors.ErrInvalidState, "只有进行中的对局可以委托: "+string(match.Status))
		}
		if !match.IsParticipant(requester) {
			return apperrors.New(apperrors.ErrNotAuthorityHolder)
		}

		match.Authority = l.policy.CoordinatorIdentity
		match.Status = models.MatchDelegated
		match.PlayerOneCommitment = nil
		match.PlayerTwoCommitment = nil
		match.PlayerOneMove = nil
		match.PlayerTwoMove = nil
		return r.Matches.Save(ctx, match)
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// Undelegate 协调者交还权限；outcome 非空时回写胜局数，指定赢家则对局结束
func (l *Ledger) Undelegate(ctx context.Context, matchID, requester string, outcome *DelegationOutcome) (*models.Match, error) {
	var match *models.Match
	err := l.exec(ctx, "undelegate", matchID, requester, func(r *repository.Repositories) error {
		var err error
		match, err = r.Matches.LockForUpdate(ctx, matchID)
		if err != nil {
			return err
		}
		if match.Status != models.MatchDelegated {
			return apperrors.New(apperrors.ErrInvalidState, "对局未处于委托状态: "+string(match.Status))
		}
		if requester == "" || requester != match.Authority {
			return apperrors.New(apperrors.ErrNotAuthorityHolder)
		}

		match.Authority = ""
		match.Status = models.MatchInProgress
		if outcome != nil {
			if err := applyOutcome(match, outcome); err != nil {
				return err
			}
		}
		return r.Matches.Save(ctx, match)
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// applyOutcome 胜局数只增不减
func applyOutcome(match *models.Match, o *DelegationOutcome) error {
	if o.PlayerOneWins < match.PlayerOneWins || o.PlayerTwoWins < match.PlayerTwoWins {
		return apperrors.New(apperrors.ErrInvalidParam, "胜局数不能减少")
	}
	if o.PlayerOneWins > match.RoundsToWin || o.PlayerTwoWins > match.RoundsToWin {
		return apperrors.New(apperrors.ErrInvalidParam, "胜局数超过目标")
	}
	if o.PlayerOneWins >= match.RoundsToWin && o.PlayerTwoWins >= match.RoundsToWin {
		return apperrors.New(apperrors.ErrInvalidParam, "双方不能同时达到目标")
	}

	match.PlayerOneWins = o.PlayerOneWins
	match.PlayerTwoWins = o.PlayerTwoWins
	if o.CurrentRound > match.CurrentRound {
		match.CurrentRound = o.CurrentRound
	}

	winner := o.Winner
	reason := o.Reason
	switch {
	case winner != "":
		if !match.IsParticipant(winner) {
			return apperrors.New(apperrors.ErrNotAParticipant, "赢家不是参与者: "+winner)
		}
		if reason == "" {
			reason = models.FinishForfeit
		}
		if reason == models.FinishThreshold && winsOf(match, winner) < match.RoundsToWin {
			return apperrors.New(apperrors.ErrInvalidParam, "赢家未达到胜局数")
		}
	case match.PlayerOneWins >= match.RoundsToWin:
		winner, reason = match.PlayerOne, models.FinishThreshold
	case match.PlayerTwoWins >= match.RoundsToWin:
		winner, reason = *match.PlayerTwo, models.FinishThreshold
	default:
		return nil
	}
	finish(match, winner, reason)
	return nil
}

func winsOf(match *models.Match, identity string) int {
	if match.PlayerOne == identity {
		return match.PlayerOneWins
	}
	return match.PlayerTwoWins
}
