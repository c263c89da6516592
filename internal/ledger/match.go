package ledger

import (
	"context"
	"strings"

	apperrors "github.com/wfunc/rps-arena/internal/errors"
	"github.com/wfunc/rps-arena/internal/game/rps"
	"github.com/wfunc/rps-arena/internal/models"
	"github.com/wfunc/rps-arena/internal/repository"
)

// CreateMatchParams 创建对局参数
type CreateMatchParams struct {
	MatchID     string          `json:"match_id"`
	Creator     string          `json:"-"`
	Stake       int64           `json:"stake"`
	Currency    models.Currency `json:"currency"`
	RoundsToWin int             `json:"rounds_to_win"`
}

func (l *Ledger) validateCreate(p *CreateMatchParams) error {
	p.MatchID = strings.TrimSpace(p.MatchID)
	switch {
	case p.MatchID == "":
		return apperrors.New(apperrors.ErrInvalidParam, "对局ID不能为空")
	case len(p.MatchID) > l.policy.MaxMatchIDLen:
		return apperrors.Newf(apperrors.ErrMatchIDTooLong, "最长 %d 字节", l.policy.MaxMatchIDLen)
	case p.Stake <= 0:
		return apperrors.New(apperrors.ErrInvalidStake, "押注必须为正")
	case p.Stake > MaxStake:
		return apperrors.Newf(apperrors.ErrInvalidStake, "押注不能超过 %d", MaxStake)
	case p.RoundsToWin < 1 || p.RoundsToWin > l.policy.MaxRoundsToWin:
		return apperrors.Newf(apperrors.ErrInvalidRoundsToWin, "应在 1 到 %d 之间", l.policy.MaxRoundsToWin)
	case !p.Currency.Valid():
		return apperrors.New(apperrors.ErrInvalidCurrency, string(p.Currency))
	}
	return nil
}

// CreateMatch 创建对局并托管创建者的押注
func (l *Ledger) CreateMatch(ctx context.Context, p CreateMatchParams) (*models.Match, error) {
	if err := l.validateCreate(&p); err != nil {
		return nil, err
	}

	var match *models.Match
	err := l.exec(ctx, "create_match", p.MatchID, p.Creator, func(r *repository.Repositories) error {
		if _, err := r.Profiles.FindByIdentity(ctx, p.Creator); err != nil {
			return err
		}
		exists, err := r.Matches.Exists(ctx, p.MatchID)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.New(apperrors.ErrAlreadyExists, "对局ID已被使用: "+p.MatchID)
		}
		if err := l.escrow(ctx, r, p.MatchID, p.Creator, p.Stake, p.Currency); err != nil {
			return err
		}

		match = &models.Match{
			MatchID:     p.MatchID,
			PlayerOne:   p.Creator,
			Stake:       p.Stake,
			Currency:    p.Currency,
			RoundsToWin: p.RoundsToWin,
			Status:      models.MatchWaitingForPlayer,
		}
		return r.Matches.Create(ctx, match)
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// JoinMatch 加入等待中的对局，押注相同金额
func (l *Ledger) JoinMatch(ctx context.Context, matchID, identity string) (*models.Match, error) {
	var match *models.Match
	err := l.exec(ctx, "join_match", matchID, identity, func(r *repository.Repositories) error {
		var err error
		match, err = r.Matches.LockForUpdate(ctx, matchID)
		if err != nil {
			return err
		}
		if match.PlayerOne == identity {
			return apperrors.New(apperrors.ErrCannotJoinOwnGame)
		}
		if match.Status != models.MatchWaitingForPlayer {
			return apperrors.New(apperrors.ErrMatchNotJoinable, string(match.Status))
		}
		if _, err := r.Profiles.FindByIdentity(ctx, identity); err != nil {
			return err
		}
		if err := l.escrow(ctx, r, matchID, identity, match.Stake, match.Currency); err != nil {
			return err
		}

		match.PlayerTwo = &identity
		match.CurrentRound = 1
		match.Status = models.MatchInProgress
		return r.Matches.Save(ctx, match)
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// inPlay 校验对局进行中且调用者为参与者
func inPlay(match *models.Match, identity string) error {
	if match.Status != models.MatchInProgress {
		return apperrors.New(apperrors.ErrInvalidState, "对局未在进行中: "+string(match.Status))
	}
	if !match.IsParticipant(identity) {
		return apperrors.New(apperrors.ErrNotAParticipant)
	}
	return nil
}

// slots 返回调用者在本回合的承诺与招式字段
func slots(match *models.Match, identity string) (commitment **string, move **int) {
	if match.PlayerOne == identity {
		return &match.PlayerOneCommitment, &match.PlayerOneMove
	}
	return &match.PlayerTwoCommitment, &match.PlayerTwoMove
}

// SubmitMoveCommitment 提交本回合招式承诺
func (l *Ledger) SubmitMoveCommitment(ctx context.Context, matchID, identity string, digest rps.Digest) (*models.Match, error) {
	var match *models.Match
	err := l.exec(ctx, "submit_move_commitment", matchID, identity, func(r *repository.Repositories) error {
		var err error
		match, err = r.Matches.LockForUpdate(ctx, matchID)
		if err != nil {
			return err
		}
		if err := inPlay(match, identity); err != nil {
			return err
		}

		commitment, move := slots(match, identity)
		if *commitment != nil || *move != nil {
			return apperrors.Newf(apperrors.ErrAlreadyCommitted, "第 %d 回合", match.CurrentRound)
		}
		hex := digest.String()
		*commitment = &hex
		return r.Matches.Save(ctx, match)
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// RevealResult 揭示结果
type RevealResult struct {
	Match         *models.Match `json:"match"`
	Round         int           `json:"round"`
	RoundResolved bool          `json:"round_resolved"`
	PlayerOneMove *rps.Move     `json:"player_one_move,omitempty"`
	PlayerTwoMove *rps.Move     `json:"player_two_move,omitempty"`
	Outcome       string        `json:"outcome,omitempty"`
}

// RevealMove 揭示招式；双方都揭示后立即判定本回合
func (l *Ledger) RevealMove(ctx context.Context, matchID, identity string, move rps.Move, nonce uint64) (*RevealResult, error) {
	if !move.Valid() {
		return nil, apperrors.New(apperrors.ErrInvalidMove)
	}

	result := &RevealResult{}
	cleared := false
	err := l.exec(ctx, "reveal_move", matchID, identity, func(r *repository.Repositories) error {
		match, err := r.Matches.LockForUpdate(ctx, matchID)
		if err != nil {
			return err
		}
		if err := inPlay(match, identity); err != nil {
			return err
		}

		commitment, slot := slots(match, identity)
		if *commitment == nil {
			return apperrors.New(apperrors.ErrNotCommitted)
		}
		digest, err := rps.ParseDigest(**commitment)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrDataIntegrity)
		}
		if !rps.Verify(digest, move, nonce) {
			return apperrors.New(apperrors.ErrInvalidReveal)
		}
		nonceHex := rps.FormatNonce(nonce)
		used, err := r.Reveals.NonceUsed(ctx, matchID, identity, nonceHex)
		if err != nil {
			return err
		}
		if used {
			// 对手本回合的招式仍隐藏时才允许换 nonce 重新提交
			if _, opponentMove := slots(match, match.Opponent(identity)); *opponentMove == nil {
				*commitment = nil
				cleared = true
				return r.Matches.Save(ctx, match)
			}
			return apperrors.New(apperrors.ErrNonceReused)
		}
		if err := r.Reveals.Create(ctx, &models.MatchReveal{
			MatchID:  matchID,
			Identity: identity,
			Nonce:    nonceHex,
			Round:    match.CurrentRound,
			Move:     int(move),
		}); err != nil {
			return err
		}

		tag := int(move)
		*commitment = nil
		*slot = &tag
		result.Round = match.CurrentRound
		if match.PlayerOneMove != nil && match.PlayerTwoMove != nil {
			resolveRound(match, result)
		}
		result.Match = match
		return r.Matches.Save(ctx, match)
	})
	if err != nil {
		return nil, err
	}
	if cleared {
		return nil, apperrors.New(apperrors.ErrNonceReused, "承诺已清除，请使用新的 nonce 重新提交")
	}
	return result, nil
}

// resolveRound 判定本回合，达到胜局数时结束对局
func resolveRound(match *models.Match, result *RevealResult) {
	a, b := rps.Move(*match.PlayerOneMove), rps.Move(*match.PlayerTwoMove)
	outcome := rps.Resolve(a, b)
	switch outcome {
	case rps.WinnerA:
		match.PlayerOneWins++
	case rps.WinnerB:
		match.PlayerTwoWins++
	}

	result.RoundResolved = true
	result.PlayerOneMove = &a
	result.PlayerTwoMove = &b
	result.Outcome = outcome.String()

	match.PlayerOneMove = nil
	match.PlayerTwoMove = nil

	switch {
	case match.PlayerOneWins >= match.RoundsToWin:
		finish(match, match.PlayerOne, models.FinishThreshold)
	case match.PlayerTwoWins >= match.RoundsToWin:
		finish(match, *match.PlayerTwo, models.FinishThreshold)
	default:
		match.CurrentRound++
	}
}

func finish(match *models.Match, winner string, reason models.FinishReason) {
	match.Winner = &winner
	match.Status = models.MatchFinished
	match.FinishReason = reason
	match.PlayerOneCommitment = nil
	match.PlayerTwoCommitment = nil
	match.PlayerOneMove = nil
	match.PlayerTwoMove = nil
}

// AbandonMatch 参与者放弃未结束的对局，委托期间只允许权限持有者，押注在 FinalizeAbandonedMatch 中全额退还
func (l *Ledger) AbandonMatch(ctx context.Context, matchID, identity string) (*models.Match, error) {
	var match *models.Match
	err := l.exec(ctx, "abandon_match", matchID, identity, func(r *repository.Repositories) error {
		var err error
		match, err = r.Matches.LockForUpdate(ctx, matchID)
		if err != nil {
			return err
		}
		switch match.Status {
		case models.MatchWaitingForPlayer, models.MatchInProgress:
			if !match.IsParticipant(identity) {
				return apperrors.New(apperrors.ErrNotAParticipant)
			}
		case models.MatchDelegated:
			// 委托期间回合由权限持有者推进，参与者不能绕过它
			if identity == "" || identity != match.Authority {
				return apperrors.New(apperrors.ErrNotAuthorityHolder, "对局已委托")
			}
		default:
			return apperrors.New(apperrors.ErrInvalidState, "对局已结束: "+string(match.Status))
		}

		match.Status = models.MatchAbandoned
		match.FinishReason = models.FinishAbandoned
		match.Authority = ""
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
