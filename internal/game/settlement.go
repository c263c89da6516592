package game

import (
	"context"
	"time"

	apperrors "github.com/wfunc/rps-arena/internal/errors"
	"github.com/wfunc/rps-arena/internal/ledger"
	"github.com/wfunc/rps-arena/internal/logger"
	"github.com/wfunc/rps-arena/internal/models"
	"go.uber.org/zap"
)

const (
	reconcileTimeout  = 10 * time.Second
	defaultRetryDelay = 2 * time.Second
	maxSettleAttempts = 5
)

// report 待回写账本的对局结果
type report struct {
	MatchID       string
	Currency      models.Currency
	Stake         int64
	PlayerOne     string
	PlayerTwo     string
	Winner        string
	Reason        models.FinishReason
	Round         int
	PlayerOneWins int
	PlayerTwoWins int
	Delegated     bool
	Payout        *ledger.Payout
	History       []RoundRecord
	StartedAt     time.Time
	FinishedAt    time.Time

	attempts int
}

// finish 唯一的结算入口，调用方持有锁；同一会话只执行一次
func (c *Coordinator) finish(s *Session, winner *Participant, reason models.FinishReason) {
	if s.Processed {
		return
	}
	target := SessionFinished
	if winner == nil {
		target = SessionAbandoned
	}
	if err := s.transition(target); err != nil {
		c.logger.Warn("忽略非法的结束请求", zap.String("match_id", s.MatchID), zap.Error(err))
		return
	}

	s.Processed = true
	s.stopTimers()
	s.Reason = reason
	s.FinishedAt = time.Now()
	s.touch()
	if winner != nil {
		s.Winner = winner.Identity
		payout := c.ledger.Policy().ComputePayout(s.Stake)
		s.Payout = &payout
	}

	s.broadcast(c.notifier, NewEvent(EventSessionFinished, s.MatchID, FinishedPayload{
		Winner:      s.Winner,
		FinalScores: s.scores(),
		Payout:      s.Payout,
		Reason:      reason,
	}))
	logger.LogGameEvent("session_finished", s.MatchID, map[string]interface{}{
		"winner": s.Winner,
		"reason": reason,
		"scores": s.scores(),
	})

	for _, p := range s.Players {
		if p != nil {
			c.retire(p.Identity, s.MatchID)
		}
	}
	c.enqueue(newReport(s))

	matchID := s.MatchID
	s.evictTimer = time.AfterFunc(c.Timings().EvictDelay, func() { c.evict(matchID) })
}

func newReport(s *Session) *report {
	r := &report{
		MatchID:    s.MatchID,
		Currency:   s.Currency,
		Stake:      s.Stake,
		PlayerOne:  s.Players[0].Identity,
		Winner:     s.Winner,
		Reason:     s.Reason,
		Round:      s.Round,
		Delegated:  s.Delegated,
		Payout:     s.Payout,
		History:    append([]RoundRecord(nil), s.history...),
		StartedAt:  s.CreatedAt,
		FinishedAt: s.FinishedAt,
	}
	r.PlayerOneWins = s.Players[0].Wins
	if p := s.Players[1]; p != nil {
		r.PlayerTwo = p.Identity
		r.PlayerTwoWins = p.Wins
	}
	return r
}

// evict 结束后延迟移出内存
func (c *Coordinator) evict(matchID string) {
	c.mu.Lock()
	delete(c.sessions, matchID)
	for identity, id := range c.retired {
		if id == matchID {
			delete(c.retired, identity)
		}
	}
	c.mu.Unlock()
	logger.LogGameEvent("session_evicted", matchID, nil)
}

func (c *Coordinator) enqueue(r *report) {
	c.reportMu.Lock()
	c.reports = append(c.reports, r)
	c.reportMu.Unlock()
	select {
	case c.reportSig <- struct{}{}:
	default:
	}
}

func (c *Coordinator) dequeue() *report {
	c.reportMu.Lock()
	defer c.reportMu.Unlock()
	if len(c.reports) == 0 {
		return nil
	}
	r := c.reports[0]
	c.reports = c.reports[1:]
	return r
}

// Start 启动结算回写协程
func (c *Coordinator) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.settleLoop(ctx)
	c.logger.Info("实时对局协调者已启动")
}

// Stop 停止回写协程，退出前处理完已排队的结果
func (c *Coordinator) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel = nil

	c.retryMu.Lock()
	for r, t := range c.retries {
		t.Stop()
		delete(c.retries, r)
		c.failures.Add(1)
		c.logger.Error("停止时仍有未回写的对局结果", zap.String("match_id", r.MatchID), zap.String("winner", r.Winner))
	}
	c.retryMu.Unlock()

	for _, s := range c.snapshot() {
		s.mu.Lock()
		s.stopTimers()
		if s.evictTimer != nil {
			s.evictTimer.Stop()
		}
		s.mu.Unlock()
	}
	c.logger.Info("实时对局协调者已停止")
}

func (c *Coordinator) settleLoop(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			c.drain()
			return
		case <-c.reportSig:
			c.drain()
		}
	}
}

func (c *Coordinator) drain() {
	for r := c.dequeue(); r != nil; r = c.dequeue() {
		c.reconcile(r)
	}
}

// reconcile 把对局结果回写账本并归档，重复结算视为成功；失败时延迟重试
func (c *Coordinator) reconcile(r *report) {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	var err error
	if r.Winner != "" {
		err = c.settleWinner(ctx, r)
	} else {
		err = c.settleAbandoned(ctx, r)
	}
	if err != nil {
		r.attempts++
		if r.attempts < maxSettleAttempts {
			c.logger.Warn("对局结果回写账本失败，稍后重试",
				zap.String("match_id", r.MatchID),
				zap.Int("attempt", r.attempts),
				zap.Error(err))
			c.retry(r)
			return
		}
		c.failures.Add(1)
		c.logger.Error("对局结果回写账本失败",
			zap.String("match_id", r.MatchID),
			zap.String("winner", r.Winner),
			zap.Int("attempts", r.attempts),
			zap.Error(err))
		return
	}
	c.settled.Add(1)

	if c.history == nil {
		return
	}
	if err := c.history.Save(ctx, r.toHistory()); err != nil {
		c.logger.Error("保存对局历史失败", zap.String("match_id", r.MatchID), zap.Error(err))
	}
}

// retry 按尝试次数递增延迟后重新入队
func (c *Coordinator) retry(r *report) {
	c.retryMu.Lock()
	defer c.retryMu.Unlock()
	c.retries[r] = time.AfterFunc(c.retryDelay*time.Duration(r.attempts), func() {
		c.retryMu.Lock()
		_, pending := c.retries[r]
		delete(c.retries, r)
		c.retryMu.Unlock()
		if pending {
			c.enqueue(r)
		}
	})
}

// settleWinner 交回权限并结算；账本上的结果必须与会话一致
func (c *Coordinator) settleWinner(ctx context.Context, r *report) error {
	if r.Delegated {
		_, err := c.ledger.Undelegate(ctx, r.MatchID, c.authority, &ledger.DelegationOutcome{
			CurrentRound:  r.Round,
			PlayerOneWins: r.PlayerOneWins,
			PlayerTwoWins: r.PlayerTwoWins,
			Winner:        r.Winner,
			Reason:        r.Reason,
		})
		if err != nil {
			if !apperrors.Is(err, apperrors.ErrInvalidState) {
				return err
			}
			// 上一次尝试可能已经交回权限
			match, gerr := c.ledger.GetMatch(ctx, r.MatchID)
			if gerr != nil {
				return gerr
			}
			if match.Status != models.MatchFinished || match.Winner == nil || *match.Winner != r.Winner {
				return apperrors.Wrap(err, apperrors.ErrDataIntegrity, "账本对局与会话结果不一致: "+string(match.Status))
			}
		}
	}
	_, err := c.ledger.FinalizeMatch(ctx, r.MatchID)
	if apperrors.Is(err, apperrors.ErrAlreadySettled) {
		return nil
	}
	return err
}

func (c *Coordinator) settleAbandoned(ctx context.Context, r *report) error {
	match, err := c.ledger.GetMatch(ctx, r.MatchID)
	if err != nil {
		return err
	}
	if match.Settled {
		return nil
	}
	switch match.Status {
	case models.MatchAbandoned:
	case models.MatchDelegated:
		if _, err := c.ledger.AbandonMatch(ctx, r.MatchID, c.authority); err != nil {
			return err
		}
	default:
		if match.Currency == models.CurrencyNative {
			c.logger.Info("原生代币对局未委托，由玩家自行放弃", zap.String("match_id", r.MatchID))
			return nil
		}
		if _, err := c.ledger.AbandonMatch(ctx, r.MatchID, match.PlayerOne); err != nil {
			return err
		}
	}
	_, err = c.ledger.FinalizeAbandonedMatch(ctx, r.MatchID)
	if apperrors.Is(err, apperrors.ErrAlreadySettled) {
		return nil
	}
	return err
}

func (r *report) toHistory() *models.MatchHistory {
	h := &models.MatchHistory{
		MatchID:       r.MatchID,
		PlayerOne:     r.PlayerOne,
		PlayerTwo:     r.PlayerTwo,
		Winner:        r.Winner,
		PlayerOneWins: r.PlayerOneWins,
		PlayerTwoWins: r.PlayerTwoWins,
		Rounds:        len(r.History),
		Currency:      r.Currency,
		Stake:         r.Stake,
		Reason:        r.Reason,
		FinishedAt:    r.FinishedAt,
		Extra: models.JSONMap{
			"rounds":     r.History,
			"started_at": r.StartedAt,
			"delegated":  r.Delegated,
		},
	}
	if r.Payout != nil {
		h.TotalPot = r.Payout.TotalPot
		h.WinnerPayout = r.Payout.WinnerPayout
		h.PlatformFee = r.Payout.PlatformFee
	}
	return h
}
