package game

import (
	"math"
	"time"

	"github.com/wfunc/rps-arena/internal/game/rps"
	"github.com/wfunc/rps-arena/internal/logger"
	"github.com/wfunc/rps-arena/internal/models"
)

// scheduleStart 延迟 delay 后开始第一回合，回合时长为 timeout
func (c *Coordinator) scheduleStart(s *Session, delay, timeout time.Duration) {
	s.roundGen++
	gen := s.roundGen
	s.startTimer = time.AfterFunc(delay, func() { c.beginPlay(s, gen, timeout) })
}

func (c *Coordinator) beginPlay(s *Session, gen uint64, timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.roundGen || s.Status != SessionReady {
		return
	}
	s.startTimer = nil
	if err := s.transition(SessionActive); err != nil {
		return
	}
	s.Round = 1
	logger.LogGameEvent("session_started", s.MatchID, map[string]interface{}{"timeout": timeout.String()})
	s.broadcast(c.notifier, NewEvent(EventSessionStarted, s.MatchID, StartedPayload{
		Round:       s.Round,
		RoundsToWin: s.RoundsToWin,
		TimeoutMs:   timeout.Milliseconds(),
		Players:     s.playerViews(),
	}))
	c.startRound(s, timeout)
}

// startRound 清空出招并启动本回合倒计时，调用方持有锁
func (c *Coordinator) startRound(s *Session, timeout time.Duration) {
	for _, p := range s.Players {
		p.Move = nil
	}
	s.roundGen++
	gen := s.roundGen
	s.deadline = time.Now().Add(timeout)
	s.broadcast(c.notifier, NewEvent(EventCountdownTick, s.MatchID, TickPayload{
		Round:     s.Round,
		Remaining: remainingSeconds(timeout),
	}))
	s.roundTimer = time.AfterFunc(c.tickInterval(timeout), func() { c.tick(s, gen) })
}

func (c *Coordinator) tickInterval(remaining time.Duration) time.Duration {
	interval := c.Timings().CountdownInterval
	if interval <= 0 || interval > remaining {
		return remaining
	}
	return interval
}

// tick 倒计时，到期后自动补招
func (c *Coordinator) tick(s *Session, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.roundGen || s.Status != SessionActive {
		return
	}
	remaining := time.Until(s.deadline)
	if remaining <= 0 {
		c.expire(s)
		return
	}
	s.broadcast(c.notifier, NewEvent(EventCountdownTick, s.MatchID, TickPayload{
		Round:     s.Round,
		Remaining: remainingSeconds(remaining),
	}))
	s.roundTimer = time.AfterFunc(c.tickInterval(remaining), func() { c.tick(s, gen) })
}

func remainingSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

// expire 回合超时：双方都未出招时分配两个不同的随机招式，只缺一方时随机补一招
func (c *Coordinator) expire(s *Session) {
	a, b := s.Players[0], s.Players[1]
	var auto []string
	switch {
	case a.Move == nil && b.Move == nil:
		ma, mb := rps.DistinctMoves()
		a.Move, b.Move = &ma, &mb
		auto = []string{a.Identity, b.Identity}
	case a.Move == nil:
		m := rps.RandomMove()
		a.Move = &m
		auto = []string{a.Identity}
	case b.Move == nil:
		m := rps.RandomMove()
		b.Move = &m
		auto = []string{b.Identity}
	}
	c.resolveRound(s, auto)
}

// resolveRound 判定本回合，达到胜局数则结束对局，否则立即开始下一回合
func (c *Coordinator) resolveRound(s *Session, auto []string) {
	s.roundGen++
	if s.roundTimer != nil {
		s.roundTimer.Stop()
		s.roundTimer = nil
	}

	a, b := s.Players[0], s.Players[1]
	record := RoundRecord{
		Round:        s.Round,
		PlayerOne:    a.Move.String(),
		PlayerTwo:    b.Move.String(),
		AutoAssigned: auto,
	}
	var winner *Participant
	switch rps.Resolve(*a.Move, *b.Move) {
	case rps.WinnerA:
		winner = a
	case rps.WinnerB:
		winner = b
	}
	if winner != nil {
		winner.Wins++
		record.Winner = winner.Identity
	}
	s.history = append(s.history, record)
	s.touch()

	s.broadcast(c.notifier, NewEvent(EventRoundResolved, s.MatchID, RoundResolvedPayload{
		Round:        s.Round,
		Moves:        map[string]rps.Move{a.Identity: *a.Move, b.Identity: *b.Move},
		Winner:       record.Winner,
		Scores:       s.scores(),
		AutoAssigned: auto,
	}))
	logger.LogGameEvent("round_resolved", s.MatchID, map[string]interface{}{
		"round":  s.Round,
		"winner": record.Winner,
		"auto":   auto,
	})

	a.Move, b.Move = nil, nil
	if winner != nil && winner.Wins >= s.RoundsToWin {
		c.finish(s, winner, models.FinishThreshold)
		return
	}

	s.Round++
	timeout := c.Timings().RoundTimeout
	s.broadcast(c.notifier, NewEvent(EventRoundStarted, s.MatchID, RoundPayload{
		Round:     s.Round,
		TimeoutMs: timeout.Milliseconds(),
	}))
	c.startRound(s, timeout)
}
