package game

import (
	"sync"
	"time"

	"github.com/wfunc/rps-arena/internal/game/rps"
	"github.com/wfunc/rps-arena/internal/ledger"
	"github.com/wfunc/rps-arena/internal/models"
)

// Participant 会话中的一位玩家
type Participant struct {
	Identity  string
	ConnID    string
	Connected bool
	Ready     bool
	Wins      int
	Move      *rps.Move

	graceGen   uint64
	graceTimer *time.Timer
}

func (p *Participant) view() PlayerView {
	return PlayerView{
		Identity:  p.Identity,
		Wins:      p.Wins,
		Connected: p.Connected,
		Ready:     p.Ready,
		HasMoved:  p.Move != nil,
	}
}

// Session 一场实时对局，镜像账本中的同名对局
//
// 所有字段都由 mu 保护；计时器回调通过代数判断自己是否已过期。
type Session struct {
	mu sync.Mutex

	MatchID     string
	Currency    models.Currency
	Stake       int64
	RoundsToWin int
	Round       int
	Status      SessionStatus
	Players     [2]*Participant
	Winner      string
	Reason      models.FinishReason
	Processed   bool
	Payout      *ledger.Payout
	Delegated   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	FinishedAt  time.Time

	history    []RoundRecord
	deadline   time.Time
	roundGen   uint64
	roundTimer *time.Timer
	startTimer *time.Timer
	evictTimer *time.Timer
}

func newSession(matchID string, currency models.Currency, stake int64, roundsToWin int, creator *Participant) *Session {
	now := time.Now()
	return &Session{
		MatchID:     matchID,
		Currency:    currency,
		Stake:       stake,
		RoundsToWin: roundsToWin,
		Status:      SessionWaiting,
		Players:     [2]*Participant{creator},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// participant 按身份查找玩家
func (s *Session) participant(identity string) *Participant {
	for _, p := range s.Players {
		if p != nil && p.Identity == identity {
			return p
		}
	}
	return nil
}

// opponent 返回对手，尚未加入时为 nil
func (s *Session) opponent(identity string) *Participant {
	switch {
	case s.Players[0] != nil && s.Players[0].Identity == identity:
		return s.Players[1]
	case s.Players[1] != nil && s.Players[1].Identity == identity:
		return s.Players[0]
	}
	return nil
}

func (s *Session) full() bool {
	return s.Players[0] != nil && s.Players[1] != nil
}

// broadcast 向在线玩家发送事件
func (s *Session) broadcast(n Notifier, event *Event) {
	for _, p := range s.Players {
		if p != nil && p.Connected {
			n.Send(p.ConnID, event)
		}
	}
}

// sendTo 向单个在线玩家发送事件
func (s *Session) sendTo(n Notifier, p *Participant, event *Event) {
	if p != nil && p.Connected {
		n.Send(p.ConnID, event)
	}
}

func (s *Session) scores() map[string]int {
	scores := make(map[string]int, 2)
	for _, p := range s.Players {
		if p != nil {
			scores[p.Identity] = p.Wins
		}
	}
	return scores
}

func (s *Session) playerViews() []PlayerView {
	views := make([]PlayerView, 0, 2)
	for _, p := range s.Players {
		if p != nil {
			views = append(views, p.view())
		}
	}
	return views
}

// View 会话快照，调用方需持有锁
func (s *Session) View() *SessionView {
	v := &SessionView{
		MatchID:     s.MatchID,
		Status:      s.Status,
		Currency:    s.Currency,
		Stake:       s.Stake,
		RoundsToWin: s.RoundsToWin,
		Round:       s.Round,
		Players:     s.playerViews(),
		Winner:      s.Winner,
		Reason:      s.Reason,
		Payout:      s.Payout,
		History:     append([]RoundRecord(nil), s.history...),
	}
	if s.Status == SessionActive && !s.deadline.IsZero() {
		deadline := s.deadline
		v.Deadline = &deadline
	}
	return v
}

// stopTimers 取消全部计时器，过期的回调由代数过滤
func (s *Session) stopTimers() {
	s.roundGen++
	for _, t := range []*time.Timer{s.roundTimer, s.startTimer} {
		if t != nil {
			t.Stop()
		}
	}
	s.roundTimer = nil
	s.startTimer = nil
	for _, p := range s.Players {
		if p != nil && p.graceTimer != nil {
			p.graceGen++
			p.graceTimer.Stop()
			p.graceTimer = nil
		}
	}
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now()
}
