package game

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/wfunc/rps-arena/internal/errors"
	"github.com/wfunc/rps-arena/internal/game/rps"
	"github.com/wfunc/rps-arena/internal/ledger"
	"github.com/wfunc/rps-arena/internal/logger"
	"github.com/wfunc/rps-arena/internal/models"
	"go.uber.org/zap"
)

// GameTypeRPS 目前唯一支持的玩法
const GameTypeRPS = "rps"

// Coordinator 实时对局协调者
//
// 锁顺序：对局锁 s.mu 在外，注册表锁 c.mu 在内；持有 c.mu 时不得再获取任何对局锁。
type Coordinator struct {
	mu         sync.RWMutex
	sessions   map[string]*Session // matchID -> 会话
	byIdentity map[string]string   // identity -> 未结束会话的 matchID
	retired    map[string]string   // identity -> 已结束但尚未移出内存的 matchID
	conns      map[string]string   // connID -> identity

	timingsMu sync.RWMutex
	timings   Timings

	ledger             Ledger
	notifier           Notifier
	history            HistoryStore
	logger             *zap.Logger
	authority          string
	defaultRoundsToWin int

	reportMu   sync.Mutex
	reports    []*report
	reportSig  chan struct{}
	retryMu    sync.Mutex
	retries    map[*report]*time.Timer
	retryDelay time.Duration
	cancel     context.CancelFunc
	done       chan struct{}

	settled  atomic.Int64
	failures atomic.Int64
}

// CoordinatorConfig 协调者配置
type CoordinatorConfig struct {
	Ledger             Ledger
	Notifier           Notifier
	History            HistoryStore
	Logger             *zap.Logger
	Timings            Timings
	DefaultRoundsToWin int
}

// NewCoordinator 创建协调者
func NewCoordinator(cfg *CoordinatorConfig) *Coordinator {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	rounds := cfg.DefaultRoundsToWin
	if rounds <= 0 {
		rounds = 3
	}
	return &Coordinator{
		sessions:           make(map[string]*Session),
		byIdentity:         make(map[string]string),
		retired:            make(map[string]string),
		conns:              make(map[string]string),
		timings:            cfg.Timings,
		ledger:             cfg.Ledger,
		notifier:           cfg.Notifier,
		history:            cfg.History,
		logger:             log,
		authority:          cfg.Ledger.Policy().CoordinatorIdentity,
		defaultRoundsToWin: rounds,
		reportSig:          make(chan struct{}, 1),
		retries:            make(map[*report]*time.Timer),
		retryDelay:         defaultRetryDelay,
	}
}

// SetNotifier 设置事件投递者，须在处理任何事件之前调用
func (c *Coordinator) SetNotifier(n Notifier) {
	c.notifier = n
}

// UpdateTimings 热更新时长
func (c *Coordinator) UpdateTimings(t Timings) {
	c.timingsMu.Lock()
	c.timings = t
	c.timingsMu.Unlock()
	c.logger.Info("实时对局时长已更新",
		zap.Duration("round_timeout", t.RoundTimeout),
		zap.Duration("disconnect_grace", t.DisconnectGrace))
}

// Timings 当前时长
func (c *Coordinator) Timings() Timings {
	c.timingsMu.RLock()
	defer c.timingsMu.RUnlock()
	return c.timings
}

// Bind 记录连接对应的身份
func (c *Coordinator) Bind(connID, identity string) {
	c.mu.Lock()
	c.conns[connID] = identity
	c.mu.Unlock()
}

func (c *Coordinator) lookup(matchID string) (*Session, error) {
	c.mu.RLock()
	s, ok := c.sessions[matchID]
	c.mu.RUnlock()
	if !ok {
		return nil, apperrors.New(apperrors.ErrNotFound, "会话不存在: "+matchID)
	}
	return s, nil
}

// sessionOf 查找身份所在的会话，已结束的会话在移出内存前仍可查到
func (c *Coordinator) sessionOf(identity string) (*Session, error) {
	c.mu.RLock()
	matchID, ok := c.byIdentity[identity]
	if !ok {
		matchID, ok = c.retired[identity]
	}
	s := c.sessions[matchID]
	c.mu.RUnlock()
	if !ok || s == nil {
		return nil, apperrors.New(apperrors.ErrNotFound, "未加入任何对局")
	}
	return s, nil
}

// claim 占用身份，一个身份同时只能在一场未结束的会话中
func (c *Coordinator) claim(identity, matchID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.byIdentity[identity]; ok && current != matchID {
		return apperrors.New(apperrors.ErrAlreadyParticipant, "已在对局中: "+current)
	}
	c.byIdentity[identity] = matchID
	return nil
}

// release 解除身份占用
func (c *Coordinator) release(identity, matchID string) {
	c.mu.Lock()
	if c.byIdentity[identity] == matchID {
		delete(c.byIdentity, identity)
	}
	c.mu.Unlock()
}

// retire 会话结束后解除占用，保留查询入口直到移出内存
func (c *Coordinator) retire(identity, matchID string) {
	c.mu.Lock()
	if c.byIdentity[identity] == matchID {
		delete(c.byIdentity, identity)
	}
	c.retired[identity] = matchID
	c.mu.Unlock()
}

// CreateSession 创建会话
func (c *Coordinator) CreateSession(ctx context.Context, connID, identity string, req CreateSessionRequest) (*SessionView, error) {
	if req.GameType != "" && req.GameType != GameTypeRPS {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "不支持的玩法: "+req.GameType)
	}
	if req.Currency == "" {
		req.Currency = models.CurrencyPoints
	}
	if req.RoundsToWin == 0 {
		req.RoundsToWin = c.defaultRoundsToWin
	}

	switch req.Currency {
	case models.CurrencyPoints:
		req.MatchID = strings.ReplaceAll(uuid.NewString(), "-", "")
	case models.CurrencyNative:
		match, err := c.ledger.GetMatch(ctx, req.MatchID)
		if err != nil {
			return nil, err
		}
		if match.PlayerOne != identity {
			return nil, apperrors.New(apperrors.ErrNotAParticipant, "账本对局的创建者不是当前身份")
		}
		if match.Currency != models.CurrencyNative || match.Status != models.MatchWaitingForPlayer {
			return nil, apperrors.Newf(apperrors.ErrInvalidState, "账本对局不可绑定: %s/%s", match.Currency, match.Status)
		}
		req.Stake = match.Stake
		req.RoundsToWin = match.RoundsToWin
	default:
		return nil, apperrors.New(apperrors.ErrInvalidCurrency, string(req.Currency))
	}

	creator := &Participant{Identity: identity, ConnID: connID, Connected: true}
	s := newSession(req.MatchID, req.Currency, req.Stake, req.RoundsToWin, creator)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := c.register(s, identity); err != nil {
		return nil, err
	}
	if req.Currency == models.CurrencyPoints {
		_, err := c.ledger.CreateMatch(ctx, ledger.CreateMatchParams{
			MatchID:     req.MatchID,
			Creator:     identity,
			Stake:       req.Stake,
			Currency:    req.Currency,
			RoundsToWin: req.RoundsToWin,
		})
		if err != nil {
			c.unregister(s.MatchID, identity)
			return nil, err
		}
	}

	logger.LogGameEvent("session_created", s.MatchID, map[string]interface{}{
		"creator":  identity,
		"stake":    s.Stake,
		"currency": s.Currency,
	})
	view := s.View()
	s.sendTo(c.notifier, creator, NewEvent(EventSessionCreated, s.MatchID, view))
	return view, nil
}

func (c *Coordinator) register(s *Session, identity string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[s.MatchID]; ok {
		return apperrors.New(apperrors.ErrAlreadyExists, "会话已存在: "+s.MatchID)
	}
	if current, ok := c.byIdentity[identity]; ok {
		return apperrors.New(apperrors.ErrAlreadyParticipant, "已在对局中: "+current)
	}
	c.sessions[s.MatchID] = s
	c.byIdentity[identity] = s.MatchID
	return nil
}

func (c *Coordinator) unregister(matchID, identity string) {
	c.mu.Lock()
	delete(c.sessions, matchID)
	if c.byIdentity[identity] == matchID {
		delete(c.byIdentity, identity)
	}
	c.mu.Unlock()
}

// JoinSession 加入会话；积分对局在此完成账本加入与委托
func (c *Coordinator) JoinSession(ctx context.Context, connID, identity, matchID string) (*SessionView, error) {
	s, err := c.lookup(matchID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.participant(identity) != nil {
		return nil, apperrors.New(apperrors.ErrAlreadyParticipant)
	}
	if s.Currency == models.CurrencyNative && !s.Status.IsTerminal() {
		match, err := c.ledger.GetMatch(ctx, matchID)
		if err != nil {
			return nil, err
		}
		if match.PlayerTwo != nil {
			if *match.PlayerTwo != identity {
				return nil, apperrors.New(apperrors.ErrNotAParticipant, "账本对局的加入者不是当前身份")
			}
			if s.full() && s.Status == SessionStaking {
				c.displace(s)
			}
		}
	}

	switch {
	case s.full():
		return nil, apperrors.New(apperrors.ErrSessionFull)
	case s.Status != SessionWaiting:
		return nil, apperrors.New(apperrors.ErrInvalidState, "会话不可加入: "+string(s.Status))
	}
	if err := c.claim(identity, matchID); err != nil {
		return nil, err
	}

	next := SessionStaking
	if s.Currency == models.CurrencyPoints {
		if _, err := c.ledger.JoinMatch(ctx, matchID, identity); err != nil {
			c.release(identity, matchID)
			return nil, err
		}
		next = SessionReady
	}

	joiner := &Participant{Identity: identity, ConnID: connID, Connected: true}
	s.Players[1] = joiner
	if err := s.transition(next); err != nil {
		return nil, err
	}
	s.touch()
	logger.LogGameEvent("participant_joined", matchID, map[string]interface{}{"identity": identity})
	s.broadcast(c.notifier, NewEvent(EventParticipantJoined, matchID, JoinedPayload{
		Identity: identity,
		Players:  s.playerViews(),
	}))

	if s.Currency == models.CurrencyPoints {
		if _, err := c.ledger.Delegate(ctx, matchID, identity); err != nil {
			c.logger.Error("委托失败，放弃对局", zap.String("match_id", matchID), zap.Error(err))
			c.finish(s, nil, models.FinishAbandoned)
			return s.View(), nil
		}
		s.Delegated = true
		c.scheduleStart(s, c.Timings().FirstRoundDelay, c.Timings().RoundTimeout)
	}
	return s.View(), nil
}

// displace 第二席位被账本之外的身份占用，腾出席位并退回等待
func (c *Coordinator) displace(s *Session) {
	holder := s.Players[1]
	if holder.graceTimer != nil {
		holder.graceGen++
		holder.graceTimer.Stop()
		holder.graceTimer = nil
	}
	s.Players[1] = nil
	if s.Status == SessionStaking {
		s.Status = SessionWaiting
	}
	c.release(holder.Identity, s.MatchID)
	c.logger.Warn("席位与账本记录不符，已移除",
		zap.String("match_id", s.MatchID),
		zap.String("identity", holder.Identity))
	s.sendTo(c.notifier, holder, NewEvent(EventParticipantLeft, s.MatchID, PresencePayload{Identity: holder.Identity}))
	s.broadcast(c.notifier, NewEvent(EventSessionState, s.MatchID, s.View()))
}

// AcknowledgeStake 原生代币对局的押注确认：创建者发送 onchain_created，加入者发送 onchain_joined
//
// 双方都确认后，协调者核对账本记录并接管推进权限。
func (c *Coordinator) AcknowledgeStake(ctx context.Context, identity, matchID string) (*SessionView, error) {
	s, err := c.lookup(matchID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.participant(identity)
	if p == nil {
		return nil, apperrors.New(apperrors.ErrNotAParticipant)
	}
	if s.Currency != models.CurrencyNative {
		return nil, apperrors.New(apperrors.ErrInvalidState, "积分对局无需押注确认")
	}
	if s.Status != SessionWaiting && s.Status != SessionStaking {
		return nil, apperrors.New(apperrors.ErrInvalidState, "会话不在押注阶段: "+string(s.Status))
	}

	match, err := c.ledger.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if identity != match.PlayerOne {
		switch {
		case match.PlayerTwo == nil:
			return nil, apperrors.New(apperrors.ErrInvalidState, "账本上尚未加入该对局")
		case *match.PlayerTwo != identity:
			c.displace(s)
			return nil, apperrors.New(apperrors.ErrNotAParticipant, "账本对局的加入者不是当前身份")
		}
	}
	p.Ready = true
	s.touch()

	if s.Status != SessionStaking || !s.Players[0].Ready || !s.Players[1].Ready {
		s.broadcast(c.notifier, NewEvent(EventSessionState, matchID, s.View()))
		return s.View(), nil
	}

	if match.Status != models.MatchInProgress || match.PlayerOne != s.Players[0].Identity ||
		match.PlayerTwo == nil || *match.PlayerTwo != s.Players[1].Identity {
		p.Ready = false
		return nil, apperrors.Newf(apperrors.ErrInvalidState, "账本对局尚未就绪: %s", match.Status)
	}
	if _, err := c.ledger.Delegate(ctx, matchID, identity); err != nil {
		p.Ready = false
		return nil, err
	}
	s.Delegated = true
	if err := s.transition(SessionReady); err != nil {
		return nil, err
	}
	logger.LogGameEvent("delegated", matchID, map[string]interface{}{"authority": c.authority})
	t := c.Timings()
	c.scheduleStart(s, t.StakedFirstRoundDelay, t.FirstRoundTimeout)
	return s.View(), nil
}

// SubmitMove 提交本回合招式，双方都出招后立即判定
func (c *Coordinator) SubmitMove(identity string, move rps.Move) error {
	if !move.Valid() {
		return apperrors.New(apperrors.ErrInvalidMove)
	}
	s, err := c.sessionOf(identity)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != SessionActive {
		return apperrors.New(apperrors.ErrInvalidState, "对局未在进行中: "+string(s.Status))
	}
	p := s.participant(identity)
	if p == nil {
		return apperrors.New(apperrors.ErrNotAParticipant)
	}
	if p.Move != nil {
		return apperrors.Newf(apperrors.ErrMoveAlreadySubmitted, "第 %d 回合", s.Round)
	}

	p.Move = &move
	s.touch()
	s.sendTo(c.notifier, p, NewEvent(EventMoveAccepted, s.MatchID, RoundPayload{Round: s.Round}))
	s.sendTo(c.notifier, s.opponent(identity), NewEvent(EventOpponentMoved, s.MatchID, RoundPayload{Round: s.Round}))

	if s.Players[0].Move != nil && s.Players[1].Move != nil {
		c.resolveRound(s, nil)
	}
	return nil
}

// Leave 主动离开：对局中立即判负，尚未开打则放弃并退款
func (c *Coordinator) Leave(identity string) error {
	s, err := c.sessionOf(identity)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status.IsTerminal() {
		return apperrors.New(apperrors.ErrInvalidState, "对局已结束")
	}
	p := s.participant(identity)
	if p == nil {
		return apperrors.New(apperrors.ErrNotAParticipant)
	}

	logger.LogGameEvent("participant_left", s.MatchID, map[string]interface{}{"identity": identity})
	s.broadcast(c.notifier, NewEvent(EventParticipantLeft, s.MatchID, PresencePayload{Identity: identity}))
	switch s.Status {
	case SessionReady, SessionActive:
		c.finish(s, s.opponent(identity), models.FinishForfeit)
	default:
		c.finish(s, nil, models.FinishAbandoned)
	}
	return nil
}

// QueryState 查询会话快照；matchID 为空时查询身份当前所在的会话
func (c *Coordinator) QueryState(identity, matchID string) (*SessionView, error) {
	var (
		s   *Session
		err error
	)
	if matchID != "" {
		s, err = c.lookup(matchID)
	} else {
		s, err = c.sessionOf(identity)
	}
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.View(), nil
}

// Rebind 玩家在新连接上重新绑定；宽限期内重连不判负
func (c *Coordinator) Rebind(connID, identity string) (*SessionView, bool) {
	c.Bind(connID, identity)
	s, err := c.sessionOf(identity)
	if err != nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.participant(identity)
	if p == nil || s.Status.IsTerminal() {
		return nil, false
	}
	wasConnected := p.Connected
	p.ConnID = connID
	p.Connected = true
	if p.graceTimer != nil {
		p.graceGen++
		p.graceTimer.Stop()
		p.graceTimer = nil
	}
	if !wasConnected {
		logger.LogGameEvent("participant_reconnected", s.MatchID, map[string]interface{}{"identity": identity})
		s.sendTo(c.notifier, s.opponent(identity), NewEvent(EventParticipantReconnected, s.MatchID, PresencePayload{Identity: identity}))
	}
	view := s.View()
	s.sendTo(c.notifier, p, NewEvent(EventSessionState, s.MatchID, view))
	return view, true
}

// Disconnect 连接断开；对局进行中时开始宽限计时
func (c *Coordinator) Disconnect(connID string) {
	c.mu.Lock()
	identity, ok := c.conns[connID]
	delete(c.conns, connID)
	c.mu.Unlock()
	if !ok {
		return
	}
	s, err := c.sessionOf(identity)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.participant(identity)
	if p == nil || p.ConnID != connID || !p.Connected {
		return
	}
	p.Connected = false
	if s.Status == SessionWaiting || s.Status.IsTerminal() {
		return
	}

	grace := c.Timings().DisconnectGrace
	p.graceGen++
	gen := p.graceGen
	p.graceTimer = time.AfterFunc(grace, func() { c.graceExpired(s, identity, gen) })
	logger.LogGameEvent("participant_disconnected", s.MatchID, map[string]interface{}{"identity": identity})
	s.sendTo(c.notifier, s.opponent(identity), NewEvent(EventParticipantDisconnect, s.MatchID, PresencePayload{
		Identity: identity,
		GraceMs:  grace.Milliseconds(),
	}))
}

// graceExpired 宽限期结束仍未重连：对局中判负，押注阶段放弃
func (c *Coordinator) graceExpired(s *Session, identity string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.participant(identity)
	if p == nil || p.graceGen != gen || p.Connected || s.Status.IsTerminal() {
		return
	}
	p.graceTimer = nil
	if s.Status == SessionStaking {
		c.finish(s, nil, models.FinishAbandoned)
		return
	}
	c.finish(s, s.opponent(identity), models.FinishDisconnect)
}

// Stats 统计当前会话
func (c *Coordinator) Stats() Stats {
	sessions := c.snapshot()
	stats := Stats{
		Sessions:           len(sessions),
		SettledTotal:       c.settled.Load(),
		SettlementFailures: c.failures.Load(),
	}
	for _, s := range sessions {
		s.mu.Lock()
		switch {
		case s.Status == SessionWaiting || s.Status == SessionStaking:
			stats.Waiting++
		case s.Status.IsTerminal():
			stats.Finished++
		default:
			stats.Active++
		}
		if !s.Status.IsTerminal() {
			for _, p := range s.Players {
				if p != nil && p.Connected {
					stats.ConnectedPlayers++
				}
			}
		}
		s.mu.Unlock()
	}
	c.reportMu.Lock()
	stats.PendingReports = len(c.reports)
	c.reportMu.Unlock()
	c.retryMu.Lock()
	stats.PendingReports += len(c.retries)
	c.retryMu.Unlock()
	return stats
}

func (c *Coordinator) snapshot() []*Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sessions := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// SweepIdle 清理长时间无人加入的会话，押注全额退还
func (c *Coordinator) SweepIdle(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)
	swept := 0
	for _, s := range c.snapshot() {
		s.mu.Lock()
		if (s.Status == SessionWaiting || s.Status == SessionStaking) && s.UpdatedAt.Before(cutoff) {
			c.finish(s, nil, models.FinishAbandoned)
			swept++
		}
		s.mu.Unlock()
	}
	if swept > 0 {
		c.logger.Info("清理闲置会话", zap.Int("count", swept))
	}
	return swept
}
