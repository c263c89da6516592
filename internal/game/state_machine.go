package game

import (
	apperrors "github.com/wfunc/rps-arena/internal/errors"
)

// SessionStatus 会话状态
type SessionStatus string

const (
	SessionWaiting   SessionStatus = "waiting"   // 等待第二位玩家
	SessionStaking   SessionStatus = "staking"   // 原生代币对局，等待双方押注确认与委托
	SessionReady     SessionStatus = "ready"     // 已委托，等待第一回合开始
	SessionActive    SessionStatus = "active"    // 对局中
	SessionFinished  SessionStatus = "finished"  // 已决出胜负
	SessionAbandoned SessionStatus = "abandoned" // 已放弃，全额退款
)

// transitions 合法的状态转换
var transitions = map[SessionStatus][]SessionStatus{
	SessionWaiting: {SessionReady, SessionStaking, SessionAbandoned},
	SessionStaking: {SessionReady, SessionAbandoned},
	SessionReady:   {SessionActive, SessionFinished, SessionAbandoned},
	SessionActive:  {SessionFinished, SessionAbandoned},
}

// CanTransition 是否允许从 from 转换到 to
func CanTransition(from, to SessionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal 是否为终态
func (s SessionStatus) IsTerminal() bool {
	return s == SessionFinished || s == SessionAbandoned
}

// transition 在对局锁内切换状态
func (s *Session) transition(to SessionStatus) error {
	if !CanTransition(s.Status, to) {
		return apperrors.Newf(apperrors.ErrInvalidState, "会话状态 %s 不能转换到 %s", s.Status, to)
	}
	s.Status = to
	return nil
}
