package game

import (
	"context"
	"time"

	"github.com/wfunc/rps-arena/internal/ledger"
	"github.com/wfunc/rps-arena/internal/models"
)

// Ledger 协调者依赖的权威账本操作，*ledger.Ledger 实现该接口
type Ledger interface {
	Policy() ledger.Policy
	GetMatch(ctx context.Context, matchID string) (*models.Match, error)
	ListMatches(ctx context.Context, status models.MatchStatus, updatedBefore time.Time) ([]*models.Match, error)
	CreateMatch(ctx context.Context, p ledger.CreateMatchParams) (*models.Match, error)
	JoinMatch(ctx context.Context, matchID, identity string) (*models.Match, error)
	Delegate(ctx context.Context, matchID, requester string) (*models.Match, error)
	Undelegate(ctx context.Context, matchID, requester string, outcome *ledger.DelegationOutcome) (*models.Match, error)
	FinalizeMatch(ctx context.Context, matchID string) (*ledger.Settlement, error)
	AbandonMatch(ctx context.Context, matchID, identity string) (*models.Match, error)
	FinalizeAbandonedMatch(ctx context.Context, matchID string) (*ledger.Settlement, error)
}

// Notifier 把事件投递给某个连接
//
// 协调者在持有对局锁时调用 Send，实现不得阻塞，也不得回调 Coordinator。
type Notifier interface {
	Send(connID string, event *Event)
}

// HistoryStore 已结束对局的历史存储
type HistoryStore interface {
	Save(ctx context.Context, history *models.MatchHistory) error
}
