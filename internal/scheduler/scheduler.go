package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/wfunc/rps-arena/internal/config"
	"github.com/wfunc/rps-arena/internal/game"
	"github.com/wfunc/rps-arena/internal/ledger"
)

// SessionSweeper 清理闲置会话
type SessionSweeper interface {
	SweepIdle(ttl time.Duration) int
	Stats() game.Stats
}

// LedgerStats 账本统计来源
type LedgerStats interface {
	Stats(ctx context.Context) (*ledger.Stats, error)
}

// Scheduler 后台定时任务
type Scheduler struct {
	inner    gocron.Scheduler
	sessions SessionSweeper
	ledger   LedgerStats
	idleTTL  func() time.Duration
	logger   *zap.Logger
}

// New 按配置注册任务；idleTTL 每次执行时读取，配置热更新后立即生效
func New(cfg config.SchedulerConfig, sessions SessionSweeper, l LedgerStats, idleTTL func() time.Duration, logger *zap.Logger) (*Scheduler, error) {
	inner, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	s := &Scheduler{
		inner:    inner,
		sessions: sessions,
		ledger:   l,
		idleTTL:  idleTTL,
		logger:   logger,
	}

	if cfg.SweepInterval > 0 {
		if _, err := inner.NewJob(
			gocron.DurationJob(cfg.SweepInterval),
			gocron.NewTask(s.sweep),
			gocron.WithName("sweep_idle_sessions"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return nil, err
		}
	}
	if cfg.StatsInterval > 0 {
		if _, err := inner.NewJob(
			gocron.DurationJob(cfg.StatsInterval),
			gocron.NewTask(s.logStats),
			gocron.WithName("log_stats"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start 启动
func (s *Scheduler) Start() {
	s.inner.Start()
	s.logger.Info("定时任务已启动", zap.Int("jobs", len(s.inner.Jobs())))
}

// Shutdown 停止并等待正在执行的任务
func (s *Scheduler) Shutdown() error {
	return s.inner.Shutdown()
}

func (s *Scheduler) sweep() {
	ttl := s.idleTTL()
	if ttl <= 0 {
		return
	}
	if n := s.sessions.SweepIdle(ttl); n > 0 {
		s.logger.Info("闲置会话已清理", zap.Int("count", n), zap.Duration("ttl", ttl))
	}
}

func (s *Scheduler) logStats() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sessions := s.sessions.Stats()
	fields := []zap.Field{
		zap.Int("sessions", sessions.Sessions),
		zap.Int("active", sessions.Active),
		zap.Int("connected_players", sessions.ConnectedPlayers),
		zap.Int("pending_reports", sessions.PendingReports),
		zap.Int64("settlement_failures", sessions.SettlementFailures),
	}
	stats, err := s.ledger.Stats(ctx)
	if err != nil {
		s.logger.Warn("读取账本统计失败", zap.Error(err))
	} else {
		fields = append(fields,
			zap.Int64("native_fees", stats.NativeFees),
			zap.Int64("points_fees", stats.PointsFees),
			zap.Int64("treasury_balance", stats.TreasuryBalance))
	}
	s.logger.Info("运行统计", fields...)
}
