package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/rps-arena/internal/api"
	"github.com/wfunc/rps-arena/internal/config"
	"github.com/wfunc/rps-arena/internal/database"
	apperrors "github.com/wfunc/rps-arena/internal/errors"
	"github.com/wfunc/rps-arena/internal/game"
	"github.com/wfunc/rps-arena/internal/ledger"
	"github.com/wfunc/rps-arena/internal/logger"
	"github.com/wfunc/rps-arena/internal/repository"
	"github.com/wfunc/rps-arena/internal/scheduler"
	"github.com/wfunc/rps-arena/internal/service"
	"github.com/wfunc/rps-arena/internal/utils"
	ws "github.com/wfunc/rps-arena/internal/websocket"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 服务器实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	db          *gorm.DB
	ledger      *ledger.Ledger
	coordinator *game.Coordinator
	hub         *ws.Hub
	auth        service.AuthService
	scheduler   *scheduler.Scheduler
	httpServer  *http.Server

	ctx    context.Context
	cancel context.CancelFunc
}

func main() {
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		issueToken  = flag.String("issue-token", "", "为指定身份签发玩家令牌后退出")
		showVersion = flag.Bool("version", false, "显示版本信息")
	)
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	if *issueToken != "" {
		os.Exit(printToken(cfg, *issueToken))
	}

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	server := NewServer(cfg)
	if err := server.Start(); err != nil {
		logger.Fatal("服务器启动失败", zap.Error(err))
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("服务器关闭失败", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("服务器已安全关闭")
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:    cfg,
		logger: logger.GetLogger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 启动服务器
func (s *Server) Start() error {
	s.logger.Info("正在启动猜拳对战服务器...",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode))

	if err := s.initComponents(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrUnknown, "初始化组件失败")
	}
	if err := s.startServices(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrUnknown, "启动服务失败")
	}

	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("配置已更新，正在重新加载...")
		s.reloadConfig(newCfg)
	})

	s.logger.Info("服务器启动成功",
		zap.String("http", s.cfg.Server.Addr()),
		zap.String("websocket", s.cfg.WebSocket.Path))
	return nil
}

// initComponents 按依赖顺序初始化组件
func (s *Server) initComponents() error {
	if err := s.initDatabase(); err != nil {
		return err
	}

	s.ledger = ledger.New(s.db, ledger.PolicyFromConfig(s.cfg.Ledger), logger.WithModule("ledger"))

	s.hub = ws.NewHub(nil, ws.OptionsFromConfig(s.cfg.WebSocket), logger.WithModule("websocket"))
	s.coordinator = game.NewCoordinator(&game.CoordinatorConfig{
		Ledger:             s.ledger,
		Notifier:           s.hub,
		History:            repository.NewHistoryRepository(s.db),
		Logger:             logger.WithModule("game"),
		Timings:            game.TimingsFromConfig(s.cfg.Game),
		DefaultRoundsToWin: s.cfg.Game.DefaultRoundsToWin,
	})
	s.hub.SetHandler(ws.NewGameMessageHandler(s.hub, s.coordinator, logger.WithModule("websocket")))

	s.auth = service.NewAuthService(s.cfg.Security, logger.WithModule("auth"))

	if s.cfg.Scheduler.Enabled {
		sched, err := scheduler.New(s.cfg.Scheduler, s.coordinator, s.ledger, func() time.Duration {
			if c := config.Get(); c != nil {
				return c.Game.IdleSessionTTL
			}
			return 0
		}, logger.WithModule("scheduler"))
		if err != nil {
			return err
		}
		s.scheduler = sched
	}

	gin.SetMode(ginMode(s.cfg.Server.Mode))
	router := api.NewRouter(&api.Dependencies{
		DB:          s.db,
		Ledger:      s.ledger,
		Coordinator: s.coordinator,
		Hub:         s.hub,
		Auth:        s.auth,
		WebSocket:   s.cfg.WebSocket,
		Logger:      logger.WithModule("api"),
	})
	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      router.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
	return nil
}

// initDatabase 初始化数据库
func (s *Server) initDatabase() error {
	if err := database.Init(&s.cfg.Database); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseConnect, "初始化数据库连接失败")
	}
	if s.cfg.Database.AutoMigrate {
		s.logger.Info("执行数据库自动迁移...")
		if err := database.AutoMigrate(); err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseConnect, "数据库迁移失败")
		}
	}
	if !database.IsConnected() {
		return apperrors.New(apperrors.ErrDatabaseConnect, "数据库连接检查失败")
	}
	s.db = database.GetDB()
	return nil
}

// startServices 启动服务
func (s *Server) startServices() error {
	// 上次进程遗留的委托对局无人推进，先退款
	recovered, err := game.NewRecoveryManager(logger.WithModule("recovery"), s.ledger).
		RecoverOrphans(s.ctx, time.Now())
	if err != nil {
		s.logger.Error("恢复遗留对局失败", zap.Error(err))
	} else if recovered > 0 {
		s.logger.Info("已恢复遗留对局", zap.Int("count", recovered))
	}

	go s.hub.Run()
	s.coordinator.Start(s.ctx)
	if s.scheduler != nil {
		s.scheduler.Start()
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Fatal("HTTP服务异常退出", zap.Error(err))
		}
	}()
	return nil
}

// WaitForShutdown 等待关闭信号
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	sig := <-sigCh
	s.logger.Info("收到退出信号", zap.String("signal", sig.String()))
}

// Shutdown 优雅关闭：先停止接入，再关闭连接，最后回写未完成的结算
func (s *Server) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP服务关闭超时", zap.Error(err))
		shutdownErr = apperrors.Wrap(err, apperrors.ErrTimeout, "关闭超时")
	}
	if s.scheduler != nil {
		if err := s.scheduler.Shutdown(); err != nil {
			s.logger.Warn("停止定时任务失败", zap.Error(err))
		}
	}
	s.hub.Shutdown()
	s.coordinator.Stop()
	s.cancel()

	if err := database.Close(); err != nil {
		s.logger.Error("关闭数据库失败", zap.Error(err))
	}
	if err := logger.Sync(); err != nil {
		fmt.Printf("同步日志失败: %v\n", err)
	}
	return shutdownErr
}

// reloadConfig 热更新日志级别与对局时长
func (s *Server) reloadConfig(newCfg *config.Config) {
	s.cfg = newCfg
	logger.SetLevel(newCfg.Log.Level)
	s.coordinator.UpdateTimings(game.TimingsFromConfig(newCfg.Game))
	s.logger.Info("配置重新加载完成",
		zap.String("log_level", newCfg.Log.Level),
		zap.Duration("round_timeout", newCfg.Game.RoundTimeout))
}

func ginMode(mode string) string {
	switch mode {
	case "production", "release":
		return gin.ReleaseMode
	case "test":
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}

// printToken 签发调试用的玩家令牌
func printToken(cfg *config.Config, identity string) int {
	manager := utils.NewJWTManager(cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer,
		time.Duration(cfg.Security.JWT.ExpireHours)*time.Hour)
	token, expiresAt, err := manager.GenerateToken(identity, utils.RolePlayer)
	if err != nil {
		fmt.Printf("签发令牌失败: %v\n", err)
		return 1
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "过期时间: %s\n", expiresAt.Format(time.RFC3339))
	return 0
}

func printVersion() {
	fmt.Printf("猜拳对战服务器\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
	fmt.Printf("操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
