package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/rps-arena/internal/config"
	apperrors "github.com/wfunc/rps-arena/internal/errors"
	"github.com/wfunc/rps-arena/internal/game"
	"github.com/wfunc/rps-arena/internal/ledger"
	"github.com/wfunc/rps-arena/internal/middleware"
	"github.com/wfunc/rps-arena/internal/service"
	"github.com/wfunc/rps-arena/internal/utils"
	ws "github.com/wfunc/rps-arena/internal/websocket"
)

// Dependencies 路由依赖
type Dependencies struct {
	DB          *gorm.DB
	Ledger      *ledger.Ledger
	Coordinator *game.Coordinator
	Hub         *ws.Hub
	Auth        service.AuthService
	WebSocket   config.WebSocketConfig
	Logger      *zap.Logger
}

// Router API路由器
type Router struct {
	engine         *gin.Engine
	db             *gorm.DB
	ledgerHandler  *LedgerHandler
	authHandler    *AuthHandler
	adminHandler   *AdminHandler
	wsHandler      *WebSocketHandler
	authMiddleware *middleware.AuthMiddleware
	wsPath         string
	log            *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(deps *Dependencies) *Router {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	wsPath := deps.WebSocket.Path
	if wsPath == "" {
		wsPath = "/ws"
	}

	engine := gin.New()
	engine.Use(middleware.Recovery())
	engine.Use(middleware.RequestLogger())

	router := &Router{
		engine:         engine,
		db:             deps.DB,
		ledgerHandler:  NewLedgerHandler(deps.Ledger, log),
		authHandler:    NewAuthHandler(deps.Auth),
		adminHandler:   NewAdminHandler(deps.Ledger, deps.Coordinator, deps.Hub, log),
		wsHandler:      NewWebSocketHandler(deps.Hub, deps.WebSocket, log),
		authMiddleware: middleware.NewAuthMiddleware(deps.Auth),
		wsPath:         wsPath,
		log:            log,
	}
	router.setupRoutes()
	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.healthCheck)

	v1 := r.engine.Group("/api/v1")
	{
		v1.POST("/auth/operator", r.authHandler.OperatorLogin)

		// 公开查询
		v1.GET("/profiles/:identity", r.ledgerHandler.GetProfile)
		v1.GET("/matches/:id", r.ledgerHandler.GetMatch)
		v1.GET("/matches/:id/entries", r.ledgerHandler.Entries)

		signed := v1.Group("")
		signed.Use(r.authMiddleware.RequireAuth())
		{
			signed.POST("/profiles", r.ledgerHandler.InitializeProfile)
			signed.POST("/profiles/referrer", r.ledgerHandler.SetReferrer)
			signed.GET("/accounts/me", r.ledgerHandler.MyAccount)

			signed.POST("/matches", r.ledgerHandler.CreateMatch)
			matches := signed.Group("/matches/:id")
			{
				matches.POST("/join", r.ledgerHandler.JoinMatch)
				matches.POST("/commit", r.ledgerHandler.Commit)
				matches.POST("/reveal", r.ledgerHandler.Reveal)
				matches.POST("/finalize", r.ledgerHandler.Finalize)
				matches.POST("/abandon", r.ledgerHandler.Abandon)
				matches.POST("/finalize-abandoned", r.ledgerHandler.FinalizeAbandoned)
				matches.POST("/delegate", r.ledgerHandler.Delegate)
				matches.POST("/undelegate", r.ledgerHandler.Undelegate)
			}
		}

		admin := v1.Group("/admin")
		admin.Use(r.authMiddleware.RequireRole(utils.RoleOperator))
		{
			admin.POST("/deposit", r.adminHandler.Deposit)
			admin.GET("/stats", r.adminHandler.Stats)
		}
	}

	r.engine.GET(r.wsPath, r.authMiddleware.RequireAuth(), r.wsHandler.GameWebSocket)

	registerOpenAPIRoutes(r.engine)
	registerSwaggerRoutes(r.engine)

	r.engine.NoRoute(func(c *gin.Context) {
		respondError(c, apperrors.New(apperrors.ErrNotFound, "接口不存在"))
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	sqlDB, err := r.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		r.log.Warn("健康检查失败", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"message": "数据库不可用",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
	})
}

// Handler 返回 http.Handler
func (r *Router) Handler() http.Handler {
	return r.engine
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
