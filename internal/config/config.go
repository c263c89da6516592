package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Log       LogConfig       `mapstructure:"log"`
	Security  SecurityConfig  `mapstructure:"security"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Game      GameConfig      `mapstructure:"game"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr 监听地址
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// WebSocketConfig WebSocket配置
type WebSocketConfig struct {
	Path              string        `mapstructure:"path"`
	ReadBufferSize    int           `mapstructure:"read_buffer_size"`
	WriteBufferSize   int           `mapstructure:"write_buffer_size"`
	MaxMessageSize    int64         `mapstructure:"max_message_size"`
	PingInterval      time.Duration `mapstructure:"ping_interval"`
	PongTimeout       time.Duration `mapstructure:"pong_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	SendBufferSize    int           `mapstructure:"send_buffer_size"`
	EnableCompression bool          `mapstructure:"enable_compression"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string            `mapstructure:"level"`
	Format  string            `mapstructure:"format"`
	Output  string            `mapstructure:"output"`
	File    LogFileConfig     `mapstructure:"file"`
	Modules map[string]string `mapstructure:"modules"`
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	JWT      JWTConfig      `mapstructure:"jwt"`
	Operator OperatorConfig `mapstructure:"operator"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	Issuer      string `mapstructure:"issuer"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// OperatorConfig 运营账号配置，密码以 argon2id 编码保存
type OperatorConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

// LedgerConfig 账本规则
type LedgerConfig struct {
	InitialPoints       int64  `mapstructure:"initial_points"`
	PlatformFeeBps      int64  `mapstructure:"platform_fee_bps"`
	ReferralBps         int64  `mapstructure:"referral_bps"`
	NativeWinBonus      int64  `mapstructure:"native_win_bonus"`
	MaxMatchIDLen       int    `mapstructure:"max_match_id_len"`
	MaxRoundsToWin      int    `mapstructure:"max_rounds_to_win"`
	CoordinatorIdentity string `mapstructure:"coordinator_identity"`
	TreasuryIdentity    string `mapstructure:"treasury_identity"`
}

// GameConfig 实时对局配置
type GameConfig struct {
	RoundTimeout          time.Duration `mapstructure:"round_timeout"`
	FirstRoundTimeout     time.Duration `mapstructure:"first_round_timeout"`
	CountdownInterval     time.Duration `mapstructure:"countdown_interval"`
	DisconnectGrace       time.Duration `mapstructure:"disconnect_grace"`
	EvictDelay            time.Duration `mapstructure:"evict_delay"`
	FirstRoundDelay       time.Duration `mapstructure:"first_round_delay"`
	StakedFirstRoundDelay time.Duration `mapstructure:"staked_first_round_delay"`
	IdleSessionTTL        time.Duration `mapstructure:"idle_session_ttl"`
	DefaultRoundsToWin    int           `mapstructure:"default_rounds_to_win"`
}

// SchedulerConfig 定时任务配置
type SchedulerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	StatsInterval time.Duration `mapstructure:"stats_interval"`
}

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
	v    *viper.Viper
)

// Init 初始化配置
func Init(configPath string) error {
	var err error
	once.Do(func() {
		// .env 中的变量先进入进程环境，再由 viper 读取
		if _, statErr := os.Stat(".env"); statErr == nil {
			if err = godotenv.Load(); err != nil {
				return
			}
		}

		v = viper.New()

		if configPath != "" {
			v.SetConfigFile(configPath)
		} else {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath("./config")
			v.AddConfigPath(".")
		}

		v.SetEnvPrefix("RPS_ARENA")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		setDefaults(v)

		if err = v.ReadInConfig(); err != nil {
			// 配置文件不存在时使用默认配置
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return
			}
			err = nil
		}

		loaded := &Config{}
		if err = v.Unmarshal(loaded); err != nil {
			return
		}
		if err = loaded.Validate(); err != nil {
			return
		}
		cfg = loaded
	})

	return err
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/rps-arena.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.slow_threshold", "200ms")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("websocket.path", "/ws")
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_timeout", "60s")
	v.SetDefault("websocket.write_timeout", "10s")
	v.SetDefault("websocket.send_buffer_size", 256)
	v.SetDefault("websocket.enable_compression", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "both")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "rps-arena.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.compress", true)

	v.SetDefault("security.jwt.secret", "change-me-in-production")
	v.SetDefault("security.jwt.issuer", "rps-arena")
	v.SetDefault("security.jwt.expire_hours", 24)
	v.SetDefault("security.operator.username", "operator")

	v.SetDefault("ledger.initial_points", 300)
	v.SetDefault("ledger.platform_fee_bps", 500)
	v.SetDefault("ledger.referral_bps", 100)
	v.SetDefault("ledger.native_win_bonus", 100)
	v.SetDefault("ledger.max_match_id_len", 32)
	v.SetDefault("ledger.max_rounds_to_win", 10)
	v.SetDefault("ledger.coordinator_identity", "coordinator")
	v.SetDefault("ledger.treasury_identity", "treasury")

	v.SetDefault("game.round_timeout", "15s")
	v.SetDefault("game.first_round_timeout", "30s")
	v.SetDefault("game.countdown_interval", "1s")
	v.SetDefault("game.disconnect_grace", "5s")
	v.SetDefault("game.evict_delay", "30s")
	v.SetDefault("game.first_round_delay", "1s")
	v.SetDefault("game.staked_first_round_delay", "2s")
	v.SetDefault("game.idle_session_ttl", "10m")
	v.SetDefault("game.default_rounds_to_win", 3)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.sweep_interval", "1m")
	v.SetDefault("scheduler.stats_interval", "5m")
}

// Validate 校验关键配置
func (c *Config) Validate() error {
	if c.Ledger.PlatformFeeBps < 0 || c.Ledger.PlatformFeeBps > 10000 {
		return fmt.Errorf("ledger.platform_fee_bps 超出范围: %d", c.Ledger.PlatformFeeBps)
	}
	if c.Ledger.ReferralBps < 0 || c.Ledger.ReferralBps > c.Ledger.PlatformFeeBps {
		return fmt.Errorf("ledger.referral_bps 不能超过平台手续费: %d", c.Ledger.ReferralBps)
	}
	if c.Game.RoundTimeout <= 0 || c.Game.CountdownInterval <= 0 {
		return fmt.Errorf("game.round_timeout 与 game.countdown_interval 必须为正")
	}
	if c.Ledger.CoordinatorIdentity == "" || c.Ledger.TreasuryIdentity == "" {
		return fmt.Errorf("ledger.coordinator_identity 与 ledger.treasury_identity 不能为空")
	}
	return nil
}

// Get 获取配置实例
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch 监听配置文件变化
func Watch(callback func(*Config)) {
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		mu.Lock()
		newCfg := &Config{}
		if err := v.Unmarshal(newCfg); err != nil {
			mu.Unlock()
			fmt.Printf("配置重载失败: %v\n", err)
			return
		}
		if err := newCfg.Validate(); err != nil {
			mu.Unlock()
			fmt.Printf("配置校验失败，保留旧配置: %v\n", err)
			return
		}
		cfg = newCfg
		mu.Unlock()

		if callback != nil {
			callback(newCfg)
		}

		fmt.Printf("配置已重新加载: %s\n", e.Name)
	})
}

// GetString 获取字符串配置
func GetString(key string) string {
	return v.GetString(key)
}

// GetInt 获取整数配置
func GetInt(key string) int {
	return v.GetInt(key)
}

// GetBool 获取布尔配置
func GetBool(key string) bool {
	return v.GetBool(key)
}

// GetDuration 获取时间间隔配置
func GetDuration(key string) time.Duration {
	return v.GetDuration(key)
}

// Default 返回仅包含默认值的配置，测试与工具使用
func Default() *Config {
	dv := viper.New()
	setDefaults(dv)
	c := &Config{}
	if err := dv.Unmarshal(c); err != nil {
		panic(err)
	}
	return c
}
