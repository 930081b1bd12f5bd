package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Game     GameConfig     `mapstructure:"game"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// GameConfig 游戏时间参数，默认值与原始玩法保持一致
type GameConfig struct {
	CountdownSeconds   int `mapstructure:"countdown_seconds"`
	GraceSeconds       int `mapstructure:"grace_seconds"`
	TieToleranceMs     int `mapstructure:"tie_tolerance_ms"`
	PhaseTimeoutSec    int `mapstructure:"phase_timeout_seconds"`
	HeartbeatSeconds   int `mapstructure:"heartbeat_seconds"`
	StalenessSeconds   int `mapstructure:"staleness_seconds"`
	PollIntervalMs     int `mapstructure:"poll_interval_ms"`
	SettleDelayMs      int `mapstructure:"settle_delay_ms"`
	ResultsDelaySec    int `mapstructure:"results_delay_seconds"`
	DefaultTimeBankSec int `mapstructure:"default_time_bank_seconds"`
	DefaultTotalRounds int `mapstructure:"default_total_rounds"`
	MinPlayers         int `mapstructure:"min_players"`
	MaxPlayers         int `mapstructure:"max_players"`
}

func (g GameConfig) Countdown() time.Duration    { return time.Duration(g.CountdownSeconds) * time.Second }
func (g GameConfig) Grace() time.Duration        { return time.Duration(g.GraceSeconds) * time.Second }
func (g GameConfig) TieTolerance() time.Duration { return time.Duration(g.TieToleranceMs) * time.Millisecond }
func (g GameConfig) PhaseTimeout() time.Duration { return time.Duration(g.PhaseTimeoutSec) * time.Second }
func (g GameConfig) Heartbeat() time.Duration    { return time.Duration(g.HeartbeatSeconds) * time.Second }
func (g GameConfig) Staleness() time.Duration    { return time.Duration(g.StalenessSeconds) * time.Second }
func (g GameConfig) PollInterval() time.Duration { return time.Duration(g.PollIntervalMs) * time.Millisecond }
func (g GameConfig) SettleDelay() time.Duration  { return time.Duration(g.SettleDelayMs) * time.Millisecond }
func (g GameConfig) ResultsDelay() time.Duration { return time.Duration(g.ResultsDelaySec) * time.Second }

func setDefaults() {
	viper.SetDefault("server.http_address", ":8080")
	viper.SetDefault("server.rpc_address", ":8081")
	viper.SetDefault("server.metrics_address", ":9100")

	// 与原始实现行为兼容的默认值
	viper.SetDefault("game.countdown_seconds", 5)
	viper.SetDefault("game.grace_seconds", 5)
	viper.SetDefault("game.tie_tolerance_ms", 100)
	viper.SetDefault("game.phase_timeout_seconds", 60)
	viper.SetDefault("game.heartbeat_seconds", 5)
	viper.SetDefault("game.staleness_seconds", 12)
	viper.SetDefault("game.poll_interval_ms", 100)
	viper.SetDefault("game.settle_delay_ms", 300)
	viper.SetDefault("game.results_delay_seconds", 8)
	viper.SetDefault("game.default_time_bank_seconds", 30)
	viper.SetDefault("game.default_total_rounds", 10)
	viper.SetDefault("game.min_players", 2)
	viper.SetDefault("game.max_players", 8)
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	setDefaults()
	viper.AutomaticEnv()

	if err = viper.ReadInConfig(); err != nil {
		// 配置文件缺失时使用默认值
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	err = viper.Unmarshal(&config)
	return
}
