package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	dlerrors "github.com/abdoElHodaky/dlob-go/pkg/errors"
)

// Config is the DLOB service's full runtime configuration: where to pull
// account updates from, how aggressively to rebuild and snapshot, and
// where the read API listens.
type Config struct {
	Solana struct {
		RPCEndpoint       string `mapstructure:"rpc_endpoint" validate:"required,url"`
		WebsocketEndpoint string `mapstructure:"websocket_endpoint" validate:"required"`
		ProgramID         string `mapstructure:"program_id" validate:"required"`
	} `mapstructure:"solana"`

	Ingest struct {
		NATSURL        string        `mapstructure:"nats_url" validate:"required"`
		Subject        string        `mapstructure:"subject" validate:"required"`
		WorkerPoolSize int           `mapstructure:"worker_pool_size" validate:"gt=0"`
		SlotPoll       time.Duration `mapstructure:"slot_poll_interval" validate:"gt=0"`
	} `mapstructure:"ingest"`

	Builder struct {
		RebuildInterval time.Duration `mapstructure:"rebuild_interval" validate:"gt=0"`
	} `mapstructure:"builder"`

	Snapshot struct {
		Timeout            time.Duration `mapstructure:"timeout" validate:"gt=0"`
		CircuitMaxRequests uint32        `mapstructure:"circuit_max_requests" validate:"gt=0"`
	} `mapstructure:"snapshot"`

	API struct {
		BindAddress     string `mapstructure:"bind_address" validate:"required"`
		RateLimitPerMin int    `mapstructure:"rate_limit_per_min" validate:"gt=0"`
	} `mapstructure:"api"`

	Monitoring struct {
		LogLevel       string `mapstructure:"log_level"`
		PrometheusPort int    `mapstructure:"prometheus_port" validate:"gt=0"`
	} `mapstructure:"monitoring"`
}

var (
	cfg  *Config
	once sync.Once
)

// LoadConfig reads configPath (or the default search path) into a Config,
// applying defaults first, then validating the result. Subsequent calls
// return the same instance; the service is expected to load configuration
// exactly once at startup.
func LoadConfig(configPath string) (*Config, error) {
	var err error

	once.Do(func() {
		cfg = &Config{}
		setDefaults()

		v := viper.New()
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if configPath != "" {
			v.AddConfigPath(configPath)
		} else {
			v.AddConfigPath(".")
			v.AddConfigPath("./config")
			v.AddConfigPath("/etc/dlob")
		}

		v.AutomaticEnv()
		v.SetEnvPrefix("DLOB")

		if readErr := v.ReadInConfig(); readErr != nil {
			if _, ok := readErr.(viper.ConfigFileNotFoundError); !ok {
				err = dlerrors.New(dlerrors.ErrInvalidConfiguration, "failed to read config file").WithCause(readErr)
				return
			}
		}

		if unmarshalErr := v.Unmarshal(cfg); unmarshalErr != nil {
			err = dlerrors.New(dlerrors.ErrInvalidConfiguration, "failed to unmarshal config").WithCause(unmarshalErr)
			return
		}

		if validateErr := validator.New().Struct(cfg); validateErr != nil {
			err = dlerrors.New(dlerrors.ErrInvalidConfiguration, "config failed validation").WithCause(validateErr)
			return
		}
	})

	return cfg, err
}

// GetConfig returns the previously loaded configuration, loading it from
// the default search path first if necessary.
func GetConfig() *Config {
	if cfg == nil {
		if _, err := LoadConfig(""); err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	}
	return cfg
}

func setDefaults() {
	cfg.Solana.RPCEndpoint = "http://localhost:8899"
	cfg.Solana.WebsocketEndpoint = "ws://localhost:8900"

	cfg.Ingest.NATSURL = "nats://localhost:4222"
	cfg.Ingest.Subject = "dlob.accounts"
	cfg.Ingest.WorkerPoolSize = 16
	cfg.Ingest.SlotPoll = time.Second

	cfg.Builder.RebuildInterval = 30 * time.Second

	cfg.Snapshot.Timeout = 10 * time.Second
	cfg.Snapshot.CircuitMaxRequests = 5

	cfg.API.BindAddress = "0.0.0.0:8080"
	cfg.API.RateLimitPerMin = 600

	cfg.Monitoring.LogLevel = "info"
	cfg.Monitoring.PrometheusPort = 9090
}

// InitLogger builds a zap.Logger whose level follows cfg.Monitoring.LogLevel.
func InitLogger(cfg *Config) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	switch cfg.Monitoring.LogLevel {
	case "debug":
		logger, err = zap.NewDevelopment()
	default:
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
