package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"4000" validate:"min=1000,max=65535"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"quiz_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"quiz_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"quiz_game_db"`

	// Empty host disables the cross-instance broadcast relay.
	RedisHost string `env:"REDIS_HOST" envDefault:""`
	RedisPort uint16 `env:"REDIS_PORT" envDefault:"6379" validate:"min=1000,max=65535"`

	StoreBaseURL string        `env:"STORE_BASE_URL" envDefault:"http://localhost:4000/api"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT"  envDefault:"10s"`

	PositionThrottle   time.Duration `env:"POSITION_THROTTLE"   envDefault:"100ms"`
	WhiteboardThrottle time.Duration `env:"WHITEBOARD_THROTTLE" envDefault:"50ms"`

	ClassCapacity   int           `env:"CLASS_CAPACITY"    envDefault:"37" validate:"min=2"`
	ConnectionLimit int           `env:"CONNECTION_LIMIT"  envDefault:"50" validate:"min=1"`
	CreateGraceWait time.Duration `env:"CREATE_GRACE_WAIT" envDefault:"2s"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
