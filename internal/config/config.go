package config

import "time"

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN"`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" envDefault:"30m"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// StripeConfig selects the payment gateway. An empty secret key runs the
// in-process sandbox gateway.
type StripeConfig struct {
	SecretKey string `env:"STRIPE_SECRET_KEY" envDefault:""`
	Currency  string `env:"STRIPE_CURRENCY" envDefault:"usd"`
	// SandboxAutoSettle makes sandbox intents succeed immediately.
	SandboxAutoSettle bool `env:"PAYMENTS_SANDBOX_AUTO_SETTLE" envDefault:"false"`
}

type EconomyConfig struct {
	DefaultBalance  int64         `env:"CREDITS_DEFAULT_BALANCE" envDefault:"10"`
	GenerationCost  int64         `env:"CREDITS_GENERATION_COST" envDefault:"1"`
	WelcomeBonus    int64         `env:"REFERRAL_WELCOME_BONUS" envDefault:"5"`
	ShareReward     int64         `env:"SHARE_REWARD" envDefault:"1"`
	ShareDailyLimit int64         `env:"SHARE_DAILY_LIMIT" envDefault:"3"`
	ListingLockTTL  time.Duration `env:"LISTING_LOCK_TTL" envDefault:"30s"`
	LockWaitTimeout time.Duration `env:"LOCK_WAIT_TIMEOUT" envDefault:"5s"`
}
