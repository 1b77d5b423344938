// Package config loads application configuration from environment
// variables.  A .env file, when present, is loaded by main before Load is
// called.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	// MySQL.  When DBHost is empty the in-memory store is used.
	DBUser string
	DBPass string
	DBHost string
	DBPort string
	DBName string

	JWTSecret         string // secret used to sign admin tokens
	AccessTTLMin      int    // admin token lifetime in minutes
	AdminLoginEmail   string // the single operator account
	AdminPasswordHash string // bcrypt hash of the operator password

	RedisEnabled bool          // use Redis for lock, quota, cache and rate limit
	LockKey      string        // Redis key of the batch lock
	LockTTL      time.Duration // expiry of a held lock; must exceed the longest batch

	AMQPURL   string // RabbitMQ URL; empty means mail is written to the log
	MailQueue string // queue name for outbound mail
	MailLog   string // file the mail consumer appends delivered messages to

	LogLevel  string // debug, info, warn, error
	LogFormat string // json or text

	Schedule  ScheduleConfig
	Policy    Policy
	SlotGen   SlotGenConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
}

// ScheduleConfig holds the wall-clock times (HH:MM, slot timezone) of the
// recurring jobs.
type ScheduleConfig struct {
	ReminderAt string
	DigestAt   string
	CleanupAt  string
	FlushEvery time.Duration
}

// Validate rejects trigger times the scheduler cannot honour.
func (s ScheduleConfig) Validate() error {
	if s.FlushEvery <= 0 {
		return errors.New("MAIL_FLUSH_EVERY must be positive")
	}
	for name, at := range map[string]string{"REMINDER_AT": s.ReminderAt, "DIGEST_AT": s.DigestAt, "CLEANUP_AT": s.CleanupAt} {
		if _, err := time.Parse("15:04", at); err != nil {
			return fmt.Errorf("%s: want HH:MM, got %q", name, at)
		}
	}
	return nil
}

// DatabaseEnabled reports whether MySQL is configured.
func (c Config) DatabaseEnabled() bool { return c.DBHost != "" }

// Load reads configuration values from environment variables.  Missing
// required variables and invalid booking rules are reported as errors.
func Load() (Config, error) {
	secret, err := must("JWT_SECRET")
	if err != nil {
		return Config{}, err
	}
	policy, err := LoadPolicy()
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Env:               envStr("APP_ENV", "dev"),
		Port:              envStr("APP_PORT", "8080"),
		DBUser:            envStr("DB_USER", ""),
		DBPass:            envStr("DB_PASS", ""),
		DBHost:            envStr("DB_HOST", ""),
		DBPort:            envStr("DB_PORT", "3306"),
		DBName:            envStr("DB_NAME", "slot_booking"),
		JWTSecret:         secret,
		AccessTTLMin:      envInt("ACCESS_TOKEN_TTL_MIN", 60),
		AdminLoginEmail:   envStr("ADMIN_LOGIN_EMAIL", ""),
		AdminPasswordHash: envStr("ADMIN_PASSWORD_HASH", ""),
		RedisEnabled:      envBool("REDIS_ENABLED", false),
		LockKey:           envStr("LOCK_KEY", "slot-booking:batch-lock"),
		LockTTL:           envDur("LOCK_TTL", 10*time.Minute),
		AMQPURL:           envStr("AMQP_URL", ""),
		MailQueue:         envStr("MAIL_QUEUE", "mail.outbound"),
		MailLog:           envStr("MAIL_LOG", "logs/mail.log"),
		LogLevel:          envStr("LOG_LEVEL", "info"),
		LogFormat:         envStr("LOG_FORMAT", "json"),
		Schedule: ScheduleConfig{
			ReminderAt: envStr("REMINDER_AT", "18:00"),
			DigestAt:   envStr("DIGEST_AT", "08:00"),
			CleanupAt:  envStr("CLEANUP_AT", "03:00"),
			FlushEvery: envDur("MAIL_FLUSH_EVERY", time.Hour),
		},
		Policy:    policy,
		SlotGen:   LoadSlotGenConfig(),
		RateLimit: LoadRateLimitConfig(),
		Cache:     LoadCacheConfig(),
	}
	if err := cfg.Schedule.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
