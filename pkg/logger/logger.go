// Package logger configures the global zerolog logger and adapts it for gorm.
package logger

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Init sets up the global logger. Development gets a console writer,
// everything else gets JSON with timestamps and callers.
func Init(serviceName, env, level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().
			Str("service", serviceName).
			Logger()
		zerolog.DefaultContextLogger = &log.Logger
		return
	}

	log.Logger = zerolog.New(os.Stdout).
		With().
		Timestamp().
		Caller().
		Str("service", serviceName).
		Logger()
	zerolog.DefaultContextLogger = &log.Logger
}

// Gorm routes gorm's query logging through zerolog.
type Gorm struct {
	Level         gormlogger.LogLevel
	SlowThreshold time.Duration
}

// NewGorm returns a gorm logger that reports errors and slow queries.
func NewGorm() *Gorm {
	return &Gorm{Level: gormlogger.Warn, SlowThreshold: 200 * time.Millisecond}
}

func (l *Gorm) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.Level = level
	return &clone
}

func (l *Gorm) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.Level >= gormlogger.Info {
		log.Ctx(ctx).Info().Msgf(msg, data...)
	}
}

func (l *Gorm) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.Level >= gormlogger.Warn {
		log.Ctx(ctx).Warn().Msgf(msg, data...)
	}
}

func (l *Gorm) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.Level >= gormlogger.Error {
		log.Ctx(ctx).Error().Msgf(msg, data...)
	}
}

// Trace logs failed queries, slow queries and, at Info level, every query.
func (l *Gorm) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.Level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	logger := log.Ctx(ctx)

	switch {
	case err != nil && l.Level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		logger.Error().Err(err).Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("gorm query error")
	case l.SlowThreshold != 0 && elapsed > l.SlowThreshold && l.Level >= gormlogger.Warn:
		logger.Warn().Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("gorm slow query")
	case l.Level >= gormlogger.Info:
		logger.Debug().Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("gorm query")
	}
}
