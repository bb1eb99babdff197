package logger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes gorm's SQL trace through the global slog logger.
//
// Missing rows are answered as NotFound by the services and duplicate keys
// are how concurrent posts and repeated numbers are detected, so neither is
// logged as a database error.
type GormLogger struct {
	Level         gormlogger.LogLevel
	SlowThreshold time.Duration
}

func NewGormLogger(level gormlogger.LogLevel, slowThreshold time.Duration) *GormLogger {
	return &GormLogger{Level: level, SlowThreshold: slowThreshold}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.Level = level
	return &clone
}

func (l *GormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	l.printf(gormlogger.Info, slog.LevelInfo, msg, data...)
}

func (l *GormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	l.printf(gormlogger.Warn, slog.LevelWarn, msg, data...)
}

func (l *GormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	l.printf(gormlogger.Error, slog.LevelError, msg, data...)
}

func (l *GormLogger) printf(min gormlogger.LogLevel, level slog.Level, msg string, data ...interface{}) {
	if l.Level >= min {
		Log.Log(context.Background(), level, fmt.Sprintf(msg, data...), slog.String("component", "gorm"))
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.Level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	attrs := []any{
		slog.String("sql", sql),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", elapsed),
	}

	switch {
	case err == nil, errors.Is(err, gorm.ErrRecordNotFound):
	case errors.Is(err, gorm.ErrDuplicatedKey):
		if l.Level >= gormlogger.Warn {
			Log.WarnContext(ctx, "SQL duplicate key", append(attrs, slog.String("error", err.Error()))...)
		}
		return
	default:
		if l.Level >= gormlogger.Error {
			Log.ErrorContext(ctx, "SQL error", append(attrs, slog.String("error", err.Error()))...)
		}
		return
	}

	if l.SlowThreshold > 0 && elapsed > l.SlowThreshold && l.Level >= gormlogger.Warn {
		Log.WarnContext(ctx, "Slow SQL", attrs...)
		return
	}
	if l.Level >= gormlogger.Info {
		Log.DebugContext(ctx, "SQL", attrs...)
	}
}
