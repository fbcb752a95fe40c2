package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger sends GORM's query log through zap. Queries slower than
// SlowThreshold are logged at warn regardless of the configured level.
type GormLogger struct {
	log           *zap.Logger
	level         gormlogger.LogLevel
	SlowThreshold time.Duration
}

var _ gormlogger.Interface = (*GormLogger)(nil)

func NewGormLogger(log *zap.Logger, level gormlogger.LogLevel, slow time.Duration) *GormLogger {
	return &GormLogger{log: log.Named("gorm"), level: level, SlowThreshold: slow}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.log.Sugar().Infof(msg, args...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.log.Sugar().Warnf(msg, args...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.log.Sugar().Errorf(msg, args...)
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		l.log.Error("query failed", append(fields, zap.Error(err))...)
	case l.SlowThreshold > 0 && elapsed > l.SlowThreshold && l.level >= gormlogger.Warn:
		l.log.Warn(fmt.Sprintf("slow query >= %v", l.SlowThreshold), fields...)
	case l.level >= gormlogger.Info:
		l.log.Debug("query", fields...)
	}
}
