// Package xgorm routes gorm's sql logging into xlog.
package xgorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"metaldesk/pkg/xlog"

	gl "gorm.io/gorm/logger"
)

type Config = gl.Config

var logger = xlog.GetLogger()

func New(config Config) gl.Interface {
	return &gormLogger{Config: config}
}

type gormLogger struct {
	Config
}

func (l *gormLogger) LogMode(level gl.LogLevel) gl.Interface {
	nl := *l
	nl.LogLevel = level
	return &nl
}

func (l gormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gl.Info {
		logger.Infof("gorm "+msg, data...)
	}
}

func (l gormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gl.Warn {
		logger.Warningf("gorm "+msg, data...)
	}
}

func (l gormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gl.Error {
		logger.Errorf("gorm "+msg, data...)
	}
}

// Trace logs failed, slow, and (in Info mode) every statement.
func (l gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gl.Silent {
		return
	}

	elapsed := time.Since(begin)
	ms := float64(elapsed.Nanoseconds()) / 1e6
	switch {
	case err != nil && l.LogLevel >= gl.Error && (!errors.Is(err, gl.ErrRecordNotFound) || !l.IgnoreRecordNotFoundError):
		sql, rows := fc()
		logger.Errorf("sql %s [%.3fms] [rows:%s] %s", err, ms, rowsString(rows), sql)
	case elapsed > l.SlowThreshold && l.SlowThreshold != 0 && l.LogLevel >= gl.Warn:
		sql, rows := fc()
		logger.Warningf("SLOW SQL >= %v [%.3fms] [rows:%s] %s", l.SlowThreshold, ms, rowsString(rows), sql)
	case l.LogLevel == gl.Info:
		sql, rows := fc()
		logger.Debugf("sql [%.3fms] [rows:%s] %s", ms, rowsString(rows), sql)
	}
}

func rowsString(rows int64) string {
	if rows == -1 {
		return "-"
	}
	return fmt.Sprint(rows)
}
