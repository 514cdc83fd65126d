// Package xlog is the leveled printf logger used across metaldesk, backed by a zap JSON core.
package xlog

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

type Logger struct {
	mu    sync.RWMutex
	level int
}

const (
	TRACE = iota
	DEBUG
	INFO
	WARNING
	ERROR
	FATAL
)

var levelNames = []string{
	"TRACE",
	"DEBUG",
	"INFO",
	"WARNING",
	"ERROR",
	"FATAL",
}

var (
	_logger *Logger
	_once   sync.Once
)

// GetLogger returns the process logger, the level is read from MD_LOG_LVL once.
func GetLogger() *Logger {
	_once.Do(func() {
		lvl := os.Getenv("MD_LOG_LVL")
		_logger = &Logger{level: ParseLevel(lvl)}
		_logger.Debugf("using xlog with %s, MD_LOG_LVL:%s", levelNames[_logger.level], lvl)
	})
	return _logger
}

// ParseLevel accepts short and long level names, INFO otherwise.
func ParseLevel(s string) int {
	switch strings.ToUpper(s) {
	case "T", "TRC", "TRACE":
		return TRACE
	case "D", "DBG", "DEBUG":
		return DEBUG
	case "W", "WRN", "WARN", "WARNING":
		return WARNING
	case "E", "ERR", "ERROR":
		return ERROR
	case "F", "FTL", "FATAL":
		return FATAL
	}
	return INFO
}

func (s *Logger) SetLevel(level string) {
	s.mu.Lock()
	s.level = ParseLevel(level)
	s.mu.Unlock()
	s.Infof("set xlog level to %s", levelNames[s.GetLevel()])
}

func (s *Logger) GetLevel() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.level
}

func (s *Logger) enabled(level int) bool {
	return level >= s.GetLevel()
}

func (s *Logger) Tracef(format string, args ...interface{}) {
	if s.enabled(TRACE) {
		Zap.Debug("[TRC] "+fmt.Sprintf(format, args...), FileField())
	}
}

func (s *Logger) Debugf(format string, args ...interface{}) {
	if s.enabled(DEBUG) {
		Zap.Debug("[DBG] "+fmt.Sprintf(format, args...), FileField())
	}
}

func (s *Logger) Info(args ...interface{}) {
	if s.enabled(INFO) {
		Zap.Info("[INF] "+fmt.Sprint(args...), FileField())
	}
}

func (s *Logger) Infof(format string, args ...interface{}) {
	if s.enabled(INFO) {
		Zap.Info("[INF] "+fmt.Sprintf(format, args...), FileField())
	}
}

func (s *Logger) Warningf(format string, args ...interface{}) {
	if s.enabled(WARNING) {
		Zap.Warn("[WRN] "+fmt.Sprintf(format, args...), FileField())
	}
}

func (s *Logger) Error(args ...interface{}) {
	if s.enabled(ERROR) {
		Zap.Error("[ERR] "+fmt.Sprint(args...), FileField())
	}
}

func (s *Logger) Errorf(format string, args ...interface{}) {
	if s.enabled(ERROR) {
		Zap.Error("[ERR] "+fmt.Sprintf(format, args...), FileField())
	}
}

func (s *Logger) Fatalf(format string, args ...interface{}) {
	Zap.Fatal("[FTL] "+fmt.Sprintf(format, args...), FileField())
	os.Exit(1)
}

// Write lets the logger serve as an io.Writer, e.g. for gin's default writer.
func (s *Logger) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	Zap.Info(strings.TrimRight(string(p), "\n"), FileField())
	return len(p), nil
}
