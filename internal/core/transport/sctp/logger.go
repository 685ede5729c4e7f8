package sctp

import (
	"fmt"
	"log/slog"

	"github.com/pion/logging"

	"github.com/dep2p/go-assoc/pkg/lib/log"
)

// levelTrace pion 的 trace 级别，低于 debug
const levelTrace = slog.LevelDebug - 4

// loggerFactory 把 pion 日志桥接到 pkg/lib/log
type loggerFactory struct {
	logger *log.LazyLogger
}

var _ logging.LoggerFactory = loggerFactory{}

// NewLogger 实现 logging.LoggerFactory
func (f loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &pionLogger{scope: scope, logger: f.logger}
}

type pionLogger struct {
	scope  string
	logger *log.LazyLogger
}

func (l *pionLogger) Trace(msg string) {
	if l.logger.Enabled(levelTrace) {
		l.logger.Debug(msg, "scope", l.scope, "trace", true)
	}
}

func (l *pionLogger) Tracef(format string, args ...interface{}) {
	if l.logger.Enabled(levelTrace) {
		l.logger.Debug(fmt.Sprintf(format, args...), "scope", l.scope, "trace", true)
	}
}

func (l *pionLogger) Debug(msg string) {
	if l.logger.Enabled(log.LevelDebug) {
		l.logger.Debug(msg, "scope", l.scope)
	}
}

func (l *pionLogger) Debugf(format string, args ...interface{}) {
	if l.logger.Enabled(log.LevelDebug) {
		l.logger.Debug(fmt.Sprintf(format, args...), "scope", l.scope)
	}
}

func (l *pionLogger) Info(msg string) {
	l.logger.Info(msg, "scope", l.scope)
}

func (l *pionLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...), "scope", l.scope)
}

func (l *pionLogger) Warn(msg string) {
	l.logger.Warn(msg, "scope", l.scope)
}

func (l *pionLogger) Warnf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...), "scope", l.scope)
}

func (l *pionLogger) Error(msg string) {
	l.logger.Error(msg, "scope", l.scope)
}

func (l *pionLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...), "scope", l.scope)
}
