// Package logging configures the process logger and bridges gorm onto it.
package logging

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// New builds a logrus logger. Unknown levels fall back to info; format is
// "json" or anything else for text.
func New(out io.Writer, level, format string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}
	return l
}

// GormLogger forwards gorm's SQL tracing to logrus.
type GormLogger struct {
	entry         *logrus.Entry
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger traces SQL at debug level and slow queries at warn.
func NewGormLogger(l logrus.FieldLogger, slow time.Duration) *GormLogger {
	lvl := gormlogger.Warn
	if lg, ok := l.(*logrus.Logger); ok && lg.IsLevelEnabled(logrus.DebugLevel) {
		lvl = gormlogger.Info
	}
	return &GormLogger{entry: l.WithField("component", "gorm"), level: lvl, slowThreshold: slow}
}

func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *GormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Info {
		g.entry.Infof(msg, args...)
	}
}

func (g *GormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Warn {
		g.entry.Warnf(msg, args...)
	}
}

func (g *GormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Error {
		g.entry.Errorf(msg, args...)
	}
}

func (g *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := logrus.Fields{"elapsed_ms": elapsed.Milliseconds(), "rows": rows}
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= gormlogger.Error:
		g.entry.WithFields(fields).WithError(err).Error(sql)
	case g.slowThreshold > 0 && elapsed > g.slowThreshold && g.level >= gormlogger.Warn:
		g.entry.WithFields(fields).Warn("slow query: " + sql)
	case g.level >= gormlogger.Info:
		g.entry.WithFields(fields).Debug(sql)
	}
}
