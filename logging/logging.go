// Package logging provides named loggers backed by zap. The library's hot
// paths do not log; the assembly orchestrator and the dirauth tool log
// through this package.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mut      sync.RWMutex
	logLevel zapcore.Level
)

// Logger is the logging interface used throughout the module. It is a
// subset of zap.SugaredLogger.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Panic(args ...interface{})
	Panicf(template string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(template string, args ...interface{})
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	case "panic":
		return zap.PanicLevel
	case "fatal":
		return zap.FatalLevel
	default:
		panic("invalid log level '" + level + "'")
	}
}

// SetLogLevel sets the level used by loggers created after the call.
func SetLogLevel(levelStr string) {
	level := parseLevel(levelStr)
	mut.Lock()
	logLevel = level
	mut.Unlock()
}

// New returns a new logger for stderr with the given name.
func New(name string) Logger {
	var config zap.Config
	if strings.ToLower(os.Getenv("TOR_LOG_TYPE")) == "json" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	}
	mut.RLock()
	config.Level.SetLevel(logLevel)
	mut.RUnlock()
	l, err := config.Build()
	if err != nil {
		panic(err)
	}
	return l.Sugar().Named(name)
}

// NewWithDest returns a new logger for the given destination with the given
// name.
func NewWithDest(dest io.Writer, name string) Logger {
	mut.RLock()
	atom := zap.NewAtomicLevelAt(logLevel)
	mut.RUnlock()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.AddSync(dest), atom)
	return zap.New(core).Sugar().Named(name)
}
