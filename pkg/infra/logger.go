package infra

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Allow changing log level at run time.
	LoggerLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// LoggerFactory hands out one named logger per component. All of them
// share LoggerLevel.
type LoggerFactory struct {
	baseLogger *zap.Logger
}

func (f *LoggerFactory) Create(name string) *zap.Logger {
	return f.baseLogger.Named(name)
}

// ProvideLoggerFactory logs to stdout in console format, or json when
// LOG_ENCODING=json. The cleanup flushes buffered entries.
func ProvideLoggerFactory() (*LoggerFactory, func()) {
	encoding := "console"
	encodeLevel := zapcore.CapitalColorLevelEncoder
	if os.Getenv("LOG_ENCODING") == "json" {
		encoding = "json"
		encodeLevel = zapcore.CapitalLevelEncoder
	}

	var cfg = zap.Config{
		Level:            LoggerLevel,
		Development:      false,
		Encoding:         encoding,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "name",
			CallerKey:      "caller",
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    encodeLevel,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
	}
	logger := zap.Must(cfg.Build())
	logger.Info("logger created", zap.String("encoding", encoding))

	return &LoggerFactory{baseLogger: logger}, func() {
		// Syncing stdout fails on some platforms, nothing to do about it.
		_ = logger.Sync()
	}
}

// ProvideNopLoggerFactory discards everything. For tests.
func ProvideNopLoggerFactory() *LoggerFactory {
	return &LoggerFactory{
		baseLogger: zap.NewNop(),
	}
}
