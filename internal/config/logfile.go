package config

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// lineEncoderConfig renders entries as "timestamp | LEVEL | message".
func lineEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " | ",
	}
}

// NewFileCore opens path for appending and returns a core that writes
// line-format entries to it, plus the function that closes the file.
func NewFileCore(path string, level zapcore.LevelEnabler) (zapcore.Core, func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, eris.Wrapf(err, "config: create log dir for %s", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "config: open log file %s", path)
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(lineEncoderConfig()), zapcore.AddSync(f), level)
	return core, f.Close, nil
}

// NewFileLogger returns a logger that only writes to path.
func NewFileLogger(path string) (*zap.Logger, func() error, error) {
	core, closeFn, err := NewFileCore(path, zapcore.DebugLevel)
	if err != nil {
		return nil, nil, err
	}
	return zap.New(core), closeFn, nil
}

// AttachStageLog tees the global logger into a stage log file. The returned
// function syncs, restores the previous global logger and closes the file.
func AttachStageLog(cfg LogConfig, path string) (func(), error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrap(err, "config: parse log level")
	}
	fileCore, closeFn, err := NewFileCore(path, level)
	if err != nil {
		return nil, err
	}

	logger := zap.L().WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, fileCore)
	}))
	restore := zap.ReplaceGlobals(logger)

	return func() {
		_ = logger.Sync()
		restore()
		_ = closeFn()
	}, nil
}
