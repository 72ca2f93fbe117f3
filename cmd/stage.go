package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/musicdw/internal/config"
)

// withStageLog runs fn with the global logger also writing to the stage's
// log file under the configured log directory.
func withStageLog(stage string, fn func(log *zap.Logger) error) error {
	restore, err := config.AttachStageLog(cfg.Log, cfg.Paths.StageLog(stage))
	if err != nil {
		return err
	}
	defer restore()

	log := zap.L().With(zap.String("stage", stage))
	start := time.Now()
	log.Info("Starting " + stage)

	if err := fn(log); err != nil {
		log.Error(stage+" failed", zap.Error(err))
		return err
	}
	log.Info(stage+" finished", zap.Duration("duration", time.Since(start)))
	return nil
}
