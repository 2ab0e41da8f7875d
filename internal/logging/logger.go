// Package logging builds the per-run execution logger.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewRunLogger creates a logger that writes the same console-encoded stream
// to stdout and to an execution log file inside the run root. The returned
// close function flushes and closes the file.
func NewRunLogger(runDir string, debug bool) (*zap.Logger, func(), error) {
	name := fmt.Sprintf("script_execution_%s.log", time.Now().Format("20060102_150405"))
	path := filepath.Join(runDir, name)

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "creating execution log %s", path)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encCfg)

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.AddSync(file), level),
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level),
	)
	logger := zap.New(core)

	closer := func() {
		_ = logger.Sync()
		_ = file.Close()
	}
	return logger, closer, nil
}
