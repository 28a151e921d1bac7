// Package logging builds the service's zap logger.
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Modes accepted by New.
const (
	ModeDev  = "dev"
	ModeProd = "prod"
)

// New returns a colored console logger at debug level in dev mode and a
// JSON logger at info level otherwise.
func New(mode string) *zap.Logger {
	return newLogger(mode, os.Stdout)
}

func newLogger(mode string, w io.Writer) *zap.Logger {
	var core zapcore.Core

	if mode == ModeDev {
		zc := zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

		core = zapcore.NewCore(zapcore.NewConsoleEncoder(zc.EncoderConfig),
			zapcore.AddSync(w),
			zap.DebugLevel,
		)
	} else {
		core = zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(w),
			zap.InfoLevel,
		)
	}

	return zap.New(core, zap.AddCaller())
}
