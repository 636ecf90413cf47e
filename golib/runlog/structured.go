package runlog

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewStructured returns a JSON zap logger with RFC3339 timestamps and caller information.
// Errors go to stderr, everything else to stdout; debug entries are kept only when verbose is set.
func NewStructured(verbose bool) *zap.Logger {
	return newStructured(zapcore.Lock(os.Stdout), zapcore.Lock(os.Stderr), verbose)
}

// NewStructuredTo is NewStructured with every level written to w
func NewStructuredTo(w io.Writer, verbose bool) *zap.Logger {
	ws := zapcore.AddSync(w)
	return newStructured(ws, ws, verbose)
}

func newStructured(out, errOut zapcore.WriteSyncer, verbose bool) *zap.Logger {
	minLevel := zapcore.InfoLevel
	if verbose {
		minLevel = zapcore.DebugLevel
	}
	isErrorLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel
	})
	isInfoLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= minLevel && lvl < zapcore.ErrorLevel
	})

	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.RFC3339TimeEncoder
	encoder := zapcore.NewJSONEncoder(config)

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, errOut, isErrorLevel),
		zapcore.NewCore(encoder, out, isInfoLevel),
	)
	return zap.New(core, zap.AddCaller())
}
