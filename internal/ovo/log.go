package ovo

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogPrefix starts every log line the plugin writes.
const LogPrefix = "LOG:  OsloVersionedObjectPlugin: "

// newLogger returns a logger that writes bare message lines to w, or a no-op
// logger when verbosity is not positive.
func newLogger(w io.Writer, verbosity int) *zap.Logger {
	if verbosity <= 0 {
		return zap.NewNop()
	}
	if w == nil {
		w = os.Stdout
	}
	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey: "msg",
		LineEnding: zapcore.DefaultLineEnding,
	})
	core := zapcore.NewCore(encoder, zapcore.AddSync(w), zapcore.DebugLevel)
	return zap.New(core)
}

func (p *VersionedObjectPlugin) logf(format string, args ...interface{}) {
	p.log.Info(LogPrefix + fmt.Sprintf(format, args...))
}
