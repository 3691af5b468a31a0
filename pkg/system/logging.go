package system

import (
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the CLI logger. Output is a console encoding on w
// (stderr when nil) so stdout stays free for listings and the resume
// command. Debug lowers the level and adds caller information.
func NewLogger(debug bool, w io.Writer) *zap.SugaredLogger {
	if w == nil {
		w = os.Stderr
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	level := zapcore.InfoLevel
	opts := []zap.Option{}
	if debug {
		level = zapcore.DebugLevel
		opts = append(opts, zap.AddCaller())
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core, opts...).Sugar()
}

// BrokerFields returns key/value pairs identifying a broker for
// Infow/Errorw calls. The address is omitted when empty.
func BrokerFields(id int, name, address string) []interface{} {
	if address == "" {
		return []interface{}{"id", id, "broker", name}
	}
	return []interface{}{"id", id, "broker", name, "address", address}
}
