package emit

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapEmitter writes events to a zap logger. Error events are logged at Error level,
// merge overwrites and timeouts at Warn, everything else at the configured level.
type ZapEmitter struct {
	logger *zap.Logger
	level  zapcore.Level
}

// NewZapEmitter creates a ZapEmitter. A nil logger discards every event.
func NewZapEmitter(logger *zap.Logger, level zapcore.Level) *ZapEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapEmitter{logger: logger, level: level}
}

// Emit logs event.
func (z *ZapEmitter) Emit(event Event) {
	level := z.level
	switch {
	case event.IsError():
		level = zapcore.ErrorLevel
	case event.Msg == MsgMergeOverwrite || event.Msg == MsgNodeTimeout:
		level = zapcore.WarnLevel
	}

	ce := z.logger.Check(level, event.Msg)
	if ce == nil {
		return
	}

	fields := make([]zap.Field, 0, 3+len(event.Meta))
	fields = append(fields, zap.String("run_id", event.RunID), zap.Int("step", event.Step))
	if event.NodeID != "" {
		fields = append(fields, zap.String("node_id", event.NodeID))
	}
	for k, v := range event.Meta {
		fields = append(fields, zap.Any(k, v))
	}
	ce.Write(fields...)
}
