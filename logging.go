package fat32

import (
	"context"
	"log/slog"
)

// slogLevelTrace sits two steps below slog.LevelDebug, for the high-frequency
// sector-level events (FAT entry gets and puts) that are too noisy even for
// -v debug output.
const slogLevelTrace = slog.LevelDebug - 2

// trace/debug/info/warn/logerror are thin wrappers around the volume's
// logger. A nil logger is legal: every call checks it first and is a no-op
// when absent, so instrumentation never costs an allocation on the hot path
// of a volume that hasn't opted into logging.
func (v *Volume) trace(msg string, args ...any) {
	if v.log == nil {
		return
	}
	v.log.Log(context.Background(), slogLevelTrace, msg, args...)
}

func (v *Volume) debug(msg string, args ...any) {
	if v.log == nil {
		return
	}
	v.log.Debug(msg, args...)
}

func (v *Volume) info(msg string, args ...any) {
	if v.log == nil {
		return
	}
	v.log.Info(msg, args...)
}

func (v *Volume) warn(msg string, args ...any) {
	if v.log == nil {
		return
	}
	v.log.Warn(msg, args...)
}

func (v *Volume) logerror(msg string, args ...any) {
	if v.log == nil {
		return
	}
	v.log.Error(msg, args...)
}

// SetLogger installs a structured logger on the volume. Pass nil to silence
// diagnostics again.
func (v *Volume) SetLogger(log *slog.Logger) {
	v.log = log
}
