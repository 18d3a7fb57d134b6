package events

import (
	"log/slog"

	"rentpool/core/types"
)

// LogEmitter writes every event to the structured log. It is the default
// subscriber for the daemon; indexers can replace it with a fan-out.
type LogEmitter struct {
	logger *slog.Logger
}

func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

func (e *LogEmitter) Emit(ev Event) {
	if ev == nil {
		return
	}
	attrs := []any{slog.String("event", ev.EventType())}
	if payload, ok := ev.(interface{ Event() *types.Event }); ok {
		if typed := payload.Event(); typed != nil {
			for key, value := range typed.Attributes {
				attrs = append(attrs, slog.String(key, value))
			}
		}
	}
	e.logger.Info("pool event", attrs...)
}
