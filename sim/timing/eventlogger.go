package timing

import (
	"reflect"

	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/eventq/sim/hooking"
)

// EventLogger is an hook that logs every event before it is handled.
type EventLogger struct {
	logger log.FieldLogger
}

// NewEventLogger returns a new EventLogger which will write to the logger.
func NewEventLogger(logger log.FieldLogger) *EventLogger {
	h := new(EventLogger)

	h.logger = logger

	return h
}

type named interface {
	Name() string
}

// Func writes the event information into the logger
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	fields := log.Fields{
		"time":      evt.Time(),
		"event":     reflect.TypeOf(evt).String(),
		"secondary": evt.IsSecondary(),
	}

	if handler, ok := evt.Handler().(named); ok {
		fields["handler"] = handler.Name()
	}

	h.logger.WithFields(fields).Info("event")
}
