package sound

import (
	"fmt"
	"log/slog"
)

// Reconciler copies the registry's pending events into the fields of the
// objects that own them.
type Reconciler struct {
	variant  Variant
	registry *Registry
	fields   Fields
	logger   *slog.Logger
}

func NewReconciler(variant Variant, registry *Registry, fields Fields, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default().With("component", "sound")
	}
	return &Reconciler{variant: variant, registry: registry, fields: fields, logger: logger}
}

// Reconcile drains every pending event. Only SCI0Early scripts rely on it;
// newer variants poll per handle and Reconcile returns immediately. An event
// owned by something that is no longer an object ends the drain for this
// tick with ErrStaleHandle.
func (r *Reconciler) Reconcile() error {
	if r.variant != SCI0Early {
		return nil
	}
	for {
		h, ev, ok := r.registry.Poll()
		if !ok {
			return nil
		}
		obj := h.Object()
		if !r.fields.IsObject(obj) {
			r.logger.Warn("non-object received sound signal", "object", h.String(), "event", ev.String())
			return fmt.Errorf("sound: reconcile %s %s: %w", h, ev, ErrStaleHandle)
		}

		switch ev.Kind {
		case EventLooped:
			r.logger.Debug("song looped", "object", h.String())
			r.fields.SetField(obj, FieldSignal, SignalLooped)
		case EventRelativeCue:
			r.logger.Debug("relative cue", "object", h.String(), "cue", ev.Cue)
			r.fields.SetField(obj, FieldSignal, int64(ev.Cue+RelativeCueOffset))
		case EventAbsoluteCue:
			r.logger.Debug("absolute cue", "object", h.String(), "cue", ev.Cue)
			r.fields.SetField(obj, FieldSignal, int64(ev.Cue))
		case EventFinished:
			r.logger.Debug("song finished", "object", h.String())
			r.fields.SetField(obj, FieldSignal, SignalStopped)
			r.fields.SetField(obj, FieldState, int64(StatusStopped))
		default:
			r.logger.Warn("unexpected sound event", "object", h.String(), "event", ev.String())
		}
	}
}
