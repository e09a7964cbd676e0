package system

import (
	"errors"
	"log/slog"

	"github.com/milk9111/dosound/ecs"
	"github.com/milk9111/dosound/sound"
)

// SoundPlaybackSystem advances the song registry by a fixed number of ticks
// per update.
type SoundPlaybackSystem struct {
	registry *sound.Registry
	ticks    int
}

func NewSoundPlaybackSystem(registry *sound.Registry) *SoundPlaybackSystem {
	return &SoundPlaybackSystem{registry: registry, ticks: 1}
}

func (s *SoundPlaybackSystem) Update(_ *ecs.World) {
	if s == nil || s.registry == nil {
		return
	}
	s.registry.Tick(s.ticks)
}

// SoundEventSystem mirrors pending registry events into script objects.
type SoundEventSystem struct {
	dispatcher *sound.Dispatcher
	logger     *slog.Logger

	// Stale counts events dropped because their object was gone.
	Stale int
}

func NewSoundEventSystem(d *sound.Dispatcher, logger *slog.Logger) *SoundEventSystem {
	if logger == nil {
		logger = slog.Default().With("component", "sound")
	}
	return &SoundEventSystem{dispatcher: d, logger: logger}
}

func (s *SoundEventSystem) Update(_ *ecs.World) {
	if s == nil || s.dispatcher == nil {
		return
	}
	err := s.dispatcher.Reconcile()
	switch {
	case err == nil:
	case errors.Is(err, sound.ErrStaleHandle):
		// The rest of the queue waits for the next tick.
		s.Stale++
	default:
		s.logger.Warn("reconcile failed", "error", err)
	}
}
