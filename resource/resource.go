// Package resource provides the asset lookups the sound layer consumes:
// raw song and audio bytes addressed by type and number.
package resource

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownType = errors.New("resource: unknown type")
	ErrNotFound    = errors.New("resource: not found")
)

// Type is a resource class.
type Type int

const (
	TypeSound Type = iota + 1 // synthesized song streams
	TypeAudio                 // digital audio samples
)

func (t Type) String() string {
	switch t {
	case TypeSound:
		return "sound"
	case TypeAudio:
		return "audio"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// ParseType maps a manifest or CLI name to a Type.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sound", "sounds", "song", "songs":
		return TypeSound, nil
	case "audio":
		return TypeAudio, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// ID addresses one resource.
type ID struct {
	Type   Type
	Number int
}

func (id ID) String() string {
	return fmt.Sprintf("%s.%03d", id.Type, id.Number)
}
