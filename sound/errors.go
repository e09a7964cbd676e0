package sound

import "errors"

var (
	ErrInvalidCommand       = errors.New("sound: invalid command")
	ErrMissingAsset         = errors.New("sound: missing asset")
	ErrStaleHandle          = errors.New("sound: stale handle reference")
	ErrUnsupportedOperation = errors.New("sound: unsupported variant operation")
	ErrUnknownVariant       = errors.New("sound: unknown protocol variant")
	ErrMissingDependency    = errors.New("sound: missing dependency")
)
