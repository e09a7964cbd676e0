package component

// SoundScript attaches a tengo script to an entity. The entity doubles as the
// script's own sound object.
type SoundScript struct {
	Path   string
	Source []byte

	// Done is set once the script calls quit().
	Done bool
}

var SoundScriptComponent = NewComponent[SoundScript]()
