package component

// ScriptObject is the field table of a script-visible object. Sound commands
// read and write these fields by selector name; reference-valued fields hold
// the referenced entity's raw value.
type ScriptObject struct {
	Name   string
	Fields map[string]int64
}

var ScriptObjectComponent = NewComponent[ScriptObject]()
