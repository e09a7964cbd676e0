package component

import "testing"

func TestComponentKinds(t *testing.T) {
	ints := NewComponent[int]()
	objs := NewComponent[ScriptObject]()

	if !ints.Kind().Valid() || !objs.Kind().Valid() {
		t.Fatalf("new kinds must be valid")
	}
	if ints.Kind().ID() == objs.Kind().ID() {
		t.Fatalf("kinds must get distinct ids")
	}
	if (ComponentKind[int]{}).Valid() {
		t.Fatalf("zero kind must be invalid")
	}

	cases := []struct {
		name string
		got  string
		want string
	}{
		{"builtin", ints.Kind().String(), "int"},
		{"script_object", ScriptObjectComponent.Kind().String(), "component.ScriptObject"},
		{"sound_script", SoundScriptComponent.Kind().String(), "component.SoundScript"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if c.got != c.want {
				t.Fatalf("expected %q, got %q", c.want, c.got)
			}
		})
	}
}
