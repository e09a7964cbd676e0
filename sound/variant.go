package sound

import (
	"fmt"
	"strings"
)

// Variant selects one historical command set. It is fixed for a session.
type Variant int

const (
	SCI0Early Variant = iota + 1
	SCI1Early
	SCI1Late
)

var variantNames = map[Variant]string{
	SCI0Early: "sci0",
	SCI1Early: "sci1early",
	SCI1Late:  "sci1late",
}

// Variants lists every supported variant, oldest first.
func Variants() []Variant {
	return []Variant{SCI0Early, SCI1Early, SCI1Late}
}

func ParseVariant(s string) (Variant, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
	switch key {
	case "sci0", "sci0early":
		return SCI0Early, nil
	case "sci1early", "sci01":
		return SCI1Early, nil
	case "sci1late", "sci1", "sci11":
		return SCI1Late, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownVariant, s)
}

func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

// HasNodePtr reports whether script objects carry a back-reference field.
func (v Variant) HasNodePtr() bool {
	return v != SCI0Early
}

// IteratorType is the song stream flavour the variant's assets use.
func (v Variant) IteratorType() IteratorType {
	if v == SCI0Early {
		return IteratorSCI0
	}
	return IteratorSCI1
}
