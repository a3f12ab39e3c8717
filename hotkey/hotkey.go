// Package hotkey watches a global key combo and reports raw keydown and
// keyup transitions. The combo is configurable; key names are validated
// per platform by New.
package hotkey

import (
	"fmt"
	"strings"
)

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// Combo is a parsed key combination such as ctrl+shift+space. At least
// one modifier is required; a bare key would fire on ordinary typing.
type Combo struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Key   string
}

// ParseCombo parses a combo spec like "ctrl+shift+space". Modifiers
// come in any order; the final part is the key. Key name validity is
// platform-dependent and checked by New.
func ParseCombo(s string) (Combo, error) {
	var c Combo
	parts := strings.Split(strings.ToLower(s), "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		switch p {
		case "ctrl", "control":
			c.Ctrl = true
		case "shift":
			c.Shift = true
		case "alt", "option":
			c.Alt = true
		case "":
			return Combo{}, fmt.Errorf("bad hotkey combo %q", s)
		default:
			if i != len(parts)-1 {
				return Combo{}, fmt.Errorf("bad hotkey combo %q: %q must come last", s, p)
			}
			c.Key = p
		}
	}
	if c.Key == "" {
		return Combo{}, fmt.Errorf("hotkey combo %q has no key", s)
	}
	if !c.Ctrl && !c.Shift && !c.Alt {
		return Combo{}, fmt.Errorf("hotkey combo %q needs at least one modifier", s)
	}
	return c, nil
}

func (c Combo) String() string {
	var parts []string
	if c.Ctrl {
		parts = append(parts, "ctrl")
	}
	if c.Shift {
		parts = append(parts, "shift")
	}
	if c.Alt {
		parts = append(parts, "alt")
	}
	parts = append(parts, c.Key)
	return strings.Join(parts, "+")
}
