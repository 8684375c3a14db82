package engine

import (
	"time"

	"github.com/ErenAtasun/MaskHeist/internal/capability"
)

const DefaultMask = "default"

// Mask is a cosmetic loadout. Every mask grants invisibility; Unique is the
// extra ability it adds, if any.
type Mask struct {
	Name   string
	Unique capability.Kind
	// Invisibility overrides the configured invisibility duration when set.
	Invisibility time.Duration
}

var Masks = []Mask{
	{Name: DefaultMask},
	{Name: "shadow", Invisibility: 10 * time.Second},
	{Name: "sprinter", Unique: capability.KindSprint},
	{Name: "tracker", Unique: capability.KindTracker},
	{Name: "scanner", Unique: capability.KindScanner},
	{Name: "silent", Unique: capability.KindSilent},
	{Name: "disruptor", Unique: capability.KindDisruptor},
}

func LookupMask(name string) (Mask, bool) {
	for _, m := range Masks {
		if m.Name == name {
			return m, true
		}
	}
	return Mask{}, false
}
