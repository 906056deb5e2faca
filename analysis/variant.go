// Copyright © 2024 The ELPS authors

package analysis

import (
	"github.com/luthersystems/bsl/preproc"
	"github.com/luthersystems/bsl/workspace"
)

// Variant is a platform variant a module is compiled for.
type Variant uint8

const (
	// Managed is the thin client of the managed application.
	Managed Variant = iota + 1
	// Ordinary is the thick client of the ordinary application.
	Ordinary
)

// Variants lists every variant in analysis order.
var Variants = []Variant{Managed, Ordinary}

func (v Variant) String() string {
	switch v {
	case Managed:
		return "managed"
	case Ordinary:
		return "ordinary"
	default:
		return "unknown"
	}
}

// ParseVariant returns the variant named s.
func ParseVariant(s string) (Variant, bool) {
	for _, v := range Variants {
		if s == v.String() {
			return v, true
		}
	}
	return 0, false
}

// Target returns the preprocessor symbol of the client v runs on.
func (v Variant) Target() preproc.Target {
	if v == Ordinary {
		return preproc.ThickClientOrdinaryApplication
	}
	return preproc.ThinClient
}

// Applies reports whether m is compiled for v.  Common modules are compiled
// for both variants.
func (v Variant) Applies(m *workspace.Module) bool {
	switch m.Kind {
	case workspace.CommonModule:
		return true
	case workspace.FormManaged:
		return v == Managed
	case workspace.FormOrdinary:
		return v == Ordinary
	case workspace.ApplicationModule:
		return m.Managed == (v == Managed)
	}
	return false
}
