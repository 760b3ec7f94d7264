// Package hidden adds dependencies that static import analysis cannot see:
// modules loaded from compiled code of another module at runtime.
package hidden

import "sort"

// Rules maps a trigger module to the modules it loads behind the analyser's back.
type Rules map[string][]string

// DefaultRules returns the built-in rule table.
func DefaultRules() Rules {
	return Rules{
		"time":      {"_strptime"},
		"cPickle":   {"copy_reg"},
		"parser":    {"copy_reg"},
		"codecs":    {"encodings"},
		"cStringIO": {"copy_reg"},
		"_sre":      {"copy", "string", "sre"},

		"_pickle":      {"copyreg"},
		"_elementtree": {"xml.etree.ElementPath"},
	}
}

// Merge returns a copy of r extended with extra. Targets already listed for a
// trigger are not repeated; order is preserved.
func (r Rules) Merge(extra Rules) Rules {
	out := make(Rules, len(r)+len(extra))
	for trigger, targets := range r {
		out[trigger] = append([]string(nil), targets...)
	}
	for trigger, targets := range extra {
		for _, target := range targets {
			if !contains(out[trigger], target) {
				out[trigger] = append(out[trigger], target)
			}
		}
	}
	return out
}

// Triggers returns the trigger names in sorted order.
func (r Rules) Triggers() []string {
	triggers := make([]string, 0, len(r))
	for trigger := range r {
		triggers = append(triggers, trigger)
	}
	sort.Strings(triggers)
	return triggers
}

func contains(items []string, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}
	return false
}
