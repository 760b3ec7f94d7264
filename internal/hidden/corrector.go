package hidden

import "fmt"

// Importer is the part of the module finder the corrector needs.
type Importer interface {
	Has(name string) bool
	ForceImport(trigger, name string) error
}

// Warning reports a rule target that could not be imported.
type Warning struct {
	Trigger string
	Target  string
	Err     error
}

func (w Warning) String() string {
	return fmt.Sprintf("can't import %s (needed by %s): %v", w.Target, w.Trigger, w.Err)
}

// Result summarizes one Apply call.
type Result struct {
	Applied  []string
	Imported []string
	Warnings []Warning
}

// Apply force-imports the targets of every rule whose trigger is present.
// Each trigger is applied once. Targets that introduce a new trigger cause
// another pass, so the result is closed under the rule table.
func Apply(imp Importer, rules Rules) Result {
	var res Result
	applied := make(map[string]bool, len(rules))

	for {
		progress := false
		for _, trigger := range rules.Triggers() {
			if applied[trigger] || !imp.Has(trigger) {
				continue
			}
			applied[trigger] = true
			progress = true
			res.Applied = append(res.Applied, trigger)

			for _, target := range rules[trigger] {
				had := imp.Has(target)
				if err := imp.ForceImport(trigger, target); err != nil {
					res.Warnings = append(res.Warnings, Warning{Trigger: trigger, Target: target, Err: err})
					continue
				}
				if !had {
					res.Imported = append(res.Imported, target)
				}
			}
		}
		if !progress {
			return res
		}
	}
}
