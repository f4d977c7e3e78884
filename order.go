package r8econf

import "sort"

// classifiedStep is a parsed step with its ordering hint.
type classifiedStep struct {
	step  Step
	key   string
	order int
}

// classify parses every step of def, keeping declaration order. The first
// invalid step aborts classification.
func classify(def PolicyDefinition) ([]classifiedStep, error) {
	out := make([]classifiedStep, 0, len(def.Steps))

	for _, sd := range def.Steps {
		step, err := ParseStep(def.Name, sd)
		if err != nil {
			return nil, err
		}

		out = append(out, classifiedStep{step: step, key: sd.Key, order: sd.Order()})
	}

	return out, nil
}

// orderSteps splits steps into the primary and secondary phases, each
// sorted by ascending order hint. The sort is stable so equal hints keep
// declaration order.
func orderSteps(steps []classifiedStep) (primary, secondary []classifiedStep) {
	for _, s := range steps {
		if s.step.Kind().Primary() {
			primary = append(primary, s)
		} else {
			secondary = append(secondary, s)
		}
	}

	byOrder := func(list []classifiedStep) {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].order < list[j].order
		})
	}

	byOrder(primary)
	byOrder(secondary)

	return primary, secondary
}
