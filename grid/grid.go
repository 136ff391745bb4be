// Package grid expands parameter declarations into the full cartesian
// product of their options.
package grid

import (
	"fmt"

	"gridprobe/config"
)

// Combination binds every declared parameter name to one of its options.
type Combination map[string]any

// Expand returns one Combination per cell of the cartesian product, in
// lexicographic order: the first spec varies slowest, the last fastest.
func Expand(specs []config.ParameterSpec) ([]Combination, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no parameters to expand")
	}
	for _, s := range specs {
		if len(s.Options) == 0 {
			return nil, fmt.Errorf("parameter '%s' has no options", s.Name)
		}
	}

	total := 1
	for _, s := range specs {
		total *= len(s.Options)
	}

	combos := make([]Combination, 0, total)
	indices := make([]int, len(specs))

	for {
		combo := make(Combination, len(specs))
		for i, s := range specs {
			combo[s.Name] = s.Options[indices[i]]
		}
		combos = append(combos, combo)

		// Advance like an odometer, rightmost digit first.
		i := len(indices) - 1
		for i >= 0 {
			indices[i]++
			if indices[i] < len(specs[i].Options) {
				break
			}
			indices[i] = 0
			i--
		}
		if i < 0 {
			break
		}
	}

	return combos, nil
}
