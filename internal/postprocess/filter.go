package postprocess

import "slices"

// Filter narrows a result set. Filters always allocate their output and
// leave the input untouched.
type Filter func([]Result) []Result

// MinScore keeps results scoring at or above threshold.
func MinScore(threshold float64) Filter {
	return func(results []Result) []Result {
		kept := make([]Result, 0, len(results))
		for _, r := range results {
			if r.Score >= threshold {
				kept = append(kept, r)
			}
		}
		return kept
	}
}

// KeepClasses keeps results whose label is one of the given labels.
func KeepClasses(labels ...int) Filter {
	return func(results []Result) []Result {
		kept := make([]Result, 0, len(results))
		for _, r := range results {
			if slices.Contains(labels, r.Label) {
				kept = append(kept, r)
			}
		}
		return kept
	}
}

// Apply runs the filters left to right.
func Apply(results []Result, filters ...Filter) []Result {
	for _, f := range filters {
		results = f(results)
	}
	return results
}
