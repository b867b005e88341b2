package api

import (
	"fmt"
	"math"
	"strings"
)

// ValidationError reports a backend response that does not match the
// FilterOptions or MapDataItem contract.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid response: %s: %s", e.Field, e.Reason)
}

func validateOptions(opts FilterOptions) error {
	if err := uniqueStrings("topics", opts.Topics); err != nil {
		return err
	}
	if err := uniqueStrings("demographics", opts.Demographics); err != nil {
		return err
	}
	if err := uniqueStrings("indicators", opts.Indicators); err != nil {
		return err
	}
	seen := make(map[int]bool, len(opts.Years))
	for _, y := range opts.Years {
		if y <= 0 {
			return &ValidationError{Field: "years", Reason: fmt.Sprintf("non-positive year %d", y)}
		}
		if seen[y] {
			return &ValidationError{Field: "years", Reason: fmt.Sprintf("duplicate year %d", y)}
		}
		seen[y] = true
	}
	return nil
}

func uniqueStrings(field string, list []string) error {
	seen := make(map[string]bool, len(list))
	for _, v := range list {
		if strings.TrimSpace(v) == "" {
			return &ValidationError{Field: field, Reason: "empty value"}
		}
		if seen[v] {
			return &ValidationError{Field: field, Reason: fmt.Sprintf("duplicate value %q", v)}
		}
		seen[v] = true
	}
	return nil
}

func validateMapData(items []MapDataItem) error {
	seen := make(map[string]int, len(items))
	for i, it := range items {
		abbr := strings.ToUpper(strings.TrimSpace(it.StateAbbr))
		field := fmt.Sprintf("[%d]", i)
		if len(abbr) != 2 {
			return &ValidationError{Field: field + ".state_abbr", Reason: fmt.Sprintf("want 2-letter code, got %q", it.StateAbbr)}
		}
		if strings.TrimSpace(it.StateName) == "" {
			return &ValidationError{Field: field + ".state_name", Reason: "empty"}
		}
		if math.IsNaN(it.Value) || math.IsInf(it.Value, 0) {
			return &ValidationError{Field: field + ".value", Reason: "not a finite number"}
		}
		if j, ok := seen[abbr]; ok {
			return &ValidationError{Field: field + ".state_abbr", Reason: fmt.Sprintf("%s repeats record %d", abbr, j)}
		}
		seen[abbr] = i
	}
	return nil
}
