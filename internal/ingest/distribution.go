package ingest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// weightedValue is one entry of a weighted distribution.
type weightedValue struct {
	value  string
	weight int
}

// parseDistribution parses "KEY:PERCENT,KEY:PERCENT" into weighted values
// sorted by key. Percentages must sum to 100.
func parseDistribution(dist string) ([]weightedValue, error) {
	if strings.TrimSpace(dist) == "" {
		return nil, fmt.Errorf("distribution string cannot be empty")
	}

	var result []weightedValue
	seen := make(map[string]bool)
	total := 0
	for _, part := range strings.Split(dist, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, raw, ok := strings.Cut(part, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid distribution format: %s (expected KEY:PERCENT)", part)
		}
		if seen[key] {
			return nil, fmt.Errorf("duplicate key %s in distribution", key)
		}
		percent, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid percentage in %s: %w", part, err)
		}
		if percent < 0 || percent > 100 {
			return nil, fmt.Errorf("percentage must be 0-100, got %d in %s", percent, part)
		}
		seen[key] = true
		total += percent
		result = append(result, weightedValue{value: key, weight: percent})
	}

	if total != 100 {
		return nil, fmt.Errorf("distribution percentages must sum to 100, got %d", total)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].value < result[j].value })
	return result, nil
}

// DistributionKeys returns the keys of a distribution string, or nil when it
// does not parse.
func DistributionKeys(dist string) []string {
	values, err := parseDistribution(dist)
	if err != nil {
		return nil
	}
	keys := make([]string, len(values))
	for i, v := range values {
		keys[i] = v.value
	}
	return keys
}
