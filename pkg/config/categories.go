package config

import (
	"errors"
	"strings"
)

// Severity classifies an object label for filtering leniency and alert
// class escalation.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "none"
	}
}

// CategoriesConfig holds the label category sets. The critical set widens
// the proximity whitelist and escalates alert class; warning and info sets
// only affect scoring.
type CategoriesConfig struct {
	Critical []string `yaml:"critical"`
	Warning  []string `yaml:"warning"`
	Info     []string `yaml:"info"`

	// O(1) lookup, built after load. Keys are lowercased labels.
	lookup map[string]Severity
}

// DefaultCategories returns the built-in category sets.
func DefaultCategories() CategoriesConfig {
	c := CategoriesConfig{
		Critical: []string{
			"person", "car", "truck", "bus", "bicycle", "motorcycle",
			"dog", "stairs",
		},
		Warning: []string{
			"chair", "table", "bench", "pole", "tree", "trash can",
			"wall", "fence",
		},
		Info: []string{
			"door", "sign", "plant", "backpack", "suitcase",
		},
	}
	c.buildLookup()
	return c
}

// buildLookup rebuilds the label index. Later sets never override earlier
// ones; overlaps are reported by Validate instead.
func (c *CategoriesConfig) buildLookup() {
	c.lookup = make(map[string]Severity)
	for _, l := range c.Critical {
		c.lookup[strings.ToLower(l)] = SeverityCritical
	}
	for _, l := range c.Warning {
		key := strings.ToLower(l)
		if _, ok := c.lookup[key]; !ok {
			c.lookup[key] = SeverityWarning
		}
	}
	for _, l := range c.Info {
		key := strings.ToLower(l)
		if _, ok := c.lookup[key]; !ok {
			c.lookup[key] = SeverityInfo
		}
	}
}

// SeverityOf returns the configured severity for a label, SeverityNone if
// the label is unclassified.
func (c *CategoriesConfig) SeverityOf(label string) Severity {
	if c.lookup == nil {
		c.buildLookup()
	}
	return c.lookup[strings.ToLower(label)]
}

// IsCritical reports whether a label is in the critical set.
func (c *CategoriesConfig) IsCritical(label string) bool {
	return c.SeverityOf(label) == SeverityCritical
}

// Validate rejects empty or ambiguous category sets. The critical set is
// required; filtering leniency depends on it.
func (c *CategoriesConfig) Validate() error {
	var errs []error

	if len(c.Critical) == 0 {
		errs = append(errs, invalidf("categories: critical set must not be empty"))
	}

	seen := make(map[string]string)
	record := func(set string, labels []string) {
		for _, l := range labels {
			key := strings.ToLower(strings.TrimSpace(l))
			if key == "" {
				errs = append(errs, invalidf("categories: %s set contains an empty label", set))
				continue
			}
			if prev, ok := seen[key]; ok {
				errs = append(errs, invalidf("categories: label %q appears in both %s and %s", key, prev, set))
				continue
			}
			seen[key] = set
		}
	}
	record("critical", c.Critical)
	record("warning", c.Warning)
	record("info", c.Info)

	return errors.Join(errs...)
}
