package domain

import "strings"

// Severity is the ordered finding severity scale. Higher values are worse,
// so severities compare directly with the usual operators.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// ParseSeverity maps an upstream severity string into the ordered enum.
// Matching is case-insensitive; unrecognized values degrade to Info so a
// single drifted record never breaks ingestion. The second return reports
// whether the value was recognized.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return SeverityCritical, true
	case "high":
		return SeverityHigh, true
	case "medium":
		return SeverityMedium, true
	case "low":
		return SeverityLow, true
	case "info", "informational":
		return SeverityInfo, true
	}
	return SeverityInfo, false
}

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "Critical"
	case SeverityHigh:
		return "High"
	case SeverityMedium:
		return "Medium"
	case SeverityLow:
		return "Low"
	default:
		return "Info"
	}
}

// MarshalText makes Severity render as its canonical name in JSON payloads.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts any casing and tolerates unknown values as Info.
func (s *Severity) UnmarshalText(b []byte) error {
	parsed, _ := ParseSeverity(string(b))
	*s = parsed
	return nil
}

// SeverityCounts is the per-severity summary stored with every snapshot.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
}

// Add increments the bucket for the given severity.
func (c *SeverityCounts) Add(s Severity) {
	switch s {
	case SeverityCritical:
		c.Critical++
	case SeverityHigh:
		c.High++
	case SeverityMedium:
		c.Medium++
	case SeverityLow:
		c.Low++
	default:
		c.Info++
	}
}

// Total returns the sum across all buckets.
func (c SeverityCounts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low + c.Info
}

// Merge adds the other counts into this one.
func (c *SeverityCounts) Merge(o SeverityCounts) {
	c.Critical += o.Critical
	c.High += o.High
	c.Medium += o.Medium
	c.Low += o.Low
	c.Info += o.Info
}
