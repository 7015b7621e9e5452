package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that decodes from "24h", "90s", "2d" or a bare number of seconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalJSON encodes the duration as a Go duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts either a string or a number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := parseDurationValue(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalYAML accepts either a string or a number of seconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := parseDurationValue(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func parseDurationValue(raw any) (time.Duration, error) {
	switch v := raw.(type) {
	case string:
		return ParseDuration(v)
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return time.Duration(v * float64(time.Second)), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return time.Duration(v) * time.Second, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("invalid duration %v", raw)
	}
}

var durationUnits = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
}

// ParseDuration parses an integer with an optional s/m/h/d suffix (seconds when bare),
// falling back to time.ParseDuration for compound forms like "1h30m".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("duration may not be empty")
	}

	unit := time.Second
	number := s
	if u, ok := durationUnits[s[len(s)-1]]; ok {
		unit = u
		number = s[:len(s)-1]
	}
	if n, err := strconv.Atoi(number); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return time.Duration(n) * unit, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be non-negative")
	}
	return d, nil
}
