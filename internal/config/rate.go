package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var rateFormat = regexp.MustCompile(`^([\d.]+)\s*([a-zA-Z]*)$`)

// RateLimit parses LimitRate into bytes per second. "inf" and "" mean no limit (0).
func (c *Config) RateLimit() (float64, error) {
	return ParseRateLimit(c.LimitRate)
}

func ParseRateLimit(input string) (float64, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.EqualFold(input, "inf") {
		return 0, nil
	}

	matches := rateFormat.FindStringSubmatch(input)
	if matches == nil {
		return 0, fmt.Errorf("invalid rate limit format: %s", input)
	}

	val, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rate limit format: %s: %w", input, err)
	}

	var multiplier float64
	switch strings.ToLower(matches[2]) {
	case "", "b":
		multiplier = 1
	case "k", "kb":
		multiplier = 1000
	case "ki", "kib":
		multiplier = 1024
	case "m", "mb":
		multiplier = 1000 * 1000
	case "mi", "mib":
		multiplier = 1024 * 1024
	case "g", "gb":
		multiplier = 1000 * 1000 * 1000
	case "gi", "gib":
		multiplier = 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("unknown rate limit unit: %s", matches[2])
	}

	return val * multiplier, nil
}
