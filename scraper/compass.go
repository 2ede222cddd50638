package scraper

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// compassPoints starts at North and proceeds clockwise.
var compassPoints = [8]Compass{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// leadingInt matches the integer prefix of a reading such as "270" or "270°".
var leadingInt = regexp.MustCompile(`^\s*([+-]?\d+)`)

// ParseDegrees reads the leading base-10 integer of a direction reading.
// Trailing units or decimals are ignored ("123.7" is 123). Text without a
// leading integer is rejected.
func ParseDegrees(s string) (int, error) {
	m := leadingInt.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("direction %q is not numeric", s)
	}
	deg, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("direction %q: %w", s, err)
	}
	return deg, nil
}

// CompassFrom maps degrees to one of the eight compass points: divide by
// 45, round half up, then take the index modulo 8. Negative inputs wrap.
func CompassFrom(degrees int) Compass {
	idx := int(math.Floor(float64(degrees)/45+0.5)) % 8
	if idx < 0 {
		idx += 8
	}
	return compassPoints[idx]
}
