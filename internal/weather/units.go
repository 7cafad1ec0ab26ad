package weather

import (
	"fmt"
	"math"
	"strings"
)

// Unit is a temperature display unit.
type Unit string

const (
	Fahrenheit Unit = "F"
	Celsius    Unit = "C"
)

// ParseUnit accepts "F"/"C" in any case; empty means Fahrenheit.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "F":
		return Fahrenheit, nil
	case "C":
		return Celsius, nil
	default:
		return "", fmt.Errorf("%w: unknown unit %q", ErrValidation, s)
	}
}

// Round rounds to the nearest integer with halves going up (-2.5 becomes -2).
func Round(x float64) float64 {
	return math.Floor(x + 0.5)
}

// ToCelsius converts a Fahrenheit reading and rounds it.
func ToCelsius(f float64) int {
	return int(Round((f - 32) * 5 / 9))
}

// Display converts a Fahrenheit reading into the requested unit.
func Display(f float64, u Unit) int {
	if u == Celsius {
		return ToCelsius(f)
	}
	return int(Round(f))
}
