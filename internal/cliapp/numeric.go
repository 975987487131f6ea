package cliapp

import (
	"strconv"

	"github.com/agilira/orpheus/pkg/orpheus"
)

// parseFloatFlag reads a string flag as a float64; ok is false when the
// flag was not supplied.
func parseFloatFlag(ctx *orpheus.Context, name string) (val float64, ok bool) {
	raw := ctx.GetFlagString(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// mustFloat parses a positional argument already validated to be
// present; a malformed number degrades to 0 rather than panicking.
func mustFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
