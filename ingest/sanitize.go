package ingest

import (
	"strings"
)

// Sensor input is hostile by default. Every string is trimmed and
// length-capped, every number bounded, every list clamped before
// anything is stored.

const (
	maxAbsInt    = int64(1e12)
	maxResolvers = 2000
	maxCands     = 2000
)

func normStr(v string, max int) string {
	v = strings.TrimSpace(v)
	if len(v) > max {
		v = v[:max]
	}
	return v
}

func normInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	n := *v
	if n > maxAbsInt || n < -maxAbsInt {
		return nil
	}
	out := n
	return &out
}

func normFloat(v *float64) *int64 {
	if v == nil {
		return nil
	}
	n := int64(*v)
	if n > maxAbsInt || n < -maxAbsInt {
		return nil
	}
	return &n
}

func clampList[T any](v []T, max int) []T {
	if len(v) > max {
		return v[:max]
	}
	return v
}
