package main

import (
	"fmt"
	"time"

	"github.com/araddon/dateparse"
	"github.com/jinzhu/now"
)

// runDate parses a --date value into the start of that day. An empty value
// means today.
func runDate(value string, today time.Time) (time.Time, error) {
	if value == "" {
		return now.With(today).BeginningOfDay(), nil
	}
	t, err := dateparse.ParseIn(value, today.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return now.With(t).BeginningOfDay(), nil
}

// previousDay is the start of the day before today.
func previousDay(today time.Time) time.Time {
	return now.With(today).BeginningOfDay().AddDate(0, 0, -1)
}
