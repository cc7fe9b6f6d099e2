package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunDate(t *testing.T) {
	today := time.Date(2021, 10, 1, 15, 4, 5, 0, time.UTC)

	got, err := runDate("", today)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 10, 1, 0, 0, 0, 0, time.UTC), got)

	for _, value := range []string{"2021-05-18", "20210518", "05/18/2021"} {
		got, err := runDate(value, today)
		require.NoError(t, err, value)
		assert.Equal(t, time.Date(2021, 5, 18, 0, 0, 0, 0, time.UTC), got, value)
	}

	_, err = runDate("not a date", today)
	assert.Error(t, err)
}

func TestPreviousDay(t *testing.T) {
	today := time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2021, 2, 28, 0, 0, 0, 0, time.UTC), previousDay(today))
}
