package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wealthLadder() []Level {
	return []Level{
		{Kind: "wealth", Level: 1, Threshold: 0},
		{Kind: "wealth", Level: 2, Threshold: 100},
		{Kind: "wealth", Level: 3, Threshold: 500},
		{Kind: "wealth", Level: 4, Threshold: 2000},
	}
}

func TestProgressForMidLadder(t *testing.T) {
	progress := ProgressFor(wealthLadder(), 250)

	assert.Equal(t, 2, progress.CurrentLevel)
	require.NotNil(t, progress.NextLevel)
	assert.Equal(t, 3, progress.NextLevel.Level)
	assert.Equal(t, int64(500), progress.NextLevel.Requirement)
	assert.Equal(t, int64(250), progress.DistanceToUpgrade)
}

func TestProgressForExactThreshold(t *testing.T) {
	progress := ProgressFor(wealthLadder(), 500)

	assert.Equal(t, 3, progress.CurrentLevel)
	require.NotNil(t, progress.NextLevel)
	assert.Equal(t, int64(1500), progress.DistanceToUpgrade)
}

func TestProgressForTopOfLadder(t *testing.T) {
	progress := ProgressFor(wealthLadder(), 99999)

	assert.Equal(t, 4, progress.CurrentLevel)
	assert.Nil(t, progress.NextLevel)
	assert.Equal(t, int64(0), progress.DistanceToUpgrade)
}

func TestProgressForEmptyLadder(t *testing.T) {
	progress := ProgressFor(nil, 42)

	assert.Equal(t, 0, progress.CurrentLevel)
	assert.Nil(t, progress.NextLevel)
	assert.Equal(t, int64(42), progress.CurrentValue)
}
