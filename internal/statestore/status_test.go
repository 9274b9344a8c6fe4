package statestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRotateNoRotationWhenNeverFinished(t *testing.T) {
	s := Status{}
	next := s.Rotate("k2", 2, 2, 200, 1000)
	assert.Equal(t, int64(0), next.LastMovedCount)
	assert.Equal(t, int64(0), next.LastScannedCount)
	assert.Equal(t, int64(1000), next.Finished)
}

func TestRotateOccursWhenPriorPassMovedSomething(t *testing.T) {
	s := Status{
		MovedCount: 5, ScannedCount: 5, BytesCount: 500, Finished: 900,
		LastMovedCount: 3, LastScannedCount: 5,
	}
	next := s.Rotate("k3", 0, 1, 0, 1000)
	assert.Equal(t, int64(5), next.LastMovedCount)
	assert.Equal(t, int64(5), next.LastScannedCount)
	assert.Equal(t, int64(500), next.LastBytesCount)
	assert.Equal(t, int64(900), next.LastFinished)
}

func TestRotateOccursWhenScanCountDifferedFromPrevious(t *testing.T) {
	s := Status{
		MovedCount: 0, ScannedCount: 7, BytesCount: 0, Finished: 900,
		LastMovedCount: 0, LastScannedCount: 3,
	}
	next := s.Rotate("k4", 0, 1, 0, 1000)
	assert.Equal(t, int64(7), next.LastScannedCount)
}

func TestRotateSkippedWhenNothingMovedAndScanUnchanged(t *testing.T) {
	s := Status{
		MovedCount: 0, ScannedCount: 3, BytesCount: 0, Finished: 900,
		LastMovedCount: 0, LastScannedCount: 3, LastBytesCount: 0, LastFinished: 800,
	}
	next := s.Rotate("k5", 0, 1, 0, 1000)
	assert.Equal(t, int64(800), next.LastFinished)
	assert.Equal(t, int64(3), next.LastScannedCount)
}
