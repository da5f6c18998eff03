package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveBatchSize(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		size      int
		clamped   bool
	}{
		{"zero selects default", 0, DefaultBatchSize, false},
		{"explicit", 250, 250, false},
		{"at cap", MaxBatchSize, MaxBatchSize, false},
		{"negative falls back to default", -3, DefaultBatchSize, true},
		{"oversized is capped", MaxBatchSize * 2, MaxBatchSize, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ResolveBatchSize(tt.requested)
			assert.Equal(t, tt.size, d.Size)
			assert.Equal(t, tt.requested, d.Requested)
			assert.Equal(t, tt.clamped, d.Clamped)
		})
	}
}

func TestBatches(t *testing.T) {
	ids := []int64{1, 2, 3, 4, 5, 6, 7}

	got := Batches(ids, 3)
	assert.Equal(t, [][]int64{{1, 2, 3}, {4, 5, 6}, {7}}, got)

	assert.Equal(t, [][]int64{ids}, Batches(ids, 100))
	assert.Nil(t, Batches(nil, 3))

	// Appending to a batch must not clobber the next one.
	first := append(got[0], 42)
	assert.Equal(t, []int64{1, 2, 3, 42}, first)
	assert.Equal(t, int64(4), got[1][0])
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []int64{3, 1, 2}, Dedupe([]int64{3, 1, 3, 2, 1}))
	assert.Empty(t, Dedupe(nil))
}
