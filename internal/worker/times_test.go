package worker_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dqmon/internal/worker"
)

func TestParseTimes(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    worker.Times
	}{
		{
			name:    "complete",
			content: "Work\t600\nWait\t200\nBlock\t100\nOverhead\t100\nDocs\t7\n",
			want:    worker.Times{Work: 600, Wait: 200, Block: 100, Overhead: 100, Docs: 7},
		},
		{
			name:    "fractional",
			content: "Work\t1.5\nWait\t0\nBlock\t0\nOverhead\t0.5\nDocs\t1\n",
			want:    worker.Times{Work: 1.5, Overhead: 0.5, Docs: 1},
		},
		{name: "empty", content: "", want: worker.Times{}},
		{name: "truncated", content: "Work\t600\nWait\t200\n", want: worker.Times{}},
		{name: "garbage value", content: "Work\tx\nWait\t0\nBlock\t0\nOverhead\t0\nDocs\t0\n", want: worker.Times{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, worker.ParseTimes(tt.content))
		})
	}
}

func TestTimesShares(t *testing.T) {
	times := worker.Times{Work: 600, Wait: 200, Block: 100, Overhead: 100, Docs: 7}

	assert.InDelta(t, 0.6, times.WorkShare(), 1e-9)
	assert.InDelta(t, 0.2, times.WaitShare(), 1e-9)
	assert.InDelta(t, 0.1, times.BlockShare(), 1e-9)
	assert.InDelta(t, 0.1, times.OverheadShare(), 1e-9)
	assert.Equal(t, 100*time.Millisecond, times.PerDoc())
}

func TestTimesZeroTotal(t *testing.T) {
	var times worker.Times
	assert.Zero(t, times.WorkShare())
	assert.Zero(t, times.PerDoc())
}
