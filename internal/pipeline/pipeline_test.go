package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dqmon/internal/config"
	"dqmon/internal/pipeline"
)

func TestNewChainsStages(t *testing.T) {
	p, err := pipeline.New("start", []pipeline.Target{{Queue: "q1", Workers: 2}, {Queue: "q2", Workers: 1}})
	require.NoError(t, err)

	assert.Equal(t, []pipeline.Stage{
		{Src: "start", Dst: "q1", Workers: 2},
		{Src: "q1", Dst: "q2", Workers: 1},
	}, p.Stages())
	assert.Equal(t, "q2", p.FinalQueue())
	assert.True(t, p.IsFinal("q2"))
	assert.False(t, p.IsFinal("q1"))
	assert.Equal(t, "start", p.Start())
	assert.Equal(t, []string{"start", "q1", "q2"}, p.Queues())
	assert.Equal(t, "start->q1", p.Stages()[0].Label())
}

func TestStagesReturnsCopy(t *testing.T) {
	p, err := pipeline.New("start", []pipeline.Target{{Queue: "q1", Workers: 2}})
	require.NoError(t, err)
	stages := p.Stages()
	stages[0].Workers = 99
	assert.Equal(t, 2, p.Stages()[0].Workers)
}

func TestNewRejectsInvalid(t *testing.T) {
	cases := map[string]struct {
		start   string
		targets []pipeline.Target
	}{
		"empty start":     {start: "", targets: []pipeline.Target{{Queue: "q1"}}},
		"no stages":       {start: "start"},
		"empty queue":     {start: "start", targets: []pipeline.Target{{Queue: ""}}},
		"duplicate":       {start: "start", targets: []pipeline.Target{{Queue: "q1"}, {Queue: "q1"}}},
		"loops to start":  {start: "start", targets: []pipeline.Target{{Queue: "start"}}},
		"negative target": {start: "start", targets: []pipeline.Target{{Queue: "q1", Workers: -1}}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := pipeline.New(tc.start, tc.targets)
			assert.Error(t, err)
		})
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	p, err := pipeline.FromConfig(&cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "values", "parse", "output"}, p.Queues())
	assert.Equal(t, 4, p.Stages()[1].Workers)
}
