package lib

import (
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/assert"
)

func TestProfiler(t *testing.T) {
	var p Profiler
	for i := 0; i < 3; i++ {
		done := p.Begin(StageNetwork)
		time.Sleep(time.Millisecond)
		done()
	}
	acc := p.Stage(StageNetwork)
	assert.Equal(t, int64(3), acc.Samples)
	assert.GreaterOrEqual(t, acc.Average(), time.Millisecond)
	assert.Equal(t, int64(0), p.Stage(StageRender).Samples)
	assert.Equal(t, "network", StageNetwork.String())

	mean, std := p.NetworkFPSStats()
	assert.Equal(t, 0.0, mean)
	assert.Equal(t, 0.0, std)
	p.AddNetworkFPS(10)
	p.AddNetworkFPS(0)
	p.AddNetworkFPS(20)
	mean, std = p.NetworkFPSStats()
	assert.Equal(t, 15.0, mean)
	assert.InDelta(t, 7.07, std, 0.01)

	log := logs.NewTestingLog(t)
	p.PrintProfilerTimes(log)
	p.PrintSummary(log)
}
