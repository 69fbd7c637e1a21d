package lib

import (
	"fmt"
	"strings"
	"time"

	"github.com/cyclopcam/logs"
	"gonum.org/v1/gonum/stat"
)

type Stage int

const (
	StageCapture Stage = iota
	StageNetwork
	StageOverlay
	StageMask
	StageScan
	StageComposite
	StageRender
	numStages
)

var stageNames = [numStages]string{"capture", "network", "overlay", "mask", "scan", "composite", "render"}

func (s Stage) String() string {
	return stageNames[s]
}

// TimeAccumulator accumulates samples of how long something took.
type TimeAccumulator struct {
	Samples int64
	Total   time.Duration
	Last    time.Duration
}

func (a *TimeAccumulator) AddSample(v time.Duration) {
	a.Samples++
	a.Total += v
	a.Last = v
}

func (a *TimeAccumulator) Average() time.Duration {
	if a.Samples == 0 {
		return 0
	}
	return time.Duration(a.Total.Nanoseconds() / a.Samples)
}

// Profiler keeps per-stage timings of the frame loop and the network FPS.
type Profiler struct {
	stages     [numStages]TimeAccumulator
	networkFPS []float64
}

// Begin starts timing stage; call the returned function when it is done.
func (p *Profiler) Begin(stage Stage) func() {
	t0 := time.Now()
	return func() {
		p.stages[stage].AddSample(time.Since(t0))
	}
}

func (p *Profiler) Stage(stage Stage) TimeAccumulator {
	return p.stages[stage]
}

func (p *Profiler) AddNetworkFPS(fps float64) {
	if fps > 0 {
		p.networkFPS = append(p.networkFPS, fps)
	}
}

// NetworkFPSStats returns the mean and standard deviation of the network FPS.
func (p *Profiler) NetworkFPSStats() (mean float64, std float64) {
	if len(p.networkFPS) == 0 {
		return 0, 0
	}
	if len(p.networkFPS) == 1 {
		return p.networkFPS[0], 0
	}
	return stat.MeanStdDev(p.networkFPS, nil)
}

// PrintProfilerTimes logs the timings of the last frame.
func (p *Profiler) PrintProfilerTimes(log logs.Log) {
	var parts []string
	var total time.Duration
	for s := Stage(0); s < numStages; s++ {
		acc := p.stages[s]
		if acc.Samples == 0 {
			continue
		}
		total += acc.Last
		parts = append(parts, fmt.Sprintf("%v %.2fms", s, float64(acc.Last.Microseconds())/1000))
	}
	log.Debugf("Timing: %v | total %.2fms", strings.Join(parts, ", "), float64(total.Microseconds())/1000)
}

// PrintSummary logs the average timings over the whole run.
func (p *Profiler) PrintSummary(log logs.Log) {
	for s := Stage(0); s < numStages; s++ {
		acc := p.stages[s]
		if acc.Samples == 0 {
			continue
		}
		log.Infof("%-10v %6d samples, avg %.2fms", s, acc.Samples, float64(acc.Average().Microseconds())/1000)
	}
	mean, std := p.NetworkFPSStats()
	log.Infof("Network FPS %.1f ± %.1f", mean, std)
}
