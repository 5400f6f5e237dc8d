package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		pipelineJobs,
		pipelineStageSeconds,
		pipelineChunks,
		dispatcherRunning,
	)
}

var (
	pipelineJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minutes_pipeline_jobs_total",
			Help: "Finished pipeline jobs per outcome (completed, failed).",
		},
		[]string{"outcome"},
	)

	pipelineStageSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "minutes_pipeline_stage_seconds",
			Help:    "Duration of each pipeline stage in seconds.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"stage", "success"},
	)

	pipelineChunks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "minutes_pipeline_chunks_total",
			Help: "Transcript chunks embedded and stored.",
		},
	)

	dispatcherRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "minutes_dispatcher_running_jobs",
			Help: "Pipeline jobs currently running in the dispatcher pool.",
		},
	)
)

// JobFinished counts a job that reached a terminal status.
func JobFinished(outcome string) {
	pipelineJobs.WithLabelValues(norm(outcome)).Inc()
}

// ObserveStage records how long a stage took since start.
func ObserveStage(stage string, start time.Time, err error) {
	success := "true"
	if err != nil {
		success = "false"
	}
	pipelineStageSeconds.WithLabelValues(norm(stage), success).Observe(time.Since(start).Seconds())
}

// ChunksStored adds n stored chunks.
func ChunksStored(n int) {
	pipelineChunks.Add(float64(n))
}

// JobStarted and JobDone track dispatcher occupancy.
func JobStarted() { dispatcherRunning.Inc() }

func JobDone() { dispatcherRunning.Dec() }
