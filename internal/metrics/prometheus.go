package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriber_runs_total",
		Help: "Transcription runs by outcome (success or failure kind)",
	}, []string{"outcome"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transcriber_run_duration_seconds",
		Help:    "End-to-end duration of a transcription run",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300, 600},
	})

	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriber_model_attempts_total",
		Help: "Generation attempts by model and result",
	}, []string{"model", "result"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriber_http_requests_total",
		Help: "HTTP API requests by path and status code",
	}, []string{"path", "code"})
)

// OtherModel is the attempt label for models nobody registered.
const OtherModel = "other"

var (
	knownMu     sync.RWMutex
	knownModels = make(map[string]struct{})
)

// RegisterModels adds models to the set reported by name on the attempts
// counter. Only configured candidate lists are registered; names that come
// from requests are folded into OtherModel.
func RegisterModels(models ...string) {
	knownMu.Lock()
	defer knownMu.Unlock()
	for _, m := range models {
		if m = strings.TrimSpace(m); m != "" {
			knownModels[m] = struct{}{}
		}
	}
}

// ModelLabel returns model if it was registered, OtherModel otherwise.
func ModelLabel(model string) string {
	knownMu.RLock()
	defer knownMu.RUnlock()
	if _, ok := knownModels[model]; ok {
		return model
	}
	return OtherModel
}

// ObserveRun records one finished pipeline run.
func ObserveRun(outcome string, elapsed time.Duration) {
	runsTotal.WithLabelValues(outcome).Inc()
	runDuration.Observe(elapsed.Seconds())
}

// ObserveAttempt records one generation attempt against model. Unregistered
// models are counted under OtherModel.
func ObserveAttempt(model, result string) {
	attemptsTotal.WithLabelValues(ModelLabel(model), result).Inc()
}

// ObserveHTTP records one HTTP API request.
func ObserveHTTP(path, code string) {
	httpRequests.WithLabelValues(path, code).Inc()
}
