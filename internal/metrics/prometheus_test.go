package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestModelLabel(t *testing.T) {
	if got := ModelLabel("never-registered-model"); got != OtherModel {
		t.Errorf("expected %q for an unregistered model, got %q", OtherModel, got)
	}

	RegisterModels(" label-test-model ", "")
	if got := ModelLabel("label-test-model"); got != "label-test-model" {
		t.Errorf("expected registered model to keep its name, got %q", got)
	}
	if got := ModelLabel(""); got != OtherModel {
		t.Errorf("empty model must not be registered, got %q", got)
	}
}

func TestObserveAttempt_FoldsUnknownModels(t *testing.T) {
	before := testutil.ToFloat64(attemptsTotal.WithLabelValues(OtherModel, "transient"))

	ObserveAttempt("caller-supplied-1", "transient")
	ObserveAttempt("caller-supplied-2", "transient")

	if got := testutil.ToFloat64(attemptsTotal.WithLabelValues(OtherModel, "transient")); got != before+2 {
		t.Errorf("expected both attempts under %q, got %v (was %v)", OtherModel, got, before)
	}
}

func TestObserveHTTP(t *testing.T) {
	before := testutil.ToFloat64(httpRequests.WithLabelValues("/api/health", "200"))
	ObserveHTTP("/api/health", "200")
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("/api/health", "200")); got != before+1 {
		t.Errorf("expected counter to increase by 1, got %v (was %v)", got, before)
	}
}
