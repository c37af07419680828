package transcribe

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"google.golang.org/genai"
)

var readyHandle = &RemoteHandle{ID: "files/a", URI: "https://example/files/a", MIMEType: "audio/mp3", State: StateReady}

func newTestExecutor(b Backend, gate *Gate) *Executor {
	e := NewExecutor(b, gate, 0)
	e.sleep = noSleep
	return e
}

func TestExecutor_FirstSuccessWins(t *testing.T) {
	b := newFakeBackend()
	b.results["X"] = genResult{text: "hello"}
	b.results["Y"] = genResult{text: "never"}

	got, err := newTestExecutor(b, nil).Execute(context.Background(), readyHandle, []string{"X", "Y"}, "transcribe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Model != "X" || got.Text != "hello" {
		t.Errorf("expected {X hello}, got %+v", got)
	}
	if models := b.generated(); !reflect.DeepEqual(models, []string{"X"}) {
		t.Errorf("expected only X to be attempted, got %v", models)
	}
}

func TestExecutor_QuotaAbortsRemaining(t *testing.T) {
	b := newFakeBackend()
	b.results["X"] = genResult{err: genai.APIError{Code: 429, Message: "Resource has been exhausted"}}
	b.results["Y"] = genResult{text: "never"}

	_, err := newTestExecutor(b, nil).Execute(context.Background(), readyHandle, []string{"X", "Y"}, "transcribe")
	if KindOf(err) != KindQuotaExceeded {
		t.Fatalf("expected quota_exceeded, got %v", err)
	}
	if models := b.generated(); !reflect.DeepEqual(models, []string{"X"}) {
		t.Errorf("Y must never be attempted after a quota failure, got %v", models)
	}
}

func TestExecutor_GenericFailureFallsThrough(t *testing.T) {
	b := newFakeBackend()
	b.results["X"] = genResult{err: errors.New("503 service unavailable")}
	b.results["Y"] = genResult{text: "world"}

	got, err := newTestExecutor(b, nil).Execute(context.Background(), readyHandle, []string{"X", "Y"}, "transcribe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Model != "Y" || got.Text != "world" {
		t.Errorf("expected {Y world}, got %+v", got)
	}
}

func TestExecutor_AllCandidatesFailed(t *testing.T) {
	b := newFakeBackend()
	errX := errors.New("boom X")
	errY := genai.APIError{Code: 404, Message: "not found"}
	b.results["X"] = genResult{err: errX}
	b.results["Y"] = genResult{err: errY}

	_, err := newTestExecutor(b, nil).Execute(context.Background(), readyHandle, []string{"X", "Y"}, "transcribe")
	if KindOf(err) != KindAllCandidatesFailed {
		t.Fatalf("expected all_candidates_failed, got %v", err)
	}
	if !errors.Is(err, errX) {
		t.Error("expected the joined error to contain X's failure")
	}
	if models := b.generated(); !reflect.DeepEqual(models, []string{"X", "Y"}) {
		t.Errorf("expected X then Y, got %v", models)
	}
	var pe *Error
	errors.As(err, &pe)
	if strings.Contains(pe.Message, "boom") {
		t.Errorf("user message leaked backend text: %q", pe.Message)
	}
}

func TestExecutor_SingleCandidateKeepsHint(t *testing.T) {
	b := newFakeBackend()
	b.results["gemini-9"] = genResult{err: genai.APIError{Code: 404}}

	_, err := newTestExecutor(b, nil).Execute(context.Background(), readyHandle, []string{"gemini-9"}, "transcribe")
	var pe *Error
	if !errors.As(err, &pe) || pe.Kind != KindAllCandidatesFailed {
		t.Fatalf("expected all_candidates_failed, got %v", err)
	}
	if !strings.Contains(pe.Message, "Model 'gemini-9' is not available") {
		t.Errorf("expected model hint in message, got %q", pe.Message)
	}
}

func TestExecutor_EmptyTextIsFailure(t *testing.T) {
	b := newFakeBackend()
	b.results["X"] = genResult{text: "   "}
	b.results["Y"] = genResult{text: "ok"}

	got, err := newTestExecutor(b, nil).Execute(context.Background(), readyHandle, []string{"X", "Y"}, "transcribe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Model != "Y" {
		t.Errorf("expected Y after empty X response, got %s", got.Model)
	}
}

func TestExecutor_NoCandidates(t *testing.T) {
	b := newFakeBackend()
	_, err := newTestExecutor(b, nil).Execute(context.Background(), readyHandle, nil, "transcribe")
	if KindOf(err) != KindAllCandidatesFailed {
		t.Fatalf("expected all_candidates_failed, got %v", err)
	}
	if len(b.generated()) != 0 {
		t.Error("no backend call expected without candidates")
	}
}

func TestExecutor_QuotaTripsSharedGate(t *testing.T) {
	b := newFakeBackend()
	b.results["X"] = genResult{err: genai.APIError{Code: 429}}
	b.results["Y"] = genResult{text: "late"}
	gate := NewGate(0, 0, time.Minute)

	_, err := newTestExecutor(b, gate).Execute(context.Background(), readyHandle, []string{"X"}, "transcribe")
	if KindOf(err) != KindQuotaExceeded {
		t.Fatalf("expected quota_exceeded, got %v", err)
	}

	// A sibling run sharing the gate is rejected without reaching the backend.
	_, err = newTestExecutor(b, gate).Execute(context.Background(), readyHandle, []string{"Y"}, "transcribe")
	if KindOf(err) != KindQuotaExceeded {
		t.Fatalf("expected sibling run to see quota_exceeded, got %v", err)
	}
	if models := b.generated(); !reflect.DeepEqual(models, []string{"X"}) {
		t.Errorf("expected no call for the sibling run, got %v", models)
	}
}

func TestExecutor_CanceledStopsLoop(t *testing.T) {
	b := newFakeBackend()
	b.results["X"] = genResult{err: context.Canceled}
	b.results["Y"] = genResult{text: "never"}

	_, err := newTestExecutor(b, nil).Execute(context.Background(), readyHandle, []string{"X", "Y"}, "transcribe")
	if KindOf(err) != KindCanceled {
		t.Fatalf("expected canceled, got %v", err)
	}
	if len(b.generated()) != 1 {
		t.Errorf("expected loop to stop after cancellation, got %v", b.generated())
	}
}
