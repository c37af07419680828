package transcribe

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

// genResult is the scripted outcome of one Generate call.
type genResult struct {
	text string
	err  error
}

// fakeBackend is a scripted Backend that records every call.
type fakeBackend struct {
	mu sync.Mutex

	uploadErr   error
	uploadState State
	uploaded    []byte

	statuses  []State
	statusErr error

	results map[string]genResult

	calls   []string
	models  []string
	deleted []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		uploadState: StateReady,
		results:     make(map[string]genResult),
	}
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) Upload(ctx context.Context, r io.Reader, mimeType, displayName string) (*RemoteHandle, error) {
	f.record("upload")
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.uploaded = data
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &RemoteHandle{
		ID:       "files/abc123",
		URI:      "https://generativelanguage.googleapis.com/v1beta/files/abc123",
		MIMEType: mimeType,
		State:    f.uploadState,
	}, nil
}

func (f *fakeBackend) Status(ctx context.Context, id string) (State, error) {
	f.record("status")
	if f.statusErr != nil {
		return StateProcessing, f.statusErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return StateProcessing, nil
	}
	s := f.statuses[0]
	f.statuses = f.statuses[1:]
	return s, nil
}

func (f *fakeBackend) Generate(ctx context.Context, model string, handle *RemoteHandle, instruction string) (string, error) {
	f.record("generate:" + model)
	f.mu.Lock()
	f.models = append(f.models, model)
	res, ok := f.results[model]
	f.mu.Unlock()
	if !ok {
		return "", errors.New("unexpected model " + model)
	}
	return res.text, res.err
}

func (f *fakeBackend) Delete(ctx context.Context, id string) error {
	f.record("delete")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBackend) generated() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.models...)
}

func (f *fakeBackend) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

// noSleep replaces real delays in tests.
func noSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}
