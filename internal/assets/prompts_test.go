package assets

import (
	"strings"
	"testing"
)

func TestLookupPreset(t *testing.T) {
	tests := []struct {
		name      string
		wantName  string
		wantFirst string
		contains  string
	}{
		{"", "standard", "gemini-2.5-flash", "exactly as spoken"},
		{"Discourse", "discourse", "gemini-2.5-pro", "Hari Katha"},
		{" roman ", "roman", "gemini-2.5-pro", "Roman alphabet"},
		{"web", "web", "gemini-2.5-flash", "timestamps [MM:SS]"},
	}
	for _, tt := range tests {
		t.Run(tt.wantName, func(t *testing.T) {
			p, err := LookupPreset(tt.name)
			if err != nil {
				t.Fatalf("LookupPreset(%q): %v", tt.name, err)
			}
			if p.Name != tt.wantName {
				t.Errorf("expected name %s, got %s", tt.wantName, p.Name)
			}
			if len(p.Candidates) == 0 || p.Candidates[0] != tt.wantFirst {
				t.Errorf("expected first candidate %s, got %v", tt.wantFirst, p.Candidates)
			}
			if !strings.Contains(p.Instruction, tt.contains) {
				t.Errorf("instruction missing %q", tt.contains)
			}
			if p.Instruction != strings.TrimSpace(p.Instruction) {
				t.Error("instruction should be trimmed")
			}
		})
	}
}

func TestLookupPreset_Unknown(t *testing.T) {
	_, err := LookupPreset("klingon")
	if err == nil {
		t.Fatal("expected error for unknown preset")
	}
	if !strings.Contains(err.Error(), "discourse") {
		t.Errorf("error should list available presets, got %v", err)
	}
}

func TestLookupPreset_CandidatesAreCopied(t *testing.T) {
	p, _ := LookupPreset("standard")
	p.Candidates[0] = "mutated"
	again, _ := LookupPreset("standard")
	if again.Candidates[0] != "gemini-2.5-flash" {
		t.Error("mutating a returned preset must not affect later lookups")
	}
}

func TestIndexHTMLEmbedded(t *testing.T) {
	if !strings.Contains(string(IndexHTML), `name="audio"`) {
		t.Error("index page must post the audio field")
	}
}
