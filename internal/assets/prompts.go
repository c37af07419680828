// Package assets provides embedded static assets for the application.
//
// Instruction prompts are stored as text files under prompts/ and embedded at
// compile time. Each prompt is paired with a default candidate model list to
// form a Preset.
package assets

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed prompts/standard.txt
var standardPrompt string

//go:embed prompts/discourse.txt
var discoursePrompt string

//go:embed prompts/roman.txt
var romanPrompt string

//go:embed prompts/web.txt
var webPrompt string

// DefaultPreset is used when no preset is configured.
const DefaultPreset = "standard"

// FlashModels favours fast models; tried in order.
var FlashModels = []string{
	"gemini-2.5-flash",
	"gemini-2.0-flash-exp",
	"gemini-2.0-flash",
	"gemini-flash-latest",
}

// ProModels favours accuracy on accents and mixed-language audio.
var ProModels = []string{
	"gemini-2.5-pro",
	"gemini-2.0-pro-exp-02-05",
	"gemini-1.5-pro",
	"gemini-2.5-flash",
}

// Preset is a named instruction with the candidate models it is tuned for.
type Preset struct {
	Name        string
	Instruction string
	Candidates  []string
}

var presets = map[string]Preset{
	"standard":  {Name: "standard", Instruction: standardPrompt, Candidates: FlashModels},
	"discourse": {Name: "discourse", Instruction: discoursePrompt, Candidates: ProModels},
	"roman":     {Name: "roman", Instruction: romanPrompt, Candidates: ProModels},
	// The web form picks a single model; gemini-2.5-flash unless overridden.
	"web": {Name: "web", Instruction: webPrompt, Candidates: []string{"gemini-2.5-flash"}},
}

// LookupPreset returns the named preset. Names are case-insensitive and an
// empty name selects DefaultPreset. The returned candidate slice is a copy.
func LookupPreset(name string) (Preset, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = DefaultPreset
	}
	p, ok := presets[key]
	if !ok {
		return Preset{}, fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(PresetNames(), ", "))
	}
	p.Instruction = strings.TrimSpace(p.Instruction)
	p.Candidates = append([]string(nil), p.Candidates...)
	return p, nil
}

// PresetNames lists the available presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
