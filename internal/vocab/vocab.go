// Package vocab holds the fixed vocabularies used by matching and case
// derivations: judgment category phrases, the court status map and the event
// types that count as a court appearance.
package vocab

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var defaultVocabulary []byte

// Status groups.
const (
	GroupOpen      = "Open"
	GroupJudgment  = "Judgment"
	GroupDismissed = "Dismissed"
	GroupClosed    = "Closed"
	GroupAppealed  = "Appealed"
	GroupAbated    = "Abated"
)

type CategoryPhrases struct {
	Name    string   `yaml:"name"`
	Phrases []string `yaml:"phrases"`
}

type StatusInfo struct {
	Active bool   `yaml:"active"`
	Group  string `yaml:"group"`
}

type Vocabulary struct {
	Categories   []CategoryPhrases     `yaml:"categories"`
	Statuses     map[string]StatusInfo `yaml:"statuses"`
	HearingTypes []string              `yaml:"hearing_types"`

	hearing map[string]struct{}
}

var (
	defaultOnce sync.Once
	defaultVoc  *Vocabulary
)

// Default returns the embedded vocabulary. It panics if the embedded file is invalid.
func Default() *Vocabulary {
	defaultOnce.Do(func() {
		v, err := Load(defaultVocabulary)
		if err != nil {
			panic(fmt.Sprintf("vocab: embedded vocabulary: %v", err))
		}
		defaultVoc = v
	})
	return defaultVoc
}

// Load parses a vocabulary document.
func Load(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary: %w", err)
	}
	if len(v.Categories) == 0 {
		return nil, fmt.Errorf("vocabulary has no categories")
	}
	for _, c := range v.Categories {
		if c.Name == "" || len(c.Phrases) == 0 {
			return nil, fmt.Errorf("category %q has no phrases", c.Name)
		}
	}

	statuses := make(map[string]StatusInfo, len(v.Statuses))
	for k, info := range v.Statuses {
		statuses[normalizeKey(k)] = info
	}
	v.Statuses = statuses

	v.hearing = make(map[string]struct{}, len(v.HearingTypes))
	for _, h := range v.HearingTypes {
		v.hearing[normalizeKey(h)] = struct{}{}
	}
	return &v, nil
}

// Status looks up a court status case-insensitively.
func (v *Vocabulary) Status(status string) (StatusInfo, bool) {
	info, ok := v.Statuses[normalizeKey(status)]
	return info, ok
}

// InactiveStatuses lists statuses of cases that no longer need refreshing, sorted.
func (v *Vocabulary) InactiveStatuses() []string {
	var out []string
	for k, info := range v.Statuses {
		if !info.Active {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// IsHearingType reports whether an event type counts as a court appearance.
func (v *Vocabulary) IsHearingType(eventType string) bool {
	_, ok := v.hearing[normalizeKey(eventType)]
	return ok
}

func normalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
