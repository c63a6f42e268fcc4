// Package keywords holds the keyword and threshold tables that drive text
// analysis and absence filtering. A Profile is plain data: analyzers and
// filters copy what they need at construction and never mutate it.
package keywords

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/okian/sickbay/internal/domain/reliability"
)

// Category is a weighted group of injury terms.
type Category struct {
	Name   string   `yaml:"name"`
	Weight float64  `yaml:"weight"`
	Terms  []string `yaml:"terms"`
}

// AvailabilityCategory maps terms to a probability of playing.
type AvailabilityCategory struct {
	Name       string   `yaml:"name"`
	Confidence float64  `yaml:"confidence"`
	Terms      []string `yaml:"terms"`
}

// Unit maps a duration unit stem to a number of days.
type Unit struct {
	Stem string `yaml:"stem"`
	Days int    `yaml:"days"`
}

// Thresholds bucket a confidence score.
type Thresholds struct {
	Confirmed float64 `yaml:"confirmed"`
	Probable  float64 `yaml:"probable"`
	Doubtful  float64 `yaml:"doubtful"`
}

// Absence holds the structured-feed filter vocabulary.
type Absence struct {
	RealInjury    []string `yaml:"real_injury"`
	NonMedical    []string `yaml:"non_medical"`
	MissingMarker string   `yaml:"missing_marker"`
	Severe        []string `yaml:"severe"`
	Moderate      []string `yaml:"moderate"`
	Minor         []string `yaml:"minor"`
}

// Profile is a complete analysis configuration.
type Profile struct {
	Name string `yaml:"name"`

	// Injury categories in scoring order.
	Injury           []Category `yaml:"injury"`
	SeverityCategory string     `yaml:"severity_category"`
	TypeCategory     string     `yaml:"type_category"`
	SevereTerms      []string   `yaml:"severe_terms"`
	ModerateTerms    []string   `yaml:"moderate_terms"`

	Availability     []AvailabilityCategory `yaml:"availability"`
	DurationPatterns []string               `yaml:"duration_patterns"`
	Units            []Unit                 `yaml:"units"`
	Negation         []string               `yaml:"negation"`
	Confirmation     []string               `yaml:"confirmation"`
	NegationWindow   int                    `yaml:"negation_window"`
	Thresholds       Thresholds             `yaml:"thresholds"`

	Reliability reliability.Table `yaml:"reliability"`
	Absence     Absence           `yaml:"absence"`
}

// Validate checks the profile is usable.
func (p Profile) Validate() error {
	if len(p.Injury) == 0 {
		return fmt.Errorf("%w: no injury categories", ErrInvalidProfile)
	}
	names := make(map[string]bool, len(p.Injury))
	for _, c := range p.Injury {
		if c.Name == "" {
			return fmt.Errorf("%w: unnamed injury category", ErrInvalidProfile)
		}
		if c.Weight < 0 {
			return fmt.Errorf("%w: category %q has negative weight", ErrInvalidProfile, c.Name)
		}
		names[c.Name] = true
	}
	if p.SeverityCategory != "" && !names[p.SeverityCategory] {
		return fmt.Errorf("%w: unknown severity category %q", ErrInvalidProfile, p.SeverityCategory)
	}
	if p.TypeCategory != "" && !names[p.TypeCategory] {
		return fmt.Errorf("%w: unknown type category %q", ErrInvalidProfile, p.TypeCategory)
	}
	for _, expr := range p.DurationPatterns {
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("%w: duration pattern %q: %v", ErrInvalidProfile, expr, err)
		}
		if re.NumSubexp() < 2 {
			return fmt.Errorf("%w: duration pattern %q needs number and unit groups", ErrInvalidProfile, expr)
		}
	}
	t := p.Thresholds
	if !(t.Doubtful <= t.Probable && t.Probable <= t.Confirmed) {
		return fmt.Errorf("%w: thresholds must satisfy doubtful <= probable <= confirmed", ErrInvalidProfile)
	}
	if t.Confirmed > 1 || t.Doubtful < 0 {
		return fmt.Errorf("%w: thresholds must lie in [0,1]", ErrInvalidProfile)
	}
	if p.NegationWindow < 0 {
		return fmt.Errorf("%w: negative negation window", ErrInvalidProfile)
	}
	return nil
}

// Category returns the named injury category.
func (p Profile) Category(name string) (Category, bool) {
	for _, c := range p.Injury {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// Lower returns a lowercased copy of terms.
func Lower(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
