package keywords

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Sentinel errors for profile handling.
var (
	ErrInvalidProfile = errors.New("invalid keyword profile")
	ErrLoadProfile    = errors.New("failed to load keyword profile")
)

// LoadFile reads a YAML profile. Sections missing from the file keep the
// values of Default, so a file may override only what it needs.
func LoadFile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrLoadProfile, err)
	}
	return Parse(data)
}

// Parse decodes a YAML profile, fills empty sections from Default and validates it.
func Parse(data []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrLoadProfile, err)
	}
	p = p.withDefaults(Default())
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (p Profile) withDefaults(d Profile) Profile {
	if p.Name == "" {
		p.Name = "custom"
	}
	if len(p.Injury) == 0 {
		p.Injury = d.Injury
		if p.SeverityCategory == "" {
			p.SeverityCategory = d.SeverityCategory
		}
		if p.TypeCategory == "" {
			p.TypeCategory = d.TypeCategory
		}
	}
	if len(p.SevereTerms) == 0 {
		p.SevereTerms = d.SevereTerms
	}
	if len(p.ModerateTerms) == 0 {
		p.ModerateTerms = d.ModerateTerms
	}
	if len(p.Availability) == 0 {
		p.Availability = d.Availability
	}
	if len(p.DurationPatterns) == 0 {
		p.DurationPatterns = d.DurationPatterns
	}
	if len(p.Units) == 0 {
		p.Units = d.Units
	}
	if len(p.Negation) == 0 {
		p.Negation = d.Negation
	}
	if len(p.Confirmation) == 0 {
		p.Confirmation = d.Confirmation
	}
	if p.NegationWindow == 0 {
		p.NegationWindow = d.NegationWindow
	}
	if p.Thresholds == (Thresholds{}) {
		p.Thresholds = d.Thresholds
	}
	if len(p.Reliability.Handles) == 0 && len(p.Reliability.Domains) == 0 {
		p.Reliability = d.Reliability
	}
	if len(p.Absence.RealInjury) == 0 && len(p.Absence.NonMedical) == 0 {
		p.Absence = d.Absence
	}
	return p
}
