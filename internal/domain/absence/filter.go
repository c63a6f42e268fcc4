// Package absence separates medical absences from suspensions, rest and
// other non-medical reasons in the provider's structured feed.
package absence

import (
	"math"
	"strings"

	"github.com/okian/sickbay/internal/domain/keywords"
	"github.com/okian/sickbay/internal/domain/model"
)

const (
	baseConfidence = 0.5
	realBonus      = 0.2
	realBonusCap   = 0.5
	fakePenalty    = 0.3
	fakePenaltyCap = 0.5
)

// Verdict is the filter outcome for one absence.
type Verdict struct {
	Medical    bool
	Rule       Rule
	Confidence float64
	Severity   model.Severity
}

// Filter classifies absences. Rejection is the default: an entry is medical
// only when its reason names an injury.
type Filter struct {
	real       []string
	nonMedical []string
	marker     string
	severe     []string
	moderate   []string
	minor      []string
}

// NewFilter builds a filter from the absence vocabulary.
func NewFilter(vocab keywords.Absence) *Filter {
	return &Filter{
		real:       keywords.Lower(vocab.RealInjury),
		nonMedical: keywords.Lower(vocab.NonMedical),
		marker:     strings.ToLower(strings.TrimSpace(vocab.MissingMarker)),
		severe:     keywords.Lower(vocab.Severe),
		moderate:   keywords.Lower(vocab.Moderate),
		minor:      keywords.Lower(vocab.Minor),
	}
}

// Rule names the precedence step that decided an absence.
type Rule string

const (
	RuleInjuryReason     Rule = "injury_reason"
	RuleNonMedicalReason Rule = "non_medical_reason"
	RuleNonMedicalType   Rule = "non_medical_type"
	RuleMissingFixture   Rule = "missing_fixture"
	RuleDefaultReject    Rule = "default_reject"
)

// IsMedical reports whether the absence is injury-related.
func (f *Filter) IsMedical(typ, reason string) bool {
	medical, _ := f.Decide(typ, reason)
	return medical
}

// Decide applies the precedence rules and reports which one fired.
// A named injury in the reason wins over any non-medical term.
func (f *Filter) Decide(typ, reason string) (bool, Rule) {
	t, r := normalize(typ), normalize(reason)

	switch {
	case r != "" && keywords.Any(r, f.real):
		return true, RuleInjuryReason
	case r != "" && keywords.Any(r, f.nonMedical):
		return false, RuleNonMedicalReason
	case r == "" && keywords.Any(t, f.nonMedical):
		return false, RuleNonMedicalType
	case r == "" && f.marker != "" && strings.Contains(t, f.marker):
		return false, RuleMissingFixture
	default:
		return false, RuleDefaultReject
	}
}

// Confidence scores how likely the absence is a real injury.
func (f *Filter) Confidence(_, reason string) float64 {
	r := normalize(reason)
	c := baseConfidence
	if r != "" {
		if n := len(keywords.Matches(r, f.real)); n > 0 {
			c += math.Min(float64(n)*realBonus, realBonusCap)
		}
		if n := len(keywords.Matches(r, f.nonMedical)); n > 0 {
			c -= math.Min(float64(n)*fakePenalty, fakePenaltyCap)
		}
	}
	return math.Max(0, math.Min(1, c))
}

// Severity grades the reason. Empty or unrecognized reasons are Unknown.
func (f *Filter) Severity(reason string) model.Severity {
	r := normalize(reason)
	switch {
	case r == "":
		return model.SeverityUnknown
	case keywords.Any(r, f.severe):
		return model.SeveritySevere
	case keywords.Any(r, f.moderate):
		return model.SeverityModerate
	case keywords.Any(r, f.minor):
		return model.SeverityMinor
	default:
		return model.SeverityUnknown
	}
}

// Classify applies all three checks to a raw absence.
func (f *Filter) Classify(a model.RawAbsence) Verdict {
	medical, rule := f.Decide(a.Type, a.Reason)
	return Verdict{
		Medical:    medical,
		Rule:       rule,
		Confidence: f.Confidence(a.Type, a.Reason),
		Severity:   f.Severity(a.Reason),
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
