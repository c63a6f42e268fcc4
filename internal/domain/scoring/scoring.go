// Package scoring grades free-text snippets as injury evidence for a named player.
package scoring

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/okian/sickbay/internal/domain/keywords"
	"github.com/okian/sickbay/internal/domain/model"
	"github.com/okian/sickbay/internal/domain/reliability"
)

const (
	scoreNormalizer          = 10.0
	negationFactor           = 0.2
	confirmationFactor       = 1.3
	defaultAvailability      = 90
	defaultMaxMatchedKeyword = 10
)

// Interpretations returned in AnalysisResult.
const (
	InterpretationConfirmed  = "confirmed injury"
	InterpretationProbable   = "probable injury"
	InterpretationDoubtful   = "doubtful injury report"
	InterpretationUnreliable = "unreliable or no injury signal"
	InterpretationNotMention = "player not mentioned"
)

// Analyzer grades one snippet for one player.
type Analyzer interface {
	Analyze(text, playerName, source string, sourceType model.SourceType) model.AnalysisResult
}

// Option applies a configuration option to the TextSignalAnalyzer.
type Option func(*TextSignalAnalyzer)

// WithProbableThreshold overrides the confidence at which a snippet counts as an injury.
func WithProbableThreshold(v float64) Option {
	return func(a *TextSignalAnalyzer) {
		if v > 0 && v <= 1 {
			a.probable = v
		}
	}
}

// WithMaxMatchedKeywords caps the matched keyword list.
func WithMaxMatchedKeywords(n int) Option {
	return func(a *TextSignalAnalyzer) {
		if n > 0 {
			a.maxMatched = n
		}
	}
}

type category struct {
	weight float64
	terms  []string
}

type availability struct {
	percent int
	terms   []string
}

type unit struct {
	stem string
	days int
}

// TextSignalAnalyzer is a rule-weighted analyzer built from a keywords.Profile.
// It is safe for concurrent use.
type TextSignalAnalyzer struct {
	injury       []category
	severity     []string
	types        []string
	severe       []string
	moderate     []string
	availability []availability
	durations    []*regexp.Regexp
	units        []unit
	negation     []string
	confirmation []string
	window       int
	thresholds   keywords.Thresholds
	probable     float64
	maxMatched   int
	reliability  reliability.Table
}

// NewTextSignalAnalyzer compiles profile into an analyzer.
func NewTextSignalAnalyzer(profile keywords.Profile, opts ...Option) (*TextSignalAnalyzer, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	a := &TextSignalAnalyzer{
		severe:       keywords.Lower(profile.SevereTerms),
		moderate:     keywords.Lower(profile.ModerateTerms),
		negation:     keywords.Lower(profile.Negation),
		confirmation: keywords.Lower(profile.Confirmation),
		window:       profile.NegationWindow,
		thresholds:   profile.Thresholds,
		probable:     profile.Thresholds.Probable,
		maxMatched:   defaultMaxMatchedKeyword,
		reliability:  profile.Reliability,
	}

	for _, c := range profile.Injury {
		terms := keywords.Lower(c.Terms)
		a.injury = append(a.injury, category{weight: c.Weight, terms: terms})
		switch c.Name {
		case profile.SeverityCategory:
			a.severity = terms
		case profile.TypeCategory:
			a.types = terms
		}
	}
	for _, c := range profile.Availability {
		a.availability = append(a.availability, availability{
			percent: clampPercent(int(math.Round(c.Confidence * 100))),
			terms:   keywords.Lower(c.Terms),
		})
	}
	for _, expr := range profile.DurationPatterns {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", keywords.ErrInvalidProfile, err)
		}
		a.durations = append(a.durations, re)
	}
	for _, u := range profile.Units {
		a.units = append(a.units, unit{stem: strings.ToLower(u.Stem), days: u.Days})
	}

	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Analyze grades text as evidence that playerName is injured. It never fails.
func (a *TextSignalAnalyzer) Analyze(text, playerName, source string, sourceType model.SourceType) model.AnalysisResult {
	lower := strings.ToLower(text)
	name := strings.ToLower(strings.TrimSpace(playerName))
	pos := -1
	if name != "" {
		pos = strings.Index(lower, name)
	}
	if pos < 0 {
		return model.AnalysisResult{
			Severity:               model.SeverityMinor,
			AvailabilityPercentage: defaultAvailability,
			Interpretation:         InterpretationNotMention,
			MatchedKeywords:        []string{},
		}
	}

	score, matched := a.injuryScore(lower)
	negated := a.negated(lower, pos, name)
	confirmed := keywords.Any(lower, a.confirmation)
	rel := a.reliability.Lookup(source, sourceType)

	confidence := score
	if negated {
		confidence *= negationFactor
	}
	if confirmed {
		confidence *= confirmationFactor
	}
	confidence = clamp01(confidence * rel)
	isInjury := confidence >= a.probable

	return model.AnalysisResult{
		IsInjury:               isInjury,
		Confidence:             confidence,
		InjuryScore:            score,
		Severity:               a.severityOf(lower),
		InjuryType:             a.injuryType(lower),
		DurationDays:           a.durationDays(lower),
		HasNegation:            negated,
		IsConfirmed:            confirmed,
		SourceReliability:      rel,
		AvailabilityPercentage: a.availabilityPercent(lower, isInjury, confidence),
		Interpretation:         a.interpret(confidence),
		MatchedKeywords:        matched,
	}
}

// AnalyzeItem is Analyze for an EvidenceItem.
func (a *TextSignalAnalyzer) AnalyzeItem(item model.EvidenceItem) model.AnalysisResult {
	return a.Analyze(item.RawText, item.PlayerName, item.SourceLabel, item.SourceType)
}

func (a *TextSignalAnalyzer) injuryScore(text string) (float64, []string) {
	var total float64
	matched := make([]string, 0, a.maxMatched)
	for _, c := range a.injury {
		for _, term := range c.terms {
			if !keywords.Contains(text, term) {
				continue
			}
			total += c.weight
			if len(matched) < a.maxMatched {
				matched = append(matched, term)
			}
		}
	}
	return clamp01(total / scoreNormalizer), matched
}

func (a *TextSignalAnalyzer) severityOf(text string) model.Severity {
	hits := keywords.Matches(text, a.severity)
	if containsAnyOf(hits, a.severe) {
		return model.SeveritySevere
	}
	if containsAnyOf(hits, a.moderate) {
		return model.SeverityModerate
	}
	return model.SeverityMinor
}

// containsAnyOf reports whether any hit contains any of the subset terms.
func containsAnyOf(hits, subset []string) bool {
	for _, h := range hits {
		for _, s := range subset {
			if strings.Contains(h, s) {
				return true
			}
		}
	}
	return false
}

func (a *TextSignalAnalyzer) injuryType(text string) *string {
	for _, term := range a.types {
		if keywords.Contains(text, term) {
			t := cases.Title(language.Und).String(term)
			return &t
		}
	}
	return nil
}

func (a *TextSignalAnalyzer) durationDays(text string) *int {
	for _, re := range a.durations {
		m := re.FindStringSubmatch(text)
		if len(m) < 3 {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		for _, u := range a.units {
			if strings.Contains(m[2], u.stem) {
				days := n * u.days
				return &days
			}
		}
	}
	return nil
}

// negated inspects a rune window around the first mention at byte offset pos.
func (a *TextSignalAnalyzer) negated(text string, pos int, name string) bool {
	runes := []rune(text)
	start := utf8.RuneCountInString(text[:pos])
	end := start + utf8.RuneCountInString(name)

	lo := start - a.window
	if lo < 0 {
		lo = 0
	}
	hi := end + a.window
	if hi > len(runes) {
		hi = len(runes)
	}
	return keywords.Any(string(runes[lo:hi]), a.negation)
}

func (a *TextSignalAnalyzer) availabilityPercent(text string, isInjury bool, confidence float64) int {
	if isInjury {
		switch {
		case confidence >= 0.8:
			return 10
		case confidence >= 0.5:
			return 30
		default:
			return 50
		}
	}
	for _, c := range a.availability {
		if keywords.Any(text, c.terms) {
			return c.percent
		}
	}
	return defaultAvailability
}

func (a *TextSignalAnalyzer) interpret(confidence float64) string {
	switch {
	case confidence >= a.thresholds.Confirmed:
		return InterpretationConfirmed
	case confidence >= a.thresholds.Probable:
		return InterpretationProbable
	case confidence >= a.thresholds.Doubtful:
		return InterpretationDoubtful
	default:
		return InterpretationUnreliable
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
