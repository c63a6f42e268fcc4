package model

// Severity grades an injury.
type Severity string

const (
	SeverityMinor    Severity = "Minor"
	SeverityModerate Severity = "Moderate"
	SeveritySevere   Severity = "Severe"
	SeverityUnknown  Severity = "Unknown"
)

// AnalysisResult is the graded assessment of one snippet for one player.
type AnalysisResult struct {
	IsInjury               bool     `json:"is_injury"`
	Confidence             float64  `json:"confidence"`
	InjuryScore            float64  `json:"injury_score"`
	Severity               Severity `json:"severity"`
	InjuryType             *string  `json:"injury_type"`
	DurationDays           *int     `json:"duration_days"`
	HasNegation            bool     `json:"has_negation"`
	IsConfirmed            bool     `json:"is_confirmed"`
	SourceReliability      float64  `json:"source_reliability"`
	AvailabilityPercentage int      `json:"availability_percentage"`
	Interpretation         string   `json:"interpretation"`
	MatchedKeywords        []string `json:"matched_keywords"`
}
