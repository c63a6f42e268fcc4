// Package reliability assigns a static trust weight to a cited source.
package reliability

import (
	"strings"

	"github.com/okian/sickbay/internal/domain/model"
)

// Weight maps a handle or domain fragment to a trust weight.
type Weight struct {
	Key    string  `yaml:"key" json:"key"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// Table is the read-only source reliability configuration.
type Table struct {
	Handles        []Weight `yaml:"handles" json:"handles"`
	Domains        []Weight `yaml:"domains" json:"domains"`
	SocialUnknown  float64  `yaml:"social_unknown" json:"social_unknown"`
	WebsiteDefault float64  `yaml:"website_default" json:"website_default"`
	Default        float64  `yaml:"default" json:"default"`
}

// Default returns the canonical table.
func Default() Table {
	return Table{
		Handles: []Weight{
			{Key: "Squawka", Weight: 0.90},
			{Key: "FabrizioRomano", Weight: 0.95},
			{Key: "lequipe", Weight: 0.95},
			{Key: "RMCsport", Weight: 0.90},
			{Key: "footmercato", Weight: 0.85},
			{Key: "OptaJoe", Weight: 0.90},
			{Key: "WhoScored", Weight: 0.85},
			{Key: "club_official", Weight: 1.00},
			{Key: "journalist", Weight: 0.80},
			{Key: "fan_account", Weight: 0.30},
		},
		Domains: []Weight{
			{Key: "lequipe.fr", Weight: 0.95},
			{Key: "transfermarkt.com", Weight: 0.90},
			{Key: "footmercato.net", Weight: 0.85},
			{Key: "goal.com", Weight: 0.80},
			{Key: "eurosport.fr", Weight: 0.90},
			{Key: "sofoot.com", Weight: 0.85},
			{Key: "rmcsport.bfmtv.com", Weight: 0.90},
		},
		SocialUnknown:  0.20,
		WebsiteDefault: 0.60,
		Default:        0.50,
	}
}

// Lookup returns the trust weight for source. The longest matching key wins,
// ties going to the earlier table entry.
func (t Table) Lookup(source string, sourceType model.SourceType) float64 {
	s := strings.ToLower(source)
	switch sourceType {
	case model.SourceSocial:
		if w, ok := bestMatch(s, t.Handles); ok {
			return clamp(w)
		}
		return clamp(t.SocialUnknown)
	case model.SourceWebsite:
		if w, ok := bestMatch(s, t.Domains); ok {
			return clamp(w)
		}
		return clamp(t.WebsiteDefault)
	default:
		return clamp(t.Default)
	}
}

func bestMatch(source string, table []Weight) (float64, bool) {
	best, bestLen, found := 0.0, 0, false
	for _, w := range table {
		key := strings.ToLower(w.Key)
		if key == "" || !strings.Contains(source, key) {
			continue
		}
		if len(key) > bestLen {
			best, bestLen, found = w.Weight, len(key), true
		}
	}
	return best, found
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
