// Package model contains the domain types passed between pipeline stages.
package model

import (
	"strings"
	"time"
)

// SourceType says where a snippet was published.
type SourceType string

const (
	SourceWebsite SourceType = "website"
	SourceSocial  SourceType = "social"
	SourceOther   SourceType = "other"
)

// ParseSourceType normalizes producer-supplied labels. "twitter" and "x" are social.
func ParseSourceType(s string) SourceType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "website", "web", "site":
		return SourceWebsite
	case "social", "twitter", "x":
		return SourceSocial
	default:
		return SourceOther
	}
}

// EvidenceItem is one raw text snippet about a player from an external producer.
type EvidenceItem struct {
	PlayerName  string     `json:"player_name" validate:"required,max=128"`
	RawText     string     `json:"raw_text" validate:"required"`
	SourceLabel string     `json:"source_label" validate:"max=256"`
	SourceType  SourceType `json:"source_type" validate:"omitempty,oneof=website web site social twitter x other"`
	URL         string     `json:"url" validate:"omitempty,url"`
	PublishedAt time.Time  `json:"published_at"`
}

// RawAbsence is one "missing from squad" entry from the structured provider feed.
type RawAbsence struct {
	ExternalPlayerID int64     `json:"external_player_id"`
	PlayerName       string    `json:"player_name"`
	Type             string    `json:"type"`
	Reason           string    `json:"reason"`
	TeamID           int64     `json:"team_id"`
	TeamName         string    `json:"team_name"`
	FixtureRef       int64     `json:"fixture_ref"`
	FixtureDate      time.Time `json:"fixture_date"`
}
