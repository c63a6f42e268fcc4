package provider

import (
	"encoding/json"

	"github.com/okian/sickbay/internal/domain/model"
)

type envelope struct {
	Errors   json.RawMessage `json:"errors"`
	Results  int             `json:"results"`
	Response json.RawMessage `json:"response"`
}

type ref struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type injuryRow struct {
	Player struct {
		ID     int64  `json:"id"`
		Name   string `json:"name"`
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"player"`
	Team    ref `json:"team"`
	Fixture struct {
		ID   int64  `json:"id"`
		Date string `json:"date"`
	} `json:"fixture"`
}

type fixtureRow struct {
	Fixture struct {
		ID     int64  `json:"id"`
		Date   string `json:"date"`
		Status struct {
			Short string `json:"short"`
		} `json:"status"`
	} `json:"fixture"`
	Teams struct {
		Home ref `json:"home"`
		Away ref `json:"away"`
	} `json:"teams"`
}

type sheet []struct {
	Player ref `json:"player"`
}

func (s sheet) players() []model.LineupPlayer {
	out := make([]model.LineupPlayer, 0, len(s))
	for _, p := range s {
		out = append(out, model.LineupPlayer{ID: p.Player.ID, Name: p.Player.Name})
	}
	return out
}

type lineupRow struct {
	Team        ref   `json:"team"`
	StartXI     sheet `json:"startXI"`
	Substitutes sheet `json:"substitutes"`
}
