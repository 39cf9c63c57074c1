package domain

import (
	"context"
	"errors"
)

const MaxLinks = 5

// Record is one row of the published legacy spreadsheet.
type Record struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Name  string `json:"name,omitempty"`
	Bio   string `json:"bio,omitempty"`
	Links []Link `json:"links"`
}

type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

func (r Record) IsRedirect() bool { return r.Type == "redirect" }

// Source looks up legacy profiles. Find returns nil when the id is unknown.
type Source interface {
	Find(ctx context.Context, id string) (*Record, error)
}

var (
	ErrDisabled    = errors.New("legacy_source_disabled")
	ErrUnavailable = errors.New("legacy_source_unavailable")
)
