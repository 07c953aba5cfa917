// Package exchange moves reviews in and out of a store: JSON export and
// import, and a Markdown report for people who do not run the tool.
package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/hazyhaar/domreview/review"
)

// ErrInvalidFormat is returned for import data that is not
// {version, reviews: [...]} with string id, selector and comment on every
// review.
var ErrInvalidFormat = errors.New("exchange: invalid review data format")

// Validate parses data and checks its shape. Nothing is mutated.
func Validate(data []byte) (review.Snapshot, error) {
	var shape struct {
		Reviews []map[string]any `json:"reviews"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return review.Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if shape.Reviews == nil {
		return review.Snapshot{}, fmt.Errorf("%w: reviews must be a list", ErrInvalidFormat)
	}
	for i, r := range shape.Reviews {
		if r == nil {
			return review.Snapshot{}, fmt.Errorf("%w: review %d is not an object", ErrInvalidFormat, i)
		}
		for _, field := range []string{"id", "selector", "comment"} {
			if _, ok := r[field].(string); !ok {
				return review.Snapshot{}, fmt.Errorf("%w: review %d: %s must be a string", ErrInvalidFormat, i, field)
			}
		}
	}

	var snap review.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return review.Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return snap, nil
}

// Import validates data and, only if it is valid, replaces the store
// contents with it.
func Import(ctx context.Context, s *review.Store, data []byte) (int, error) {
	snap, err := Validate(data)
	if err != nil {
		return 0, err
	}
	if err := s.FromJSON(ctx, snap); err != nil {
		return 0, fmt.Errorf("exchange: import: %w", err)
	}
	return len(snap.Reviews), nil
}

// Export returns the store contents as indented JSON.
func Export(s *review.Store) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s.ToJSON()); err != nil {
		return nil, fmt.Errorf("exchange: export: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

var hostUnsafe = regexp.MustCompile(`(?i)[^a-z0-9]`)

// Filename names an export of host taken at t:
// dom-review-<host>-<YYYY-MM-DD>.json, with every character of host outside
// [a-zA-Z0-9] replaced by "-".
func Filename(host string, t time.Time) string {
	return fmt.Sprintf("dom-review-%s-%s.json", hostUnsafe.ReplaceAllString(host, "-"), t.UTC().Format(time.DateOnly))
}
