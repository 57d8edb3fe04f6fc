package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/fixturekit/internal/canon"
)

// Timestamps are stored as RFC 3339 text in UTC so they sort as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// marshalStrings encodes a string list as canonical JSON.
func marshalStrings(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	data, err := canon.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalStrings(s string) ([]string, error) {
	var list []string
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return nil, fmt.Errorf("decode string list: %w", err)
	}
	return list, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
