package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"hisob/internal/core"
)

// Column encodings shared by the SQL backends. Money is stored as decimal
// text, days as YYYY-MM-DD and instants as RFC 3339 in UTC.

func EncodeDate(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.Format(time.DateOnly)
}

func DecodeDate(s *string) (core.Date, error) {
	if s == nil || *s == "" {
		return core.Date{}, nil
	}
	t, err := time.Parse(time.DateOnly, *s)
	if err != nil {
		return core.Date{}, fmt.Errorf("decode date %q: %w", *s, err)
	}
	return core.Date{Time: t}, nil
}

func EncodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func DecodeTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode time %q: %w", s, err)
	}
	return t, nil
}

func DecodeDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode decimal %q: %w", s, err)
	}
	return d, nil
}

// EncodeList serializes tags or ids as a JSON array.
func EncodeList[T any](items []T) string {
	if len(items) == 0 {
		return "[]"
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func DecodeList[T any](s string) ([]T, error) {
	if s == "" {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
