package memory

import (
	"context"
	"fmt"
	"sync"

	"hisob/internal/core"
	ports "hisob/internal/sheets"
)

// Store keeps exported rows per year. It backs the export worker when no
// spreadsheet is configured and in tests.
type Store struct {
	mu    sync.Mutex
	years map[int][]ports.Row
}

var _ ports.TransactionExporter = (*Store)(nil)

func New() *Store {
	return &Store{years: make(map[int][]ports.Row)}
}

// Append stores the row and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	year := tx.Date.Year()
	s.years[year] = append(s.years[year], ports.NewRow(tx))
	return fmt.Sprintf("mem:%d:%d", year, len(s.years[year])), nil
}

func (s *Store) Exported(_ context.Context, tx core.Transaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.years[tx.Date.Year()] {
		if r.ID == tx.ID {
			return true, nil
		}
	}
	return false, nil
}

// Rows returns a copy of the rows exported for year.
func (s *Store) Rows(year int) []ports.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.Row(nil), s.years[year]...)
}
