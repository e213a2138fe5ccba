// Package memory is an in-process PurchaseWriter used in tests and when no
// spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	ports "feira/internal/sheets"
)

type Store struct {
	mu      sync.Mutex
	records []ports.PurchaseRecord
}

func New() *Store {
	return &Store{}
}

// AppendPurchase stores the record and returns a synthetic row reference.
func (s *Store) AppendPurchase(_ context.Context, rec ports.PurchaseRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return fmt.Sprintf("mem:%d", len(s.records)), nil
}

// Records returns a snapshot of everything appended so far.
func (s *Store) Records() []ports.PurchaseRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.PurchaseRecord, len(s.records))
	copy(out, s.records)
	return out
}
