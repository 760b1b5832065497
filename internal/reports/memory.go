package reports

import (
	"context"
	"sync"
)

// MemoryLedger is an in-process Ledger.
type MemoryLedger struct {
	mu   sync.Mutex
	seen map[string]Report
}

// NewMemoryLedger creates an empty MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{seen: make(map[string]Report)}
}

func (l *MemoryLedger) Seen(_ context.Context, r Report) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[r.Fingerprint()]
	return ok, nil
}

func (l *MemoryLedger) Record(_ context.Context, r Report) (bool, error) {
	if err := r.Validate(); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	fp := r.Fingerprint()
	if _, ok := l.seen[fp]; ok {
		return false, nil
	}
	l.seen[fp] = r
	return true, nil
}

// Len returns the number of recorded reports.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}
