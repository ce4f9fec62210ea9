// Package memory is the in-process journal used when no spreadsheet is
// configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"moneywise/internal/sheets"
)

type Journal struct {
	mu      sync.Mutex
	entries []sheets.JournalEntry
	events  map[string]struct{}
}

var _ sheets.Journal = (*Journal)(nil)

func New() *Journal {
	return &Journal{events: map[string]struct{}{}}
}

// Append stores the entries and returns a synthetic row reference.
func (j *Journal) Append(_ context.Context, entries []sheets.JournalEntry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	first := len(j.entries) + 1
	for _, e := range entries {
		j.entries = append(j.entries, e)
		j.events[e.EventID] = struct{}{}
	}
	return fmt.Sprintf("mem:%d-%d", first, len(j.entries)), nil
}

func (j *Journal) HasEvent(_ context.Context, eventID string) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.events[eventID]
	return ok, nil
}

// Entries returns a copy of everything journaled so far.
func (j *Journal) Entries() []sheets.JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]sheets.JournalEntry(nil), j.entries...)
}
