// Package memory is an in-process sheets.EntryMirror for development and
// tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"fintrack/internal/core"
	ports "fintrack/internal/sheets"
)

var _ ports.EntryMirror = (*Mirror)(nil)

type Mirror struct {
	mu    sync.Mutex
	rows  [][]any
	index map[string]int
}

func New() *Mirror {
	return &Mirror{index: make(map[string]int)}
}

func (m *Mirror) Upsert(_ context.Context, e core.LedgerEntry) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.index[e.ID]; ok {
		m.rows[i] = ports.Row(e)
		return fmt.Sprintf("mem:%d", i+1), nil
	}
	m.rows = append(m.rows, ports.Row(e))
	m.index[e.ID] = len(m.rows) - 1
	return fmt.Sprintf("mem:%d", len(m.rows)), nil
}

func (m *Mirror) Remove(_ context.Context, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.index[entryID]; ok {
		m.rows[i] = nil
		delete(m.index, entryID)
	}
	return nil
}

// Rows returns the live rows in insertion order.
func (m *Mirror) Rows() [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]any, 0, len(m.index))
	for _, r := range m.rows {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
