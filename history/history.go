// Package history stores the changesets a replicated group has
// produced, one per transaction version. A sync client (or a lagging
// reader) catches up by fetching the changesets between its version
// and the head and replaying them in order.
package history

import "errors"

var (
	// ErrStale reports a request for changesets that were trimmed away.
	ErrStale = errors.New("history: requested versions no longer retained")
	// ErrFutureVersion reports a request past the head of the history.
	ErrFutureVersion = errors.New("history: requested version not produced yet")
	// ErrBadVersion reports an append that does not extend the head by one.
	ErrBadVersion = errors.New("history: version must extend the head")
)

// History is an ordered store of changesets. The changeset appended
// with version v transforms snapshot v-1 into snapshot v.
type History interface {
	// LastVersion returns the newest version in the history, or the
	// base version if nothing was appended yet.
	LastVersion() uint64

	// Append stores the changeset producing version. Versions are
	// dense: version must be LastVersion()+1.
	Append(version uint64, changeset []byte) error

	// Changesets returns the changesets producing versions from+1
	// through to, in order.
	Changesets(from, to uint64) ([][]byte, error)

	// TrimBefore allows the history to discard changesets at or below
	// version. Trimming is advisory; an implementation may retain more.
	TrimBefore(version uint64) error

	// Close releases any underlying resources.
	Close() error
}

// Memory is a History kept entirely in memory. It is the natural
// choice for a single-process replication session and for tests.
type Memory struct {
	base       uint64
	changesets [][]byte
}

// NewMemory returns an empty in-memory history starting at base:
// version base is the initial snapshot and carries no changeset.
func NewMemory(base uint64) *Memory {
	return &Memory{base: base}
}

func (m *Memory) LastVersion() uint64 {
	return m.base + uint64(len(m.changesets))
}

func (m *Memory) Append(version uint64, changeset []byte) error {
	if version != m.LastVersion()+1 {
		return ErrBadVersion
	}
	cp := make([]byte, len(changeset))
	copy(cp, changeset)
	m.changesets = append(m.changesets, cp)
	return nil
}

func (m *Memory) Changesets(from, to uint64) ([][]byte, error) {
	if from < m.base {
		return nil, ErrStale
	}
	if to > m.LastVersion() {
		return nil, ErrFutureVersion
	}
	out := make([][]byte, 0, to-from)
	for v := from + 1; v <= to; v++ {
		out = append(out, m.changesets[v-m.base-1])
	}
	return out, nil
}

// TrimBefore is a no-op: the in-memory history retains everything
// until the process exits.
func (m *Memory) TrimBefore(uint64) error { return nil }

func (m *Memory) Close() error { return nil }

var _ History = (*Memory)(nil)
