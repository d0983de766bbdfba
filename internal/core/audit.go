package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditAction names the operation an audit entry records.
type AuditAction string

const (
	ActionUpload           AuditAction = "upload"
	ActionMerge            AuditAction = "merge"
	ActionDeduplicateMerge AuditAction = "deduplicate_merge"
	ActionSort             AuditAction = "sort"
	ActionNormalizeNumbers AuditAction = "normalize_numbers"
	ActionFilter           AuditAction = "filter"
	ActionRenameColumns    AuditAction = "rename_columns"
	ActionDeleteColumns    AuditAction = "delete_columns"
	ActionReorderColumns   AuditAction = "reorder_columns"
	ActionSearchReplace    AuditAction = "search_replace"
	ActionConvertTypes     AuditAction = "convert_types"
	ActionCalculatedColumn AuditAction = "calculated_column"
	ActionSplit            AuditAction = "split"
	ActionRetentionPurge   AuditAction = "retention_purge"
)

// AuditSeverity ranks how much an action changes the data.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

// AuditEntry records one completed operation.
type AuditEntry struct {
	ID           string         `json:"id"`
	Action       AuditAction    `json:"action"`
	Severity     AuditSeverity  `json:"severity"`
	SourceIDs    []string       `json:"source_file_ids,omitempty"`
	ResultIDs    []string       `json:"result_file_ids,omitempty"`
	RowsAffected int            `json:"rows_affected"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AuditFilter narrows an audit query. Zero fields match everything.
type AuditFilter struct {
	Action AuditAction
	Since  time.Time
	Limit  int
}

// DefaultAuditLimit caps audit queries that do not set a limit.
const DefaultAuditLimit = 100

// AuditSink stores audit entries. Implementations must be safe for
// concurrent use.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry) error
	Recent(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// determineSeverity returns the severity recorded for an action.
func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionDeleteColumns, ActionFilter, ActionDeduplicateMerge, ActionRetentionPurge:
		return SeverityHigh
	case ActionUpload, ActionSort, ActionReorderColumns:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// newAuditEntry fills the id, severity, timestamp and caller fields.
func newAuditEntry(ctx context.Context, action AuditAction) AuditEntry {
	client := ClientInfoFromContext(ctx)
	return AuditEntry{
		ID:        uuid.NewString(),
		Action:    action,
		Severity:  determineSeverity(action),
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		CreatedAt: time.Now().UTC(),
	}
}

// MemoryAuditSink keeps the most recent entries in a fixed-size ring.
type MemoryAuditSink struct {
	mu      sync.RWMutex
	entries []AuditEntry
	next    int
	full    bool
}

// DefaultMemoryAuditSize is the ring size used when none is given.
const DefaultMemoryAuditSize = 1000

// NewMemoryAuditSink keeps up to size entries.
func NewMemoryAuditSink(size int) *MemoryAuditSink {
	if size <= 0 {
		size = DefaultMemoryAuditSize
	}
	return &MemoryAuditSink{entries: make([]AuditEntry, size)}
}

// Record stores entry, overwriting the oldest one when the ring is full.
func (m *MemoryAuditSink) Record(_ context.Context, entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[m.next] = entry
	m.next = (m.next + 1) % len(m.entries)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

// Recent returns matching entries, newest first.
func (m *MemoryAuditSink) Recent(_ context.Context, filter AuditFilter) ([]AuditEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultAuditLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.next
	if m.full {
		n = len(m.entries)
	}
	out := make([]AuditEntry, 0, min(n, limit))
	for k := 1; k <= n && len(out) < limit; k++ {
		e := m.entries[(m.next-k+len(m.entries))%len(m.entries)]
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if !filter.Since.IsZero() && e.CreatedAt.Before(filter.Since) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// PurgeBefore drops entries created before cutoff.
func (m *MemoryAuditSink) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.next
	if m.full {
		n = len(m.entries)
	}
	kept := make([]AuditEntry, 0, n)
	for k := n; k >= 1; k-- {
		e := m.entries[(m.next-k+len(m.entries))%len(m.entries)]
		if !e.CreatedAt.Before(cutoff) {
			kept = append(kept, e)
		}
	}

	purged := int64(n - len(kept))
	m.entries = make([]AuditEntry, len(m.entries))
	copy(m.entries, kept)
	m.next = len(kept) % len(m.entries)
	m.full = len(kept) == len(m.entries)
	return purged, nil
}
