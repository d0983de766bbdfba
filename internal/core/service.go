package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/USFAkbari/Excel-Tools/internal/dataset"
	"github.com/USFAkbari/Excel-Tools/internal/store"
)

// ----------------------------------------------------------------------------
// Options and Defaults
// ----------------------------------------------------------------------------

// OperationTimeout bounds a single upload or transformation.
var OperationTimeout = 2 * time.Minute

// Default limits applied when Options leaves a field at zero.
const (
	DefaultMaxFileSize    = 50 << 20
	DefaultPreviewRows    = 50
	DefaultPreviewMaxRows = 1000
)

// DefaultAllowedExtensions are the upload extensions accepted by default.
var DefaultAllowedExtensions = []string{".xlsx", ".xlsm", ".csv"}

// Options configures a Service.
type Options struct {
	MaxConcurrent      int           // limiter slots
	MaxWait            time.Duration // how long an operation waits for a slot
	MaxFileSize        int64         // upload size limit in bytes
	AllowedExtensions  []string      // lower-case, with the leading dot
	PreviewDefaultRows int           // rows shown when max_rows is absent
	PreviewMaxRows     int           // largest accepted max_rows

	// Audit receives one entry per successful operation. A memory ring is
	// used when nil.
	Audit AuditSink
}

func (o Options) withDefaults() Options {
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	if len(o.AllowedExtensions) == 0 {
		o.AllowedExtensions = DefaultAllowedExtensions
	}
	if o.PreviewDefaultRows <= 0 {
		o.PreviewDefaultRows = DefaultPreviewRows
	}
	if o.PreviewMaxRows <= 0 {
		o.PreviewMaxRows = DefaultPreviewMaxRows
	}
	if o.PreviewDefaultRows > o.PreviewMaxRows {
		o.PreviewDefaultRows = o.PreviewMaxRows
	}
	if o.Audit == nil {
		o.Audit = NewMemoryAuditSink(DefaultMemoryAuditSize)
	}
	return o
}

// ----------------------------------------------------------------------------
// Service
// ----------------------------------------------------------------------------

// Service is the facade over the version store: it resolves file ids, runs
// a transformation under the operation limiter and stores the result as a
// new version.
type Service struct {
	store   *store.Store
	limiter *OperationLimiter
	audit   AuditSink
	opts    Options
}

// NewService creates a Service with an empty version store.
func NewService(opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		store:   store.New(),
		limiter: NewOperationLimiter(opts.MaxConcurrent, opts.MaxWait),
		audit:   opts.Audit,
		opts:    opts,
	}
}

// Store exposes the version store.
func (s *Service) Store() *store.Store { return s.store }

// Limiter exposes the operation limiter for status and shutdown draining.
func (s *Service) Limiter() *OperationLimiter { return s.limiter }

// ----------------------------------------------------------------------------
// Results and Status
// ----------------------------------------------------------------------------

// Result is returned by every operation that creates versions.
type Result struct {
	FileID   string         `json:"file_id,omitempty"`
	FileIDs  []string       `json:"file_ids,omitempty"`
	Filename string         `json:"filename,omitempty"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Status summarizes service load for monitoring.
type Status struct {
	Limiter        LimiterStatus `json:"limiter"`
	StoredVersions int           `json:"stored_versions"`
}

// Status reports limiter counters and the number of stored versions.
func (s *Service) Status() Status {
	return Status{
		Limiter:        s.limiter.Status(),
		StoredVersions: s.store.Len(),
	}
}

// AuditLog returns recent audit entries, newest first.
func (s *Service) AuditLog(ctx context.Context, filter AuditFilter) ([]AuditEntry, error) {
	return s.audit.Recent(ctx, filter)
}

// ----------------------------------------------------------------------------
// Operation Plumbing
// ----------------------------------------------------------------------------

// run holds a limiter slot and a timeout around fn.
func (s *Service) run(ctx context.Context, fn func(ctx context.Context) (*Result, error)) (*Result, error) {
	// Wait for a slot; a busy limiter surfaces as ErrTooManyOperations
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	// The timeout starts once the slot is held
	ctx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()
	return fn(ctx)
}

// load resolves one file id.
func (s *Service) load(id string) (*dataset.Dataset, error) {
	return s.store.Get(id)
}

// commit stores ds as a child of parents. Nothing is written once ctx is done.
func (s *Service) commit(ctx context.Context, ds *dataset.Dataset, op AuditAction, label string, parents ...string) (string, error) {
	// A cancelled or timed out request leaves the store untouched
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.store.Put(ds, store.PutOptions{
		Operation: string(op),
		Label:     label,
		Parents:   parents,
	}), nil
}

// record writes an audit entry. Audit failures are logged and do not fail
// the operation.
func (s *Service) record(ctx context.Context, action AuditAction, sources, results []string, rows int, metadata map[string]any) {
	entry := newAuditEntry(ctx, action)
	entry.SourceIDs = sources
	entry.ResultIDs = results
	entry.RowsAffected = rows
	entry.Metadata = metadata

	// The version is already stored, so record even if the client went away
	if err := s.audit.Record(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("audit record failed",
			"action", action,
			"error", err,
		)
	}
}
