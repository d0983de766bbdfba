package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS operation_audit_log (
	id              UUID PRIMARY KEY,
	action          TEXT NOT NULL,
	severity        TEXT NOT NULL,
	source_file_ids TEXT[] NOT NULL DEFAULT '{}',
	result_file_ids TEXT[] NOT NULL DEFAULT '{}',
	rows_affected   INTEGER NOT NULL DEFAULT 0,
	metadata        JSONB,
	ip_address      INET,
	user_agent      TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS operation_audit_log_created_at_idx
	ON operation_audit_log (created_at DESC);
`

// PostgresAuditSink writes audit entries to PostgreSQL.
type PostgresAuditSink struct {
	pool *pgxpool.Pool
}

// NewPostgresAuditSink creates the audit table if needed and returns a sink
// backed by pool.
func NewPostgresAuditSink(ctx context.Context, pool *pgxpool.Pool) (*PostgresAuditSink, error) {
	if _, err := pool.Exec(ctx, auditSchema); err != nil {
		return nil, fmt.Errorf("create audit table: %w", err)
	}
	return &PostgresAuditSink{pool: pool}, nil
}

// Record inserts one entry.
func (p *PostgresAuditSink) Record(ctx context.Context, entry AuditEntry) error {
	var metadata []byte
	if entry.Metadata != nil {
		var err error
		metadata, err = json.Marshal(entry.Metadata)
		if err != nil {
			metadata = nil
		}
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO operation_audit_log
			(id, action, severity, source_file_ids, result_file_ids,
			 rows_affected, metadata, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, string(entry.Action), string(entry.Severity),
		nonNil(entry.SourceIDs), nonNil(entry.ResultIDs),
		entry.RowsAffected, metadata, parseIP(entry.IPAddress),
		pgtype.Text{String: entry.UserAgent, Valid: entry.UserAgent != ""},
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Recent returns matching entries, newest first.
func (p *PostgresAuditSink) Recent(ctx context.Context, filter AuditFilter) ([]AuditEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultAuditLimit
	}

	var where []string
	var args []any
	if filter.Action != "" {
		args = append(args, string(filter.Action))
		where = append(where, fmt.Sprintf("action = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}

	query := `SELECT id::text, action, severity, source_file_ids, result_file_ids,
		rows_affected, metadata, ip_address, user_agent, created_at
		FROM operation_audit_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]AuditEntry, 0)
	for rows.Next() {
		entry, err := scanAuditRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// PurgeBefore deletes entries created before cutoff.
func (p *PostgresAuditSink) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM operation_audit_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge audit log: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanAuditRow(rows pgx.Rows) (AuditEntry, error) {
	var (
		entry     AuditEntry
		action    string
		severity  string
		metadata  []byte
		ipAddress *netip.Addr
		userAgent pgtype.Text
		createdAt pgtype.Timestamptz
	)
	err := rows.Scan(
		&entry.ID, &action, &severity, &entry.SourceIDs, &entry.ResultIDs,
		&entry.RowsAffected, &metadata, &ipAddress, &userAgent, &createdAt,
	)
	if err != nil {
		return AuditEntry{}, fmt.Errorf("scan audit entry: %w", err)
	}

	entry.Action = AuditAction(action)
	entry.Severity = AuditSeverity(severity)
	entry.CreatedAt = createdAt.Time
	if metadata != nil {
		_ = json.Unmarshal(metadata, &entry.Metadata)
	}
	if ipAddress != nil {
		entry.IPAddress = ipAddress.String()
	}
	if userAgent.Valid {
		entry.UserAgent = userAgent.String
	}
	return entry, nil
}

// parseIP strips a port and returns nil when s is not an address.
func parseIP(s string) *netip.Addr {
	if s == "" {
		return nil
	}
	host := s
	if h, _, err := net.SplitHostPort(s); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	return &addr
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
