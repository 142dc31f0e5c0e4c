package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/panopticon/internal/dispatch"
	"github.com/roach88/panopticon/internal/ir"
	"github.com/roach88/panopticon/internal/watch"
)

// AuditRecord is one recorded handler firing.
type AuditRecord struct {
	Seq        int64  `json:"seq"`
	CycleToken string `json:"cycle_token"`
	CycleSeq   int64  `json:"cycle_seq"`
	Collection string `json:"collection"`
	DocumentID string `json:"document_id"`
	Path       string `json:"path"`
	Kind       string `json:"kind"`
	Value      string `json:"value"`
}

// AppendAudit inserts rec and returns its seq.
func (s *Store) AppendAudit(ctx context.Context, rec AuditRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log
		(cycle_token, cycle_seq, collection, document_id, path, kind, value)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.CycleToken,
		rec.CycleSeq,
		rec.Collection,
		rec.DocumentID,
		rec.Path,
		rec.Kind,
		rec.Value,
	)
	if err != nil {
		return 0, fmt.Errorf("append audit: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append audit: %w", err)
	}
	return seq, nil
}

// AuditHandler returns a handler that appends an AuditRecord for every
// change at path. The value column holds the canonical JSON of
// dispatch.ValueOf(change).
//
// Handlers cannot fail a dispatch; write errors are logged at Error.
func (s *Store) AuditHandler(path []string) dispatch.Handler {
	dotted := strings.Join(path, ".")
	return func(ctx context.Context, doc *ir.Document, change dispatch.Change) {
		rec, err := newAuditRecord(ctx, doc, dotted, change)
		if err == nil {
			_, err = s.AppendAudit(ctx, rec)
		}
		if err != nil {
			s.logger.ErrorContext(ctx, "audit write failed",
				"collection", doc.Collection,
				"id", doc.ID,
				"path", dotted,
				"error", err)
		}
	}
}

func newAuditRecord(ctx context.Context, doc *ir.Document, path string, change dispatch.Change) (AuditRecord, error) {
	value := "null"
	if v := dispatch.ValueOf(change); v != nil {
		data, err := ir.MarshalCanonical(v)
		if err != nil {
			return AuditRecord{}, fmt.Errorf("marshal audit value: %w", err)
		}
		value = string(data)
	}

	// Outside a watcher cycle the record still lands, unattributed.
	cycle, _ := watch.CycleFromContext(ctx)
	return AuditRecord{
		CycleToken: cycle.Token,
		CycleSeq:   cycle.Seq,
		Collection: doc.Collection,
		DocumentID: doc.ID,
		Path:       path,
		Kind:       dispatch.KindOf(change),
		Value:      value,
	}, nil
}

// ReadAudit returns the audit records of one document ordered by seq.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadAudit(ctx context.Context, collection, id string) ([]AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, cycle_token, cycle_seq, collection, document_id, path, kind, value
		FROM audit_log
		WHERE collection = ? AND document_id = ?
		ORDER BY seq ASC
	`, collection, id)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	records := []AuditRecord{}
	for rows.Next() {
		var rec AuditRecord
		if err := rows.Scan(
			&rec.Seq,
			&rec.CycleToken,
			&rec.CycleSeq,
			&rec.Collection,
			&rec.DocumentID,
			&rec.Path,
			&rec.Kind,
			&rec.Value,
		); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit: %w", err)
	}
	return records, nil
}

// LastCycleSeq returns the highest cycle seq in the audit log, or 0.
// Pass it to watch.NewClockAt to continue numbering across processes.
func (s *Store) LastCycleSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(cycle_seq), 0) FROM audit_log`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last cycle seq: %w", err)
	}
	return seq, nil
}
