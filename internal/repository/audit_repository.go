package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/signvault/internal/model"
)

// AuditRepo provides append and read access to the audit_logs table. It has
// no update or delete methods.
type AuditRepo struct{ db *sql.DB }

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

const auditColumns = `id, document_id, seq, signer_id, user_id, action, ip_address, user_agent, details,
	previous_hash, entry_hash, created_at`

func scanAudit(s rowScanner) (*model.AuditLogEntry, error) {
	var (
		e                                       model.AuditLogEntry
		action                                  string
		signerID, userID, ip, ua, details, prev sql.NullString
	)
	if err := s.Scan(&e.ID, &e.DocumentID, &e.Seq, &signerID, &userID, &action, &ip, &ua, &details,
		&prev, &e.EntryHash, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Action = model.AuditAction(action)
	e.SignerID = strPtr(signerID)
	e.UserID = strPtr(userID)
	e.IPAddress = strPtr(ip)
	e.UserAgent = strPtr(ua)
	e.Details = strPtr(details)
	e.PreviousHash = strPtr(prev)
	e.CreatedAt = utc(e.CreatedAt)
	return &e, nil
}

// TailTx returns the last entry of a document's chain, or nil when the chain
// is empty. The caller must hold the document lock.
func (r *AuditRepo) TailTx(ctx context.Context, tx *sql.Tx, documentID string) (*model.AuditLogEntry, error) {
	e, err := scanAudit(tx.QueryRowContext(ctx,
		`SELECT `+auditColumns+` FROM audit_logs WHERE document_id = ? ORDER BY seq DESC LIMIT 1`, documentID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// InsertTx appends e. A duplicate (document_id, seq) yields ErrConflict.
func (r *AuditRepo) InsertTx(ctx context.Context, tx *sql.Tx, e *model.AuditLogEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO audit_logs (`+auditColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.DocumentID, e.Seq, nullableString(e.SignerID), nullableString(e.UserID), string(e.Action),
		nullableString(e.IPAddress), nullableString(e.UserAgent), nullableString(e.Details),
		nullableString(e.PreviousHash), e.EntryHash, e.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// ListByDocument returns the chain in ascending creation order.
func (r *AuditRepo) ListByDocument(ctx context.Context, documentID string) ([]model.AuditLogEntry, error) {
	return listAudit(ctx, r.db, documentID)
}

// ListByDocumentTx is ListByDocument inside tx.
func (r *AuditRepo) ListByDocumentTx(ctx context.Context, tx *sql.Tx, documentID string) ([]model.AuditLogEntry, error) {
	return listAudit(ctx, tx, documentID)
}

func listAudit(ctx context.Context, q querier, documentID string) ([]model.AuditLogEntry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+auditColumns+` FROM audit_logs WHERE document_id = ? ORDER BY created_at, seq`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.AuditLogEntry{}
	for rows.Next() {
		e, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}
