package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/signvault/internal/database"
	"github.com/iliyamo/signvault/internal/model"
)

// DocumentRepo provides data access to the documents table.
type DocumentRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewDocumentRepo returns a DocumentRepo bound to db. The dialect selects
// how the atomic signer counter reports its new value.
func NewDocumentRepo(db *sql.DB, dialect database.Dialect) *DocumentRepo {
	return &DocumentRepo{db: db, dialect: dialect}
}

// DB exposes the underlying handle so services can open transactions.
func (r *DocumentRepo) DB() *sql.DB { return r.db }

const documentColumns = `id, owner_id, title, original_filename, file_hash, status, self_sign_only,
	total_signers, completed_signers, expires_at, completed_at, created_at, updated_at`

func scanDocument(s rowScanner) (*model.Document, error) {
	var (
		d         model.Document
		status    string
		expires   sql.NullTime
		completed sql.NullTime
	)
	if err := s.Scan(&d.ID, &d.OwnerID, &d.Title, &d.OriginalFilename, &d.FileHash, &status, &d.SelfSignOnly,
		&d.TotalSigners, &d.CompletedSigners, &expires, &completed, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Status = model.DocumentStatus(status)
	d.ExpiresAt = timePtr(expires)
	d.CompletedAt = timePtr(completed)
	d.CreatedAt = utc(d.CreatedAt)
	d.UpdatedAt = utc(d.UpdatedAt)
	return &d, nil
}

// CreateTx inserts a new document row.
func (r *DocumentRepo) CreateTx(ctx context.Context, tx *sql.Tx, d *model.Document) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		d.ID, d.OwnerID, d.Title, d.OriginalFilename, d.FileHash, string(d.Status), d.SelfSignOnly,
		d.TotalSigners, d.CompletedSigners, nullableTime(d.ExpiresAt), nullableTime(d.CompletedAt),
		d.CreatedAt, d.UpdatedAt)
	return err
}

// GetByID fetches a document outside any transaction.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*model.Document, error) {
	return getDocument(ctx, r.db, id)
}

// GetByIDTx fetches a document inside tx.
func (r *DocumentRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*model.Document, error) {
	return getDocument(ctx, tx, id)
}

func getDocument(ctx context.Context, q querier, id string) (*model.Document, error) {
	d, err := scanDocument(q.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

// ListByOwner returns the owner's documents, newest first.
func (r *DocumentRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Document, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE owner_id = ? ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// CountByOwner returns how many documents the owner has.
func (r *DocumentRepo) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE owner_id = ?`, ownerID).Scan(&n)
	return n, err
}

// LockTx takes the per-document write lock for the rest of tx by touching
// updated_at. Every mutation of a document or its children starts here so
// that ledger appends and counter updates are linearised per document.
func (r *DocumentRepo) LockTx(ctx context.Context, tx *sql.Tx, id string, now time.Time) error {
	res, err := tx.ExecContext(ctx, `UPDATE documents SET updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// TransitionTx moves a document from one status to another. It updates
// nothing and returns ErrNotFound if the document is no longer in from.
func (r *DocumentRepo) TransitionTx(ctx context.Context, tx *sql.Tx, id string, from, to model.DocumentStatus, completedAt *time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE documents SET status = ?, completed_at = COALESCE(?, completed_at) WHERE id = ? AND status = ?`,
		string(to), nullableTime(completedAt), id, string(from))
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// SetTotalSignersTx records the number of signers registered for the document.
func (r *DocumentRepo) SetTotalSignersTx(ctx context.Context, tx *sql.Tx, id string, total int) error {
	res, err := tx.ExecContext(ctx, `UPDATE documents SET total_signers = ? WHERE id = ?`, total, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// IncrementCompletedTx bumps completed_signers by one unless it already
// equals total_signers and returns the new value as reported by the same
// statement. ErrConflict means the counter was already at its bound.
func (r *DocumentRepo) IncrementCompletedTx(ctx context.Context, tx *sql.Tx, id string) (int, error) {
	if r.dialect == database.DialectSQLite {
		var completed int
		err := tx.QueryRowContext(ctx,
			`UPDATE documents SET completed_signers = completed_signers + 1
			 WHERE id = ? AND completed_signers < total_signers
			 RETURNING completed_signers`, id).Scan(&completed)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrConflict
		}
		return completed, err
	}
	// LAST_INSERT_ID(expr) makes the new value available on the OK packet.
	res, err := tx.ExecContext(ctx,
		`UPDATE documents SET completed_signers = LAST_INSERT_ID(completed_signers + 1)
		 WHERE id = ? AND completed_signers < total_signers`, id)
	if err != nil {
		return 0, err
	}
	if err := requireAffected(res); err != nil {
		return 0, ErrConflict
	}
	completed, err := res.LastInsertId()
	return int(completed), err
}

// DeleteTx removes the document; child rows cascade.
func (r *DocumentRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ListExpiring returns pending documents that carry an expiry.
// Callers compare against the clock themselves so the query stays portable.
func (r *DocumentRepo) ListExpiring(ctx context.Context) ([]model.Document, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE status = ? AND expires_at IS NOT NULL`,
		string(model.DocumentPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}
