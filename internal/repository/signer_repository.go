package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/signvault/internal/model"
)

// SignerRepo provides data access to the signers table.
type SignerRepo struct{ db *sql.DB }

// NewSignerRepo returns a SignerRepo bound to db.
func NewSignerRepo(db *sql.DB) *SignerRepo { return &SignerRepo{db: db} }

const signerColumns = `id, document_id, email, name, order_index, status, access_token, ip_address, user_agent,
	viewed_at, signed_at, declined_at, decline_reason, email_sent_at, created_at, updated_at`

func scanSigner(s rowScanner) (*model.Signer, error) {
	var (
		sg                                    model.Signer
		status                                string
		ip, ua, reason                        sql.NullString
		viewed, signed, declined, emailSentAt sql.NullTime
	)
	if err := s.Scan(&sg.ID, &sg.DocumentID, &sg.Email, &sg.Name, &sg.OrderIndex, &status, &sg.AccessToken,
		&ip, &ua, &viewed, &signed, &declined, &reason, &emailSentAt, &sg.CreatedAt, &sg.UpdatedAt); err != nil {
		return nil, err
	}
	sg.Status = model.SignerStatus(status)
	sg.IPAddress = strPtr(ip)
	sg.UserAgent = strPtr(ua)
	sg.ViewedAt = timePtr(viewed)
	sg.SignedAt = timePtr(signed)
	sg.DeclinedAt = timePtr(declined)
	sg.DeclineReason = strPtr(reason)
	sg.EmailSentAt = timePtr(emailSentAt)
	sg.CreatedAt = utc(sg.CreatedAt)
	sg.UpdatedAt = utc(sg.UpdatedAt)
	return &sg, nil
}

// CreateTx inserts a signer. A duplicate access token yields ErrConflict.
func (r *SignerRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.Signer) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO signers (`+signerColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.DocumentID, s.Email, s.Name, s.OrderIndex, string(s.Status), s.AccessToken,
		nullableString(s.IPAddress), nullableString(s.UserAgent),
		nullableTime(s.ViewedAt), nullableTime(s.SignedAt), nullableTime(s.DeclinedAt),
		nullableString(s.DeclineReason), nullableTime(s.EmailSentAt), s.CreatedAt, s.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// GetByID fetches a signer outside any transaction.
func (r *SignerRepo) GetByID(ctx context.Context, id string) (*model.Signer, error) {
	return r.getOne(ctx, r.db, `WHERE id = ?`, id)
}

// GetByIDTx fetches a signer inside tx.
func (r *SignerRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*model.Signer, error) {
	return r.getOne(ctx, tx, `WHERE id = ?`, id)
}

// GetByToken resolves an access token to its signer.
func (r *SignerRepo) GetByToken(ctx context.Context, token string) (*model.Signer, error) {
	return r.getOne(ctx, r.db, `WHERE access_token = ?`, token)
}

// GetByTokenTx resolves an access token inside tx.
func (r *SignerRepo) GetByTokenTx(ctx context.Context, tx *sql.Tx, token string) (*model.Signer, error) {
	return r.getOne(ctx, tx, `WHERE access_token = ?`, token)
}

func (r *SignerRepo) getOne(ctx context.Context, q querier, where string, arg any) (*model.Signer, error) {
	s, err := scanSigner(q.QueryRowContext(ctx, `SELECT `+signerColumns+` FROM signers `+where, arg))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// ListByDocument returns signers in signing order.
func (r *SignerRepo) ListByDocument(ctx context.Context, documentID string) ([]model.Signer, error) {
	return listSigners(ctx, r.db, documentID)
}

// ListByDocumentTx is ListByDocument inside tx.
func (r *SignerRepo) ListByDocumentTx(ctx context.Context, tx *sql.Tx, documentID string) ([]model.Signer, error) {
	return listSigners(ctx, tx, documentID)
}

func listSigners(ctx context.Context, q querier, documentID string) ([]model.Signer, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+signerColumns+` FROM signers WHERE document_id = ? ORDER BY order_index, created_at, id`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Signer{}
	for rows.Next() {
		s, err := scanSigner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// CountByDocumentTx returns the number of signers registered on a document.
func (r *SignerRepo) CountByDocumentTx(ctx context.Context, tx *sql.Tx, documentID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM signers WHERE document_id = ?`, documentID).Scan(&n)
	return n, err
}

// NextOrderIndexTx returns one past the highest order index on the document,
// or 0 when it has no signers.
func (r *SignerRepo) NextOrderIndexTx(ctx context.Context, tx *sql.Tx, documentID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(order_index) + 1, 0) FROM signers WHERE document_id = ?`, documentID).Scan(&n)
	return n, err
}

// DeleteTx removes a signer from a document.
func (r *SignerRepo) DeleteTx(ctx context.Context, tx *sql.Tx, documentID, signerID string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM signers WHERE id = ? AND document_id = ?`, signerID, documentID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// MarkViewedTx records the first view. Only non-terminal signers move to
// viewed; later views are ignored.
func (r *SignerRepo) MarkViewedTx(ctx context.Context, tx *sql.Tx, id, ip, ua string, at time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE signers SET status = ?, viewed_at = ?, ip_address = ?, user_agent = ?, updated_at = ?
		 WHERE id = ? AND viewed_at IS NULL AND status IN (?, ?)`,
		string(model.SignerViewed), at, ip, ua, at, id, string(model.SignerPending), string(model.SignerSent))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkSignedTx moves a signer to signed. It returns ErrNotFound when the
// signer is already terminal, so a racing second submission cannot sign twice.
func (r *SignerRepo) MarkSignedTx(ctx context.Context, tx *sql.Tx, id, ip, ua string, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE signers SET status = ?, signed_at = ?, ip_address = ?, user_agent = ?, updated_at = ?
		 WHERE id = ? AND status NOT IN (?, ?)`,
		string(model.SignerSigned), at, ip, ua, at, id, string(model.SignerSigned), string(model.SignerDeclined))
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// MarkDeclinedTx moves a signer to declined with an optional reason.
func (r *SignerRepo) MarkDeclinedTx(ctx context.Context, tx *sql.Tx, id string, reason *string, ip, ua string, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE signers SET status = ?, declined_at = ?, decline_reason = ?, ip_address = ?, user_agent = ?, updated_at = ?
		 WHERE id = ? AND status NOT IN (?, ?)`,
		string(model.SignerDeclined), at, nullableString(reason), ip, ua, at, id,
		string(model.SignerSigned), string(model.SignerDeclined))
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// MarkEmailSentTx stamps email_sent_at and moves a pending signer to sent.
// Signers that already progressed keep their status.
func (r *SignerRepo) MarkEmailSentTx(ctx context.Context, tx *sql.Tx, id string, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE signers SET email_sent_at = ?, updated_at = ?,
		 status = CASE WHEN status = ? THEN ? ELSE status END
		 WHERE id = ?`,
		at, at, string(model.SignerPending), string(model.SignerSent), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
