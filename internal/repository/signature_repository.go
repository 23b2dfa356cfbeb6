package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/signvault/internal/model"
)

// SignatureRepo provides data access to the signatures table.
type SignatureRepo struct{ db *sql.DB }

func NewSignatureRepo(db *sql.DB) *SignatureRepo { return &SignatureRepo{db: db} }

const signatureColumns = `id, signer_id, document_id, field_id, signature_data, signature_hash, ip_address, user_agent, created_at`

// CreateTx inserts a signature. A second signature on the same field yields
// ErrConflict.
func (r *SignatureRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.Signature) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO signatures (`+signatureColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		s.ID, s.SignerID, s.DocumentID, s.FieldID, s.SignatureData, s.SignatureHash, s.IPAddress, s.UserAgent, s.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// ExistsForFieldTx reports whether the field already carries a signature.
func (r *SignatureRepo) ExistsForFieldTx(ctx context.Context, tx *sql.Tx, fieldID string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM signatures WHERE field_id = ?`, fieldID).Scan(&n)
	return n > 0, err
}

// ListByDocumentTx returns a document's signatures in creation order.
func (r *SignatureRepo) ListByDocumentTx(ctx context.Context, tx *sql.Tx, documentID string) ([]model.Signature, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+signatureColumns+` FROM signatures WHERE document_id = ? ORDER BY created_at, id`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Signature
	for rows.Next() {
		var s model.Signature
		if err := rows.Scan(&s.ID, &s.SignerID, &s.DocumentID, &s.FieldID, &s.SignatureData, &s.SignatureHash,
			&s.IPAddress, &s.UserAgent, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.CreatedAt = utc(s.CreatedAt)
		out = append(out, s)
	}
	return out, rows.Err()
}
