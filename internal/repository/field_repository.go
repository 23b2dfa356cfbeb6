package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/signvault/internal/model"
)

// FieldRepo provides data access to the document_fields table.
type FieldRepo struct{ db *sql.DB }

func NewFieldRepo(db *sql.DB) *FieldRepo { return &FieldRepo{db: db} }

const fieldColumns = `id, document_id, signer_id, field_type, page, x, y, width, height, value,
	font_size, font_family, date_format, created_at, updated_at`

func scanField(s rowScanner) (*model.Field, error) {
	var (
		f               model.Field
		fieldType       string
		signerID, value sql.NullString
	)
	if err := s.Scan(&f.ID, &f.DocumentID, &signerID, &fieldType, &f.Page, &f.X, &f.Y, &f.Width, &f.Height, &value,
		&f.FontSize, &f.FontFamily, &f.DateFormat, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.FieldType = model.FieldType(fieldType)
	f.SignerID = strPtr(signerID)
	f.Value = strPtr(value)
	f.CreatedAt = utc(f.CreatedAt)
	f.UpdatedAt = utc(f.UpdatedAt)
	return &f, nil
}

// CreateTx inserts a field.
func (r *FieldRepo) CreateTx(ctx context.Context, tx *sql.Tx, f *model.Field) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO document_fields (`+fieldColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		f.ID, f.DocumentID, nullableString(f.SignerID), string(f.FieldType), f.Page, f.X, f.Y, f.Width, f.Height,
		nullableString(f.Value), f.FontSize, f.FontFamily, f.DateFormat, f.CreatedAt, f.UpdatedAt)
	return err
}

// GetByIDTx fetches a field scoped to its document. A field id belonging to
// another document is reported as ErrNotFound.
func (r *FieldRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, documentID, fieldID string) (*model.Field, error) {
	f, err := scanField(tx.QueryRowContext(ctx,
		`SELECT `+fieldColumns+` FROM document_fields WHERE id = ? AND document_id = ?`, fieldID, documentID))
	if err != nil {
		return nil, notFound(err)
	}
	return f, nil
}

// ListByDocument returns fields in reading order: page, then top to bottom,
// then left to right.
func (r *FieldRepo) ListByDocument(ctx context.Context, documentID string) ([]model.Field, error) {
	return listFields(ctx, r.db, documentID)
}

// ListByDocumentTx is ListByDocument inside tx.
func (r *FieldRepo) ListByDocumentTx(ctx context.Context, tx *sql.Tx, documentID string) ([]model.Field, error) {
	return listFields(ctx, tx, documentID)
}

func listFields(ctx context.Context, q querier, documentID string) ([]model.Field, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+fieldColumns+` FROM document_fields WHERE document_id = ? ORDER BY page, y, x, id`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Field{}
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// UpdateTx writes every mutable column of f.
func (r *FieldRepo) UpdateTx(ctx context.Context, tx *sql.Tx, f *model.Field) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE document_fields SET signer_id = ?, page = ?, x = ?, y = ?, width = ?, height = ?, value = ?,
		 font_size = ?, font_family = ?, date_format = ?, updated_at = ?
		 WHERE id = ? AND document_id = ?`,
		nullableString(f.SignerID), f.Page, f.X, f.Y, f.Width, f.Height, nullableString(f.Value),
		f.FontSize, f.FontFamily, f.DateFormat, f.UpdatedAt, f.ID, f.DocumentID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteTx removes a field from its document.
func (r *FieldRepo) DeleteTx(ctx context.Context, tx *sql.Tx, documentID, fieldID string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM document_fields WHERE id = ? AND document_id = ?`, fieldID, documentID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// UnassignSignerTx clears the binding of every field assigned to signerID and
// returns how many fields were affected.
func (r *FieldRepo) UnassignSignerTx(ctx context.Context, tx *sql.Tx, documentID, signerID string) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE document_fields SET signer_id = NULL WHERE document_id = ? AND signer_id = ?`, documentID, signerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetValueTx overwrites the stored value of a field.
func (r *FieldRepo) SetValueTx(ctx context.Context, tx *sql.Tx, documentID, fieldID, value string, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE document_fields SET value = ?, updated_at = ? WHERE id = ? AND document_id = ?`,
		value, at, fieldID, documentID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
