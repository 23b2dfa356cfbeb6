package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/signvault/internal/model"
	"github.com/iliyamo/signvault/internal/repository"
	"github.com/iliyamo/signvault/internal/utils"
)

// DocumentService owns the document state machine and the draft-time
// registry of fields and signers. Every mutation holds the document lock
// and appends exactly one ledger entry per state change.
type DocumentService struct {
	runner
	ledger *Ledger
	log    *zap.Logger
}

// NewDocumentService wires the lifecycle service.
func NewDocumentService(store *repository.Store, ledger *Ledger, log *zap.Logger, opts Options) *DocumentService {
	return &DocumentService{
		runner: runner{store: store, opts: opts.withDefaults()},
		ledger: ledger,
		log:    log.With(zap.String("service", "documents")),
	}
}

// CreateDocumentInput carries an uploaded file's metadata. The file bytes
// themselves stay with the storage collaborator; only their hash is kept.
type CreateDocumentInput struct {
	OwnerID          string
	Title            string
	OriginalFilename string
	FileHash         string
	SelfSignOnly     bool
	ExpiresAt        *time.Time
	Client           ClientInfo
}

// CreateDocument registers a new Draft document and appends document_created.
func (s *DocumentService) CreateDocument(ctx context.Context, in CreateDocumentInput) (*model.Document, error) {
	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	filename := strings.TrimSpace(in.OriginalFilename)
	if filename == "" {
		return nil, validationf("original filename is required")
	}
	if err := validateFileHash(in.FileHash); err != nil {
		return nil, err
	}
	now := s.now()
	if err := validateExpiry(in.ExpiresAt, now); err != nil {
		return nil, err
	}
	var expires *time.Time
	if in.ExpiresAt != nil {
		t := utils.TruncateTimestamp(*in.ExpiresAt)
		expires = &t
	}

	d := &model.Document{
		ID:               uuid.NewString(),
		OwnerID:          in.OwnerID,
		Title:            title,
		OriginalFilename: filename,
		FileHash:         in.FileHash,
		Status:           model.DocumentDraft,
		SelfSignOnly:     in.SelfSignOnly,
		ExpiresAt:        expires,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err = s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.store.Documents.CreateTx(ctx, tx, d); err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		_, err := s.ledger.AppendTx(ctx, tx, AppendInput{
			DocumentID: d.ID,
			Action:     model.ActionDocumentCreated,
			Actor:      Actor{UserID: in.OwnerID, Client: in.Client},
			Details: map[string]any{
				"title":     d.Title,
				"filename":  d.OriginalFilename,
				"file_hash": d.FileHash,
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("document created", zap.String("document_id", d.ID), zap.String("owner_id", d.OwnerID))
	return d, nil
}

// GetDocument returns the owner's document with its fields and signers.
func (s *DocumentService) GetDocument(ctx context.Context, ownerID, documentID string) (*model.DocumentDetail, error) {
	d, err := s.owned(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}
	fields, err := s.store.Fields.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	signers, err := s.store.Signers.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return &model.DocumentDetail{Document: *d, Fields: fields, Signers: signers}, nil
}

// ListDocuments pages through the owner's documents and returns the total.
func (s *DocumentService) ListDocuments(ctx context.Context, ownerID string, limit, offset int) ([]model.Document, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	docs, err := s.store.Documents.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.Documents.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// ListFields returns the owner's document fields ordered by page, y, x.
func (s *DocumentService) ListFields(ctx context.Context, ownerID, documentID string) ([]model.Field, error) {
	if _, err := s.owned(ctx, ownerID, documentID); err != nil {
		return nil, err
	}
	return s.store.Fields.ListByDocument(ctx, documentID)
}

// ListSigners returns the owner's document signers in signing order.
func (s *DocumentService) ListSigners(ctx context.Context, ownerID, documentID string) ([]model.Signer, error) {
	if _, err := s.owned(ctx, ownerID, documentID); err != nil {
		return nil, err
	}
	return s.store.Signers.ListByDocument(ctx, documentID)
}

// FieldInput describes a field to place on a draft document.
type FieldInput struct {
	FieldType  model.FieldType
	Page       int
	X, Y       float64
	Width      float64
	Height     float64
	SignerID   *string
	Value      *string
	FontSize   *int
	FontFamily *string
	DateFormat *string
}

// AddField places a field on a draft document. A bound signer must belong to
// the same document.
func (s *DocumentService) AddField(ctx context.Context, ownerID, documentID string, in FieldInput, client ClientInfo) (*model.Field, error) {
	now := s.now()
	f := &model.Field{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		FieldType:  in.FieldType,
		Page:       in.Page,
		X:          in.X,
		Y:          in.Y,
		Width:      in.Width,
		Height:     in.Height,
		SignerID:   in.SignerID,
		Value:      in.Value,
		FontSize:   model.DefaultFontSize,
		FontFamily: model.DefaultFontFamily,
		DateFormat: model.DefaultDateFormat,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if in.FontSize != nil {
		f.FontSize = *in.FontSize
	}
	if in.FontFamily != nil {
		f.FontFamily = *in.FontFamily
	}
	if in.DateFormat != nil {
		f.DateFormat = *in.DateFormat
	}
	if err := validateField(*f); err != nil {
		return nil, err
	}

	err := s.inDocumentTx(ctx, documentID, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := s.ownedDraftTx(ctx, tx, ownerID, documentID); err != nil {
			return err
		}
		if err := s.checkSignerBindingTx(ctx, tx, documentID, f.SignerID); err != nil {
			return err
		}
		if err := s.store.Fields.CreateTx(ctx, tx, f); err != nil {
			return fmt.Errorf("insert field: %w", err)
		}
		_, err := s.ledger.AppendTx(ctx, tx, AppendInput{
			DocumentID: documentID,
			Action:     model.ActionFieldAdded,
			Actor:      Actor{UserID: ownerID, Client: client},
			Details:    map[string]any{"field_id": f.ID, "field_type": string(f.FieldType), "page": f.Page},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// FieldPatch lists the field attributes to change; nil leaves a value as is.
// ClearSigner unbinds the field and takes precedence over SignerID.
type FieldPatch struct {
	Page        *int
	X, Y        *float64
	Width       *float64
	Height      *float64
	Value       *string
	FontSize    *int
	FontFamily  *string
	DateFormat  *string
	SignerID    *string
	ClearSigner bool
}

// UpdateField applies patch to a field of a draft document.
func (s *DocumentService) UpdateField(ctx context.Context, ownerID, documentID, fieldID string, patch FieldPatch, client ClientInfo) (*model.Field, error) {
	var out *model.Field
	err := s.inDocumentTx(ctx, documentID, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := s.ownedDraftTx(ctx, tx, ownerID, documentID); err != nil {
			return err
		}
		f, err := s.store.Fields.GetByIDTx(ctx, tx, documentID, fieldID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrFieldNotFound
			}
			return err
		}
		applyFieldPatch(f, patch)
		f.UpdatedAt = s.now()
		if err := validateField(*f); err != nil {
			return err
		}
		if err := s.checkSignerBindingTx(ctx, tx, documentID, f.SignerID); err != nil {
			return err
		}
		if err := s.store.Fields.UpdateTx(ctx, tx, f); err != nil {
			return fmt.Errorf("update field: %w", err)
		}
		if _, err := s.ledger.AppendTx(ctx, tx, AppendInput{
			DocumentID: documentID,
			Action:     model.ActionFieldUpdated,
			Actor:      Actor{UserID: ownerID, Client: client},
			Details:    map[string]any{"field_id": f.ID},
		}); err != nil {
			return err
		}
		out = f
		return nil
	})
	return out, err
}

func applyFieldPatch(f *model.Field, p FieldPatch) {
	if p.Page != nil {
		f.Page = *p.Page
	}
	if p.X != nil {
		f.X = *p.X
	}
	if p.Y != nil {
		f.Y = *p.Y
	}
	if p.Width != nil {
		f.Width = *p.Width
	}
	if p.Height != nil {
		f.Height = *p.Height
	}
	if p.Value != nil {
		f.Value = p.Value
	}
	if p.FontSize != nil {
		f.FontSize = *p.FontSize
	}
	if p.FontFamily != nil {
		f.FontFamily = *p.FontFamily
	}
	if p.DateFormat != nil {
		f.DateFormat = *p.DateFormat
	}
	switch {
	case p.ClearSigner:
		f.SignerID = nil
	case p.SignerID != nil:
		f.SignerID = p.SignerID
	}
}

// DeleteField removes a field from a draft document.
func (s *DocumentService) DeleteField(ctx context.Context, ownerID, documentID, fieldID string, client ClientInfo) error {
	return s.inDocumentTx(ctx, documentID, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := s.ownedDraftTx(ctx, tx, ownerID, documentID); err != nil {
			return err
		}
		if err := s.store.Fields.DeleteTx(ctx, tx, documentID, fieldID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrFieldNotFound
			}
			return err
		}
		_, err := s.ledger.AppendTx(ctx, tx, AppendInput{
			DocumentID: documentID,
			Action:     model.ActionFieldDeleted,
			Actor:      Actor{UserID: ownerID, Client: client},
			Details:    map[string]any{"field_id": fieldID},
		})
		return err
	})
}

// SignerInput describes a signer to register on a draft document.
type SignerInput struct {
	Email      string
	Name       string
	OrderIndex *int
}

// AddSigner registers a signer with a fresh access token and recomputes
// total_signers. Self-sign documents reject external signers.
func (s *DocumentService) AddSigner(ctx context.Context, ownerID, documentID string, in SignerInput, client ClientInfo) (*model.Signer, error) {
	email, err := validateEmail(in.Email)
	if err != nil {
		return nil, err
	}
	name, err := validateName(in.Name)
	if err != nil {
		return nil, err
	}
	if in.OrderIndex != nil && *in.OrderIndex < 0 {
		return nil, validationf("order index must not be negative")
	}

	var out *model.Signer
	err = s.inDocumentTx(ctx, documentID, func(ctx context.Context, tx *sql.Tx) error {
		d, err := s.ownedDraftTx(ctx, tx, ownerID, documentID)
		if err != nil {
			return err
		}
		if d.SelfSignOnly {
			return ErrSelfSignOnly
		}
		count, err := s.store.Signers.CountByDocumentTx(ctx, tx, documentID)
		if err != nil {
			return err
		}
		var order int
		if in.OrderIndex != nil {
			order = *in.OrderIndex
		} else if order, err = s.store.Signers.NextOrderIndexTx(ctx, tx, documentID); err != nil {
			return err
		}
		signer, err := s.insertSignerTx(ctx, tx, documentID, email, name, order)
		if err != nil {
			return err
		}
		if err := s.store.Documents.SetTotalSignersTx(ctx, tx, documentID, count+1); err != nil {
			return err
		}
		if _, err := s.ledger.AppendTx(ctx, tx, AppendInput{
			DocumentID: documentID,
			Action:     model.ActionSignerAdded,
			Actor:      Actor{UserID: ownerID, Client: client},
			Details:    map[string]any{"signer_id": signer.ID, "signer_email": signer.Email, "signer_name": signer.Name},
		}); err != nil {
			return err
		}
		out = signer
		return nil
	})
	return out, err
}

func (s *DocumentService) insertSignerTx(ctx context.Context, tx *sql.Tx, documentID, email, name string, order int) (*model.Signer, error) {
	token, err := utils.NewSigningToken()
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	now := s.now()
	signer := &model.Signer{
		ID:          uuid.NewString(),
		DocumentID:  documentID,
		Email:       email,
		Name:        name,
		OrderIndex:  order,
		Status:      model.SignerPending,
		AccessToken: token,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Signers.CreateTx(ctx, tx, signer); err != nil {
		return nil, fmt.Errorf("insert signer: %w", err)
	}
	return signer, nil
}

// RemoveSigner deletes a signer from a draft document, unbinds the fields
// assigned to them and recomputes total_signers.
func (s *DocumentService) RemoveSigner(ctx context.Context, ownerID, documentID, signerID string, client ClientInfo) error {
	return s.inDocumentTx(ctx, documentID, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := s.ownedDraftTx(ctx, tx, ownerID, documentID); err != nil {
			return err
		}
		signer, err := s.store.Signers.GetByIDTx(ctx, tx, signerID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrSignerNotFound
			}
			return err
		}
		if signer.DocumentID != documentID {
			return ErrSignerNotFound
		}
		if _, err := s.store.Fields.UnassignSignerTx(ctx, tx, documentID, signerID); err != nil {
			return err
		}
		if err := s.store.Signers.DeleteTx(ctx, tx, documentID, signerID); err != nil {
			return err
		}
		count, err := s.store.Signers.CountByDocumentTx(ctx, tx, documentID)
		if err != nil {
			return err
		}
		if err := s.store.Documents.SetTotalSignersTx(ctx, tx, documentID, count); err != nil {
			return err
		}
		_, err = s.ledger.AppendTx(ctx, tx, AppendInput{
			DocumentID: documentID,
			Action:     model.ActionSignerRemoved,
			Actor:      Actor{UserID: ownerID, Client: client},
			Details:    map[string]any{"signer_id": signerID, "signer_email": signer.Email},
		})
		return err
	})
}

// SendResult is the sent document plus the signers to invite.
type SendResult struct {
	Document *model.Document
	Signers  []model.Signer
}

// Send moves a draft to Pending. A self-sign document registers its owner
// as the only signer so that completion is reachable.
func (s *DocumentService) Send(ctx context.Context, ownerID, documentID string, client ClientInfo) (*SendResult, error) {
	var out *SendResult
	err := s.inDocumentTx(ctx, documentID, func(ctx context.Context, tx *sql.Tx) error {
		d, err := s.ownedDraftTx(ctx, tx, ownerID, documentID)
		if err != nil {
			return err
		}
		signers, err := s.store.Signers.ListByDocumentTx(ctx, tx, documentID)
		if err != nil {
			return err
		}
		if len(signers) == 0 {
			if !d.SelfSignOnly {
				return ErrNoSigners
			}
			owner, err := s.store.Users.GetByIDTx(ctx, tx, ownerID)
			if err != nil {
				return fmt.Errorf("load owner: %w", err)
			}
			self, err := s.insertSignerTx(ctx, tx, documentID, owner.Email, owner.Name, 0)
			if err != nil {
				return err
			}
			signers = append(signers, *self)
		}
		if err := s.store.Documents.SetTotalSignersTx(ctx, tx, documentID, len(signers)); err != nil {
			return err
		}
		if err := s.store.Documents.TransitionTx(ctx, tx, documentID, model.DocumentDraft, model.DocumentPending, nil); err != nil {
			return fmt.Errorf("transition to pending: %w", err)
		}
		if _, err := s.ledger.AppendTx(ctx, tx, AppendInput{
			DocumentID: documentID,
			Action:     model.ActionDocumentSent,
			Actor:      Actor{UserID: ownerID, Client: client},
			Details:    map[string]any{"signer_count": len(signers)},
		}); err != nil {
			return err
		}
		d, err = s.store.Documents.GetByIDTx(ctx, tx, documentID)
		if err != nil {
			return err
		}
		out = &SendResult{Document: d, Signers: signers}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("document sent", zap.String("document_id", documentID), zap.Int("signers", len(out.Signers)))
	return out, nil
}

// Void cancels a Draft or Pending document.
func (s *DocumentService) Void(ctx context.Context, ownerID, documentID string, client ClientInfo) (*model.Document, error) {
	var out *model.Document
	err := s.inDocumentTx(ctx, documentID, func(ctx context.Context, tx *sql.Tx) error {
		d, err := s.ownedTx(ctx, tx, ownerID, documentID)
		if err != nil {
			return err
		}
		if !d.Status.CanTransition(model.DocumentVoided) {
			return statusError(d.Status)
		}
		if err := s.store.Documents.TransitionTx(ctx, tx, documentID, d.Status, model.DocumentVoided, nil); err != nil {
			return fmt.Errorf("transition to voided: %w", err)
		}
		if _, err := s.ledger.AppendTx(ctx, tx, AppendInput{
			DocumentID: documentID,
			Action:     model.ActionDocumentVoided,
			Actor:      Actor{UserID: ownerID, Client: client},
			Details:    map[string]any{"previous_status": string(d.Status)},
		}); err != nil {
			return err
		}
		out, err = s.store.Documents.GetByIDTx(ctx, tx, documentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("document voided", zap.String("document_id", documentID))
	return out, nil
}

// Expire moves an overdue Pending document to Expired. The system is the
// actor.
func (s *DocumentService) Expire(ctx context.Context, documentID string) error {
	return s.inDocumentTx(ctx, documentID, func(ctx context.Context, tx *sql.Tx) error {
		d, err := s.store.Documents.GetByIDTx(ctx, tx, documentID)
		if err != nil {
			return err
		}
		if d.Status != model.DocumentPending {
			return statusError(d.Status)
		}
		now := s.now()
		if !d.Overdue(now) {
			return validationf("document has not reached its expiry")
		}
		if err := s.store.Documents.TransitionTx(ctx, tx, documentID, model.DocumentPending, model.DocumentExpired, nil); err != nil {
			return err
		}
		_, err = s.ledger.AppendTx(ctx, tx, AppendInput{
			DocumentID: documentID,
			Action:     model.ActionDocumentExpired,
			Details:    map[string]any{"expires_at": utils.FormatTimestamp(*d.ExpiresAt)},
		})
		return err
	})
}

// ExpireOverdue expires every overdue pending document and returns how many
// changed. Documents that completed or were voided in the meantime are
// skipped.
func (s *DocumentService) ExpireOverdue(ctx context.Context) (int, error) {
	docs, err := s.store.Documents.ListExpiring(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	expired := 0
	for _, d := range docs {
		if !d.Overdue(now) {
			continue
		}
		if err := s.Expire(ctx, d.ID); err != nil {
			if errors.Is(err, ErrLifecycleViolation) || errors.Is(err, ErrDocumentNotFound) {
				continue
			}
			return expired, err
		}
		expired++
		s.log.Info("document expired", zap.String("document_id", d.ID))
	}
	return expired, nil
}

// DeleteDocument removes a document that is not Completed together with its
// fields, signers, signatures and ledger.
func (s *DocumentService) DeleteDocument(ctx context.Context, ownerID, documentID string) error {
	err := s.inDocumentTx(ctx, documentID, func(ctx context.Context, tx *sql.Tx) error {
		d, err := s.ownedTx(ctx, tx, ownerID, documentID)
		if err != nil {
			return err
		}
		if d.Status == model.DocumentCompleted {
			return ErrCannotDelete
		}
		return s.store.Documents.DeleteTx(ctx, tx, documentID)
	})
	if err != nil {
		return err
	}
	s.log.Info("document deleted", zap.String("document_id", documentID), zap.String("owner_id", ownerID))
	return nil
}

// RecordDownload appends document_downloaded for the owner's download.
func (s *DocumentService) RecordDownload(ctx context.Context, ownerID, documentID string, client ClientInfo) (*model.AuditLogEntry, error) {
	var out *model.AuditLogEntry
	err := s.inDocumentTx(ctx, documentID, func(ctx context.Context, tx *sql.Tx) error {
		d, err := s.ownedTx(ctx, tx, ownerID, documentID)
		if err != nil {
			return err
		}
		out, err = s.ledger.AppendTx(ctx, tx, AppendInput{
			DocumentID: documentID,
			Action:     model.ActionDocumentDownloaded,
			Actor:      Actor{UserID: ownerID, Client: client},
			Details:    map[string]any{"status": string(d.Status)},
		})
		return err
	})
	return out, err
}

// MarkEmailSent records that a signer's invitation went out.
func (s *DocumentService) MarkEmailSent(ctx context.Context, signerID string) error {
	signer, err := s.store.Signers.GetByID(ctx, signerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSignerNotFound
		}
		return err
	}
	return s.inDocumentTx(ctx, signer.DocumentID, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.store.Signers.MarkEmailSentTx(ctx, tx, signerID, s.now()); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrSignerNotFound
			}
			return err
		}
		_, err := s.ledger.AppendTx(ctx, tx, AppendInput{
			DocumentID: signer.DocumentID,
			Action:     model.ActionSignerEmailSent,
			Actor:      Actor{SignerID: signerID},
			Details:    map[string]any{"signer_email": signer.Email},
		})
		return err
	})
}

// AuditTrail returns the owner's document ledger in chain order.
func (s *DocumentService) AuditTrail(ctx context.Context, ownerID, documentID string) ([]model.AuditLogEntry, error) {
	if _, err := s.owned(ctx, ownerID, documentID); err != nil {
		return nil, err
	}
	return s.ledger.EntriesFor(ctx, documentID)
}

// VerifyIntegrity re-verifies the owner's document ledger.
func (s *DocumentService) VerifyIntegrity(ctx context.Context, ownerID, documentID string) (bool, error) {
	if _, err := s.owned(ctx, ownerID, documentID); err != nil {
		return false, err
	}
	return s.ledger.VerifyChain(ctx, documentID)
}

// owned loads a document outside a transaction and hides other owners'
// documents behind ErrDocumentNotFound.
func (s *DocumentService) owned(ctx context.Context, ownerID, documentID string) (*model.Document, error) {
	d, err := s.store.Documents.GetByID(ctx, documentID)
	return checkOwner(d, err, ownerID)
}

func (s *DocumentService) ownedTx(ctx context.Context, tx *sql.Tx, ownerID, documentID string) (*model.Document, error) {
	d, err := s.store.Documents.GetByIDTx(ctx, tx, documentID)
	return checkOwner(d, err, ownerID)
}

func (s *DocumentService) ownedDraftTx(ctx context.Context, tx *sql.Tx, ownerID, documentID string) (*model.Document, error) {
	d, err := s.ownedTx(ctx, tx, ownerID, documentID)
	if err != nil {
		return nil, err
	}
	if d.Status != model.DocumentDraft {
		return nil, ErrNotDraft
	}
	return d, nil
}

func checkOwner(d *model.Document, err error, ownerID string) (*model.Document, error) {
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	if d.OwnerID != ownerID {
		return nil, ErrDocumentNotFound
	}
	return d, nil
}

// checkSignerBindingTx verifies that a bound signer belongs to the document.
func (s *DocumentService) checkSignerBindingTx(ctx context.Context, tx *sql.Tx, documentID string, signerID *string) error {
	if signerID == nil {
		return nil
	}
	signer, err := s.store.Signers.GetByIDTx(ctx, tx, *signerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSignerNotInDocument
		}
		return err
	}
	if signer.DocumentID != documentID {
		return ErrSignerNotInDocument
	}
	return nil
}
