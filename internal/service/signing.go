package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/signvault/internal/model"
	"github.com/iliyamo/signvault/internal/repository"
	"github.com/iliyamo/signvault/internal/utils"
)

// SigningService runs the signer-facing operations. Signers are identified
// only by their access token, which is never logged.
type SigningService struct {
	runner
	ledger *Ledger
	log    *zap.Logger
}

// NewSigningService wires the signing service.
func NewSigningService(store *repository.Store, ledger *Ledger, log *zap.Logger, opts Options) *SigningService {
	return &SigningService{
		runner: runner{store: store, opts: opts.withDefaults()},
		ledger: ledger,
		log:    log.With(zap.String("service", "signing")),
	}
}

// Session is what a signer sees when opening their link.
type Session struct {
	DocumentID    string        `json:"document_id"`
	DocumentTitle string        `json:"document_title"`
	DocumentHash  string        `json:"document_hash"`
	Signer        SessionSigner `json:"signer"`
	Fields        []model.Field `json:"fields"`
}

// SessionSigner is the signer's own view of themselves.
type SessionSigner struct {
	ID     string             `json:"id"`
	Name   string             `json:"name"`
	Email  string             `json:"email"`
	Status model.SignerStatus `json:"status"`
}

// OpenSession resolves token and returns the fields the signer may fill. The
// first open moves the signer to viewed and appends signer_viewed.
func (s *SigningService) OpenSession(ctx context.Context, token string, client ClientInfo) (*Session, error) {
	signer, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	var out *Session
	err = s.inDocumentTx(ctx, signer.DocumentID, func(ctx context.Context, tx *sql.Tx) error {
		signer, d, err := s.loadTx(ctx, tx, token)
		if err != nil {
			return err
		}
		if d.Status == model.DocumentVoided || d.Status == model.DocumentExpired || d.Status == model.DocumentDraft {
			return statusError(d.Status)
		}
		if d.Status == model.DocumentPending && d.Overdue(s.now()) {
			return ErrDocumentExpired
		}
		if err := signerOpen(signer); err != nil {
			return err
		}
		if signer.ViewedAt == nil {
			viewed, err := s.store.Signers.MarkViewedTx(ctx, tx, signer.ID, client.IP, client.UserAgent, s.now())
			if err != nil {
				return fmt.Errorf("mark viewed: %w", err)
			}
			if viewed {
				if _, err := s.ledger.AppendTx(ctx, tx, AppendInput{
					DocumentID: d.ID,
					Action:     model.ActionSignerViewed,
					Actor:      Actor{SignerID: signer.ID, Client: client},
					Details:    map[string]any{"signer_email": signer.Email},
				}); err != nil {
					return err
				}
				signer.Status = model.SignerViewed
			}
		}
		fields, err := s.store.Fields.ListByDocumentTx(ctx, tx, d.ID)
		if err != nil {
			return err
		}
		visible := make([]model.Field, 0, len(fields))
		for _, f := range fields {
			if f.AssignableTo(signer.ID) {
				visible = append(visible, f)
			}
		}
		out = &Session{
			DocumentID:    d.ID,
			DocumentTitle: d.Title,
			DocumentHash:  d.FileHash,
			Signer: SessionSigner{
				ID:     signer.ID,
				Name:   signer.Name,
				Email:  signer.Email,
				Status: signer.Status,
			},
			Fields: visible,
		}
		return nil
	})
	return out, err
}

// RecordDocumentView appends document_viewed when a signer fetches the file.
func (s *SigningService) RecordDocumentView(ctx context.Context, token string, client ClientInfo) (*model.Document, error) {
	signer, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	var out *model.Document
	err = s.inDocumentTx(ctx, signer.DocumentID, func(ctx context.Context, tx *sql.Tx) error {
		signer, d, err := s.loadTx(ctx, tx, token)
		if err != nil {
			return err
		}
		if d.Status == model.DocumentVoided || d.Status == model.DocumentExpired || d.Status == model.DocumentDraft {
			return statusError(d.Status)
		}
		if d.Status == model.DocumentPending && d.Overdue(s.now()) {
			return ErrDocumentExpired
		}
		if _, err := s.ledger.AppendTx(ctx, tx, AppendInput{
			DocumentID: d.ID,
			Action:     model.ActionDocumentViewed,
			Actor:      Actor{SignerID: signer.ID, Client: client},
		}); err != nil {
			return err
		}
		out = d
		return nil
	})
	return out, err
}

// SignatureSubmission is one signature payload for one field.
type SignatureSubmission struct {
	FieldID string `json:"field_id"`
	Data    string `json:"signature_data"`
}

// FieldValueSubmission is one plain value for one field.
type FieldValueSubmission struct {
	FieldID string `json:"field_id"`
	Value   string `json:"value"`
}

// SubmitInput is a signer's batch.
type SubmitInput struct {
	Signatures  []SignatureSubmission
	FieldValues []FieldValueSubmission
	Client      ClientInfo
}

// SubmitResult reports the outcome of a signing transaction.
type SubmitResult struct {
	Success           bool            `json:"success"`
	DocumentCompleted bool            `json:"document_completed"`
	Document          *model.Document `json:"-"`
	Signer            *model.Signer   `json:"-"`
}

// Submit applies a signer's signatures and field values, marks the signer
// signed and completes the document when the last signer signs. All effects
// commit together or not at all.
func (s *SigningService) Submit(ctx context.Context, token string, in SubmitInput) (*SubmitResult, error) {
	signer, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	for _, sig := range in.Signatures {
		if strings.TrimSpace(sig.FieldID) == "" || sig.Data == "" {
			return nil, validationf("signature entries need a field id and a payload")
		}
	}
	for _, fv := range in.FieldValues {
		if strings.TrimSpace(fv.FieldID) == "" {
			return nil, validationf("field value entries need a field id")
		}
	}

	var out *SubmitResult
	err = s.inDocumentTx(ctx, signer.DocumentID, func(ctx context.Context, tx *sql.Tx) error {
		signer, d, err := s.loadTx(ctx, tx, token)
		if err != nil {
			return err
		}
		if err := signerOpen(signer); err != nil {
			return err
		}
		if d.Status != model.DocumentPending {
			return statusError(d.Status)
		}
		// The deadline holds between expiry sweeps.
		if d.Overdue(s.now()) {
			return ErrDocumentExpired
		}
		if err := s.checkFieldsTx(ctx, tx, d.ID, signer.ID, in); err != nil {
			return err
		}

		now := s.now()
		for _, sig := range in.Signatures {
			row := &model.Signature{
				ID:            uuid.NewString(),
				SignerID:      signer.ID,
				DocumentID:    d.ID,
				FieldID:       sig.FieldID,
				SignatureData: sig.Data,
				SignatureHash: utils.HashString(sig.Data),
				IPAddress:     in.Client.IP,
				UserAgent:     in.Client.UserAgent,
				CreatedAt:     now,
			}
			if err := s.store.Signatures.CreateTx(ctx, tx, row); err != nil {
				if errors.Is(err, repository.ErrConflict) {
					return ErrFieldAlreadySigned
				}
				return fmt.Errorf("insert signature: %w", err)
			}
			if _, err := s.ledger.AppendTx(ctx, tx, AppendInput{
				DocumentID: d.ID,
				Action:     model.ActionSignatureApplied,
				Actor:      Actor{SignerID: signer.ID, Client: in.Client},
				Details:    map[string]any{"field_id": sig.FieldID, "signature_hash": row.SignatureHash},
			}); err != nil {
				return err
			}
		}
		for _, fv := range in.FieldValues {
			if err := s.store.Fields.SetValueTx(ctx, tx, d.ID, fv.FieldID, fv.Value, now); err != nil {
				return fmt.Errorf("set field value: %w", err)
			}
		}

		if err := s.store.Signers.MarkSignedTx(ctx, tx, signer.ID, in.Client.IP, in.Client.UserAgent, now); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrAlreadySigned
			}
			return fmt.Errorf("mark signed: %w", err)
		}
		if _, err := s.ledger.AppendTx(ctx, tx, AppendInput{
			DocumentID: d.ID,
			Action:     model.ActionSignerSigned,
			Actor:      Actor{SignerID: signer.ID, Client: in.Client},
			Details:    map[string]any{"signer_email": signer.Email, "signer_name": signer.Name},
		}); err != nil {
			return err
		}

		completed, err := s.store.Documents.IncrementCompletedTx(ctx, tx, d.ID)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrDocumentCompleted
			}
			return fmt.Errorf("increment completed signers: %w", err)
		}
		done := completed == d.TotalSigners
		if done {
			if err := s.store.Documents.TransitionTx(ctx, tx, d.ID, model.DocumentPending, model.DocumentCompleted, &now); err != nil {
				return fmt.Errorf("transition to completed: %w", err)
			}
			if _, err := s.ledger.AppendTx(ctx, tx, AppendInput{
				DocumentID: d.ID,
				Action:     model.ActionDocumentCompleted,
				Details:    map[string]any{"total_signers": d.TotalSigners, "completed_signers": completed},
			}); err != nil {
				return err
			}
		}

		d, err = s.store.Documents.GetByIDTx(ctx, tx, d.ID)
		if err != nil {
			return err
		}
		signer, err = s.store.Signers.GetByIDTx(ctx, tx, signer.ID)
		if err != nil {
			return err
		}
		out = &SubmitResult{Success: true, DocumentCompleted: done, Document: d, Signer: signer}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("signer signed",
		zap.String("document_id", out.Document.ID),
		zap.String("signer_id", out.Signer.ID),
		zap.Int("signatures", len(in.Signatures)),
		zap.Bool("document_completed", out.DocumentCompleted))
	return out, nil
}

// checkFieldsTx enforces field ownership for every submitted entry.
func (s *SigningService) checkFieldsTx(ctx context.Context, tx *sql.Tx, documentID, signerID string, in SubmitInput) error {
	check := func(fieldID string) (*model.Field, error) {
		f, err := s.store.Fields.GetByIDTx(ctx, tx, documentID, fieldID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrFieldNotInDocument
			}
			return nil, err
		}
		if !f.AssignableTo(signerID) {
			return nil, ErrFieldNotAssigned
		}
		return f, nil
	}
	seen := make(map[string]bool, len(in.Signatures))
	for _, sig := range in.Signatures {
		if _, err := check(sig.FieldID); err != nil {
			return err
		}
		if seen[sig.FieldID] {
			return ErrFieldAlreadySigned
		}
		seen[sig.FieldID] = true
		exists, err := s.store.Signatures.ExistsForFieldTx(ctx, tx, sig.FieldID)
		if err != nil {
			return err
		}
		if exists {
			return ErrFieldAlreadySigned
		}
	}
	for _, fv := range in.FieldValues {
		if _, err := check(fv.FieldID); err != nil {
			return err
		}
	}
	return nil
}

// Decline marks the signer declined. The document stays as it is; a declined
// signer simply never counts toward completion.
func (s *SigningService) Decline(ctx context.Context, token string, reason *string, client ClientInfo) error {
	signer, err := s.resolve(ctx, token)
	if err != nil {
		return err
	}
	if reason != nil {
		r := strings.TrimSpace(*reason)
		if r == "" {
			reason = nil
		} else {
			reason = &r
		}
	}
	err = s.inDocumentTx(ctx, signer.DocumentID, func(ctx context.Context, tx *sql.Tx) error {
		signer, _, err := s.loadTx(ctx, tx, token)
		if err != nil {
			return err
		}
		if err := signerOpen(signer); err != nil {
			return err
		}
		if err := s.store.Signers.MarkDeclinedTx(ctx, tx, signer.ID, reason, client.IP, client.UserAgent, s.now()); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrSignerDeclined
			}
			return fmt.Errorf("mark declined: %w", err)
		}
		details := map[string]any{"signer_email": signer.Email}
		if reason != nil {
			details["reason"] = *reason
		}
		_, err = s.ledger.AppendTx(ctx, tx, AppendInput{
			DocumentID: signer.DocumentID,
			Action:     model.ActionSignerDeclined,
			Actor:      Actor{SignerID: signer.ID, Client: client},
			Details:    details,
		})
		return err
	})
	if err != nil {
		return err
	}
	s.log.Info("signer declined", zap.String("document_id", signer.DocumentID), zap.String("signer_id", signer.ID))
	return nil
}

// resolve maps a token to its signer outside any transaction so the right
// document can be locked.
func (s *SigningService) resolve(ctx context.Context, token string) (*model.Signer, error) {
	if token == "" {
		return nil, ErrSignerNotFound
	}
	signer, err := s.store.Signers.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSignerNotFound
		}
		return nil, err
	}
	return signer, nil
}

// loadTx re-reads the signer and its document under the document lock.
func (s *SigningService) loadTx(ctx context.Context, tx *sql.Tx, token string) (*model.Signer, *model.Document, error) {
	signer, err := s.store.Signers.GetByTokenTx(ctx, tx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrSignerNotFound
		}
		return nil, nil, err
	}
	d, err := s.store.Documents.GetByIDTx(ctx, tx, signer.DocumentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrDocumentNotFound
		}
		return nil, nil, err
	}
	return signer, d, nil
}

func signerOpen(signer *model.Signer) error {
	switch signer.Status {
	case model.SignerSigned:
		return ErrAlreadySigned
	case model.SignerDeclined:
		return ErrSignerDeclined
	}
	return nil
}
