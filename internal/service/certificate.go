package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/signvault/internal/model"
	"github.com/iliyamo/signvault/internal/repository"
	"github.com/iliyamo/signvault/internal/utils"
)

const (
	systemActor    = "System"
	unknownAddress = "Unknown"
)

// CertificateService seals completed documents into certificates.
type CertificateService struct {
	runner
	ledger *Ledger
	log    *zap.Logger
}

// NewCertificateService wires the certificate generator.
func NewCertificateService(store *repository.Store, ledger *Ledger, log *zap.Logger, opts Options) *CertificateService {
	return &CertificateService{
		runner: runner{store: store, opts: opts.withDefaults()},
		ledger: ledger,
		log:    log.With(zap.String("service", "certificates")),
	}
}

// GenerateCertificate builds a certificate for the owner's completed document
// and appends certificate_generated. Each call yields a new generated_at and
// hash; certificates are timestamped attestations, not stored singletons.
func (s *CertificateService) GenerateCertificate(ctx context.Context, ownerID, documentID string) (*model.Certificate, error) {
	var cert *model.Certificate
	err := s.inDocumentTx(ctx, documentID, func(ctx context.Context, tx *sql.Tx) error {
		d, err := s.store.Documents.GetByIDTx(ctx, tx, documentID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrDocumentNotFound
			}
			return err
		}
		if d.OwnerID != ownerID {
			return ErrDocumentNotFound
		}
		if d.Status != model.DocumentCompleted || d.CompletedAt == nil {
			return ErrNotCompleted
		}

		cert, err = s.buildTx(ctx, tx, d)
		if err != nil {
			return err
		}
		_, err = s.ledger.AppendTx(ctx, tx, AppendInput{
			DocumentID: d.ID,
			Action:     model.ActionCertificateGenerated,
			Actor:      Actor{UserID: ownerID},
			Details:    map[string]any{"certificate_hash": cert.CertificateHash},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("certificate generated",
		zap.String("document_id", documentID),
		zap.String("certificate_hash", cert.CertificateHash))
	return cert, nil
}

func (s *CertificateService) buildTx(ctx context.Context, tx *sql.Tx, d *model.Document) (*model.Certificate, error) {
	signers, err := s.store.Signers.ListByDocumentTx(ctx, tx, d.ID)
	if err != nil {
		return nil, err
	}
	signatures, err := s.store.Signatures.ListByDocumentTx(ctx, tx, d.ID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.Audit.ListByDocumentTx(ctx, tx, d.ID)
	if err != nil {
		return nil, err
	}

	firstHash := make(map[string]string, len(signers))
	for _, sig := range signatures {
		if _, ok := firstHash[sig.SignerID]; !ok {
			firstHash[sig.SignerID] = sig.SignatureHash
		}
	}
	labels := make(map[string]string, len(signers))
	certSigners := make([]model.CertificateSigner, 0, len(signers))
	for _, sg := range signers {
		labels[sg.ID] = sg.Label()
		if sg.SignedAt == nil {
			continue
		}
		ip := unknownAddress
		if sg.IPAddress != nil && *sg.IPAddress != "" {
			ip = *sg.IPAddress
		}
		certSigners = append(certSigners, model.CertificateSigner{
			Name:          sg.Name,
			Email:         sg.Email,
			SignedAt:      *sg.SignedAt,
			IPAddress:     ip,
			SignatureHash: firstHash[sg.ID],
		})
	}

	trail := make([]model.CertificateAuditEntry, 0, len(entries))
	for _, e := range entries {
		actor, err := s.actorLabelTx(ctx, tx, e, labels)
		if err != nil {
			return nil, err
		}
		trail = append(trail, model.CertificateAuditEntry{
			Action:    string(e.Action),
			Actor:     actor,
			Timestamp: e.CreatedAt,
			IPAddress: e.IPAddress,
			Details:   e.Details,
		})
	}

	cert := &model.Certificate{
		DocumentID:    d.ID,
		DocumentTitle: d.Title,
		DocumentHash:  d.FileHash,
		CreatedAt:     d.CreatedAt,
		CompletedAt:   *d.CompletedAt,
		Signers:       certSigners,
		AuditTrail:    trail,
		GeneratedAt:   s.now(),
	}
	cert.CertificateHash, err = CertificateHash(*cert)
	if err != nil {
		return nil, err
	}
	return cert, nil
}

// actorLabelTx resolves an entry's actor. Signer attribution wins over owner
// attribution; entries with neither are the system's.
func (s *CertificateService) actorLabelTx(ctx context.Context, tx *sql.Tx, e model.AuditLogEntry, labels map[string]string) (string, error) {
	if e.SignerID != nil {
		if l, ok := labels[*e.SignerID]; ok {
			return l, nil
		}
	}
	if e.UserID != nil {
		if l, ok := labels["user:"+*e.UserID]; ok {
			return l, nil
		}
		u, err := s.store.Users.GetByIDTx(ctx, tx, *e.UserID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
		case err != nil:
			return "", fmt.Errorf("resolve actor: %w", err)
		default:
			labels["user:"+*e.UserID] = u.Label()
			return u.Label(), nil
		}
	}
	return systemActor, nil
}

// CertificateHash seals a certificate's content. It is recomputable from the
// certificate alone.
func CertificateHash(c model.Certificate) (string, error) {
	signersJSON, err := json.Marshal(c.Signers)
	if err != nil {
		return "", fmt.Errorf("encode certificate signers: %w", err)
	}
	auditJSON, err := json.Marshal(c.AuditTrail)
	if err != nil {
		return "", fmt.Errorf("encode certificate audit trail: %w", err)
	}
	return utils.HashCertificate(c.DocumentID, c.DocumentHash, string(signersJSON), string(auditJSON),
		utils.FormatTimestamp(c.GeneratedAt)), nil
}

// VerifyCertificate reports whether c's hash matches its content.
func VerifyCertificate(c model.Certificate) bool {
	h, err := CertificateHash(c)
	return err == nil && h == c.CertificateHash
}
