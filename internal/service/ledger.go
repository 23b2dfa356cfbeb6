package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/signvault/internal/model"
	"github.com/iliyamo/signvault/internal/repository"
	"github.com/iliyamo/signvault/internal/utils"
)

// Actor identifies who caused an audit entry. Empty ids mean the system.
type Actor struct {
	UserID   string
	SignerID string
	Client   ClientInfo
}

// AppendInput describes one ledger entry to append.
type AppendInput struct {
	DocumentID string
	Action     model.AuditAction
	Actor      Actor
	// Details is serialised with sorted keys; nil means no details.
	Details map[string]any
}

// Ledger is the per-document hash-chained audit log.
type Ledger struct {
	runner
	log *zap.Logger
}

// NewLedger returns a Ledger over store.
func NewLedger(store *repository.Store, log *zap.Logger, opts Options) *Ledger {
	return &Ledger{
		runner: runner{store: store, opts: opts.withDefaults()},
		log:    log.With(zap.String("service", "ledger")),
	}
}

// AppendTx links a new entry to the chain tail. The caller must hold the
// document lock in tx (see inDocumentTx); otherwise two appends could read
// the same tail. A timestamp earlier than the tail's is raised to the
// tail's, so creation order never contradicts chain order.
func (l *Ledger) AppendTx(ctx context.Context, tx *sql.Tx, in AppendInput) (*model.AuditLogEntry, error) {
	tail, err := l.store.Audit.TailTx(ctx, tx, in.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("read chain tail: %w", err)
	}
	details, err := canonicalDetails(in.Details)
	if err != nil {
		return nil, err
	}

	e := &model.AuditLogEntry{
		ID:         uuid.NewString(),
		DocumentID: in.DocumentID,
		Seq:        1,
		SignerID:   optionalID(in.Actor.SignerID),
		UserID:     optionalID(in.Actor.UserID),
		Action:     in.Action,
		IPAddress:  in.Actor.Client.ipPtr(),
		UserAgent:  in.Actor.Client.uaPtr(),
		Details:    details,
		CreatedAt:  l.now(),
	}
	if tail != nil {
		e.Seq = tail.Seq + 1
		prev := tail.EntryHash
		e.PreviousHash = &prev
		if e.CreatedAt.Before(tail.CreatedAt) {
			e.CreatedAt = tail.CreatedAt
		}
	}
	e.EntryHash = EntryHash(*e)

	if err := l.store.Audit.InsertTx(ctx, tx, e); err != nil {
		return nil, fmt.Errorf("append %s: %w", e.Action, err)
	}
	return e, nil
}

// Append locks the document and appends a single entry in its own
// transaction.
func (l *Ledger) Append(ctx context.Context, in AppendInput) (*model.AuditLogEntry, error) {
	var out *model.AuditLogEntry
	err := l.inDocumentTx(ctx, in.DocumentID, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		out, err = l.AppendTx(ctx, tx, in)
		return err
	})
	return out, err
}

// EntriesFor returns the document's chain in canonical order.
func (l *Ledger) EntriesFor(ctx context.Context, documentID string) ([]model.AuditLogEntry, error) {
	return l.store.Audit.ListByDocument(ctx, documentID)
}

// VerifyChain re-derives the document's chain from storage. A false result
// is an integrity alarm and is logged; it is never repaired.
func (l *Ledger) VerifyChain(ctx context.Context, documentID string) (bool, error) {
	entries, err := l.store.Audit.ListByDocument(ctx, documentID)
	if err != nil {
		return false, err
	}
	if i := FirstBrokenLink(entries); i >= 0 {
		l.log.Error("audit chain integrity failure",
			zap.String("document_id", documentID),
			zap.Int("entry_index", i),
			zap.String("entry_id", entries[i].ID),
			zap.Int("entries", len(entries)))
		return false, nil
	}
	return true, nil
}

// EntryHash computes the chain hash of e from its stored fields.
func EntryHash(e model.AuditLogEntry) string {
	return utils.HashChain(e.DocumentID, string(e.Action), utils.FormatTimestamp(e.CreatedAt), e.PreviousHash, e.Details)
}

// VerifyEntries reports whether entries form an intact chain.
func VerifyEntries(entries []model.AuditLogEntry) bool { return FirstBrokenLink(entries) < 0 }

// FirstBrokenLink returns the index of the first entry whose link or hash
// does not check out, or -1 for an intact chain. The first entry must have
// no previous hash; every later entry must point at its predecessor's hash;
// every entry's hash must recompute from its own fields.
func FirstBrokenLink(entries []model.AuditLogEntry) int {
	for i, e := range entries {
		if i == 0 {
			if e.PreviousHash != nil {
				return i
			}
		} else if e.PreviousHash == nil || *e.PreviousHash != entries[i-1].EntryHash {
			return i
		}
		if EntryHash(e) != e.EntryHash {
			return i
		}
	}
	return -1
}

func canonicalDetails(d map[string]any) (*string, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode audit details: %w", err)
	}
	s := string(b)
	return &s, nil
}

func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
