package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/signvault/internal/repository"
)

// DefaultTxTimeout bounds a unit of work when Options leaves it unset.
const DefaultTxTimeout = 10 * time.Second

// Options tunes the services.
type Options struct {
	// TxTimeout bounds each transaction. The transaction does not inherit
	// the caller's cancellation.
	TxTimeout time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.TxTimeout <= 0 {
		o.TxTimeout = DefaultTxTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// ClientInfo is the network identity of the caller, recorded on audit
// entries and signatures.
type ClientInfo struct {
	IP        string
	UserAgent string
}

func (c ClientInfo) ipPtr() *string {
	if c.IP == "" {
		return nil
	}
	ip := c.IP
	return &ip
}

func (c ClientInfo) uaPtr() *string {
	if c.UserAgent == "" {
		return nil
	}
	ua := c.UserAgent
	return &ua
}

// runner executes units of work against the store.
type runner struct {
	store *repository.Store
	opts  Options
}

// inTx runs fn in a transaction detached from ctx's cancellation so that a
// client disconnect can never leave a half-applied change: fn's effects are
// committed together or rolled back together.
func (r runner) inTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.TxTimeout)
	defer cancel()

	tx, err := r.store.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// inDocumentTx is inTx holding the document's write lock from the first
// statement, so reads inside fn see the latest committed state and
// concurrent units of work on the same document are serialised.
func (r runner) inDocumentTx(ctx context.Context, documentID string, fn func(ctx context.Context, tx *sql.Tx) error) error {
	return r.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := r.store.Documents.LockTx(ctx, tx, documentID, r.now()); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrDocumentNotFound
			}
			return fmt.Errorf("lock document: %w", err)
		}
		return fn(ctx, tx)
	})
}

func (r runner) now() time.Time { return r.opts.Now().UTC().Truncate(time.Microsecond) }
