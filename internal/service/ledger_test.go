package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/signvault/internal/model"
)

func TestLedgerAppendLinksEntries(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	d := e.createDocument(t, false)

	for i := 0; i < 3; i++ {
		_, err := e.ledger.Append(ctx, AppendInput{
			DocumentID: d.ID,
			Action:     model.ActionDocumentDownloaded,
			Actor:      Actor{UserID: e.owner.ID, Client: client},
			Details:    map[string]any{"n": i},
		})
		require.NoError(t, err)
	}

	entries, err := e.ledger.EntriesFor(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Nil(t, entries[0].PreviousHash)
	for i := 1; i < len(entries); i++ {
		require.NotNil(t, entries[i].PreviousHash)
		assert.Equal(t, entries[i-1].EntryHash, *entries[i].PreviousHash)
		assert.Equal(t, entries[i-1].Seq+1, entries[i].Seq)
		assert.False(t, entries[i].CreatedAt.Before(entries[i-1].CreatedAt))
	}
	require.NotNil(t, entries[1].Details)
	assert.JSONEq(t, `{"n":0}`, *entries[1].Details)
	assert.True(t, VerifyEntries(entries))
}

func TestLedgerConcurrentAppendsStayLinear(t *testing.T) {
	const writers = 16
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			e := b.open(t)
			ctx := context.Background()
			d := e.createDocument(t, false)

			var wg sync.WaitGroup
			start := make(chan struct{})
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					_, err := e.ledger.Append(ctx, AppendInput{
						DocumentID: d.ID,
						Action:     model.ActionDocumentDownloaded,
						Details:    map[string]any{"n": i},
					})
					assert.NoError(t, err)
				}(i)
			}
			close(start)
			wg.Wait()

			entries, err := e.ledger.EntriesFor(ctx, d.ID)
			require.NoError(t, err)
			require.Len(t, entries, writers+1)
			for i, en := range entries {
				assert.Equal(t, int64(i+1), en.Seq)
			}
			e.assertChain(t, d.ID)
		})
	}
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*env, string) {
		e := newEnv(t)
		d := e.createDocument(t, false)
		e.addSigner(t, d.ID, "alice@example.com", "Alice", 0)
		e.addSigner(t, d.ID, "bob@example.com", "Bob", 1)
		e.assertChain(t, d.ID)
		return e, d.ID
	}

	t.Run("mutated details", func(t *testing.T) {
		e, docID := setup(t)
		_, err := e.store.DB.ExecContext(ctx,
			`UPDATE audit_logs SET details = ? WHERE document_id = ? AND seq = 2`, `{"signer_email":"mallory@example.com"}`, docID)
		require.NoError(t, err)
		ok, err := e.ledger.VerifyChain(ctx, docID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("deleted entry", func(t *testing.T) {
		e, docID := setup(t)
		_, err := e.store.DB.ExecContext(ctx, `DELETE FROM audit_logs WHERE document_id = ? AND seq = 2`, docID)
		require.NoError(t, err)
		ok, err := e.ledger.VerifyChain(ctx, docID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("reordered entries", func(t *testing.T) {
		e, docID := setup(t)
		entries, err := e.ledger.EntriesFor(ctx, docID)
		require.NoError(t, err)
		entries[1], entries[2] = entries[2], entries[1]
		assert.Equal(t, 1, FirstBrokenLink(entries))
	})

	t.Run("first entry with a predecessor", func(t *testing.T) {
		e, docID := setup(t)
		entries, err := e.ledger.EntriesFor(ctx, docID)
		require.NoError(t, err)
		assert.Equal(t, 0, FirstBrokenLink(entries[1:]))
	})

	t.Run("empty chain", func(t *testing.T) {
		assert.True(t, VerifyEntries(nil))
	})
}
