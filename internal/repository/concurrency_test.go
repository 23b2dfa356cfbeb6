package repository_test

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/signvault/internal/database"
	"github.com/iliyamo/signvault/internal/model"
	"github.com/iliyamo/signvault/internal/repository"
	"github.com/iliyamo/signvault/internal/testutil"
)

// backend opens a store plus a throwaway owner. The mysql case needs
// testutil.MySQLDSNEnv and is the one that runs on several connections.
type backend struct {
	name string
	open func(t *testing.T) (*repository.Store, *model.User)
}

var backends = []backend{
	{"sqlite", func(t *testing.T) (*repository.Store, *model.User) {
		db := testutil.SetupTestDB(t)
		return repository.NewStore(db, database.DialectSQLite), testutil.CreateOwner(t, db, "owner@example.com")
	}},
	{"mysql", func(t *testing.T) (*repository.Store, *model.User) {
		db := testutil.SetupMySQLTestDB(t)
		require.Greater(t, db.Stats().MaxOpenConnections, 1)
		return repository.NewStore(db, database.DialectMySQL), testutil.CreateTempOwner(t, db)
	}},
}

func TestIncrementCompletedIsBounded(t *testing.T) {
	const total = 8
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			store, owner := b.open(t)
			d := seedDocument(t, store, owner.ID, total)
			ctx := context.Background()

			var (
				mu   sync.Mutex
				seen []int
				wg   sync.WaitGroup
			)
			start := make(chan struct{})
			for i := 0; i < total; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					tx, err := store.DB.BeginTx(ctx, nil)
					if !assert.NoError(t, err) {
						return
					}
					n, err := store.Documents.IncrementCompletedTx(ctx, tx, d.ID)
					if !assert.NoError(t, err) {
						_ = tx.Rollback()
						return
					}
					if assert.NoError(t, tx.Commit()) {
						mu.Lock()
						seen = append(seen, n)
						mu.Unlock()
					}
				}()
			}
			close(start)
			wg.Wait()

			sort.Ints(seen)
			want := make([]int, total)
			for i := range want {
				want[i] = i + 1
			}
			assert.Equal(t, want, seen)

			inTx(t, store.DB, func(tx *sql.Tx) {
				_, err := store.Documents.IncrementCompletedTx(ctx, tx, d.ID)
				assert.ErrorIs(t, err, repository.ErrConflict)
			})
			got, err := store.Documents.GetByID(ctx, d.ID)
			require.NoError(t, err)
			assert.Equal(t, total, got.CompletedSigners)
		})
	}
}

func TestLockTxBlocksSecondWriter(t *testing.T) {
	store, owner := backends[1].open(t)
	d := seedDocument(t, store, owner.ID, 2)
	ctx := context.Background()

	tx1, err := store.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx1.Rollback()
	require.NoError(t, store.Documents.LockTx(ctx, tx1, d.ID, time.Now().UTC()))
	n, err := store.Documents.IncrementCompletedTx(ctx, tx1, d.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	type result struct {
		completed int
		err       error
	}
	acquired := make(chan result, 1)
	go func() {
		tx2, err := store.DB.BeginTx(ctx, nil)
		if err != nil {
			acquired <- result{err: err}
			return
		}
		defer tx2.Rollback()
		if err := store.Documents.LockTx(ctx, tx2, d.ID, time.Now().UTC()); err != nil {
			acquired <- result{err: err}
			return
		}
		got, err := store.Documents.GetByIDTx(ctx, tx2, d.ID)
		if err != nil {
			acquired <- result{err: err}
			return
		}
		acquired <- result{completed: got.CompletedSigners, err: tx2.Commit()}
	}()

	select {
	case r := <-acquired:
		t.Fatalf("second writer got the lock while it was held: %+v", r)
	case <-time.After(300 * time.Millisecond):
	}

	require.NoError(t, tx1.Commit())

	select {
	case r := <-acquired:
		require.NoError(t, r.err)
		assert.Equal(t, 1, r.completed, "second writer must read the committed counter")
	case <-time.After(5 * time.Second):
		t.Fatal("second writer never got the lock")
	}
}
