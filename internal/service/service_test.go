package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/signvault/internal/database"
	"github.com/iliyamo/signvault/internal/model"
	"github.com/iliyamo/signvault/internal/repository"
	"github.com/iliyamo/signvault/internal/testutil"
	"github.com/iliyamo/signvault/internal/utils"
)

type env struct {
	store   *repository.Store
	ledger  *Ledger
	docs    *DocumentService
	signing *SigningService
	certs   *CertificateService
	owner   *model.User
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return newEnvOn(t, db, database.DialectSQLite, testutil.CreateOwner(t, db, "owner@example.com"))
}

func newEnvOn(t *testing.T, db *sql.DB, dialect database.Dialect, owner *model.User) *env {
	t.Helper()
	store := repository.NewStore(db, dialect)
	log := testutil.Logger(t)
	opts := Options{TxTimeout: 5 * time.Second}
	ledger := NewLedger(store, log, opts)
	return &env{
		store:   store,
		ledger:  ledger,
		docs:    NewDocumentService(store, ledger, log, opts),
		signing: NewSigningService(store, ledger, log, opts),
		certs:   NewCertificateService(store, ledger, log, opts),
		owner:   owner,
	}
}

// backends lists the engines the concurrency tests run on. SQLite runs one
// connection at a time, so only the MySQL run exercises row locks between
// real connections; it skips unless testutil.MySQLDSNEnv is set.
var backends = []struct {
	name string
	open func(t *testing.T) *env
}{
	{"sqlite", newEnv},
	{"mysql", func(t *testing.T) *env {
		db := testutil.SetupMySQLTestDB(t)
		require.Greater(t, db.Stats().MaxOpenConnections, 1)
		return newEnvOn(t, db, database.DialectMySQL, testutil.CreateTempOwner(t, db))
	}},
}

var client = ClientInfo{IP: "203.0.113.7", UserAgent: "go-test"}

func (e *env) createDocument(t *testing.T, selfSign bool) *model.Document {
	t.Helper()
	d, err := e.docs.CreateDocument(context.Background(), CreateDocumentInput{
		OwnerID:          e.owner.ID,
		Title:            "Services Agreement",
		OriginalFilename: "agreement.pdf",
		FileHash:         utils.HashString("%PDF-1.7 agreement"),
		SelfSignOnly:     selfSign,
		Client:           client,
	})
	require.NoError(t, err)
	return d
}

func (e *env) addSigner(t *testing.T, docID, email, name string, order int) *model.Signer {
	t.Helper()
	s, err := e.docs.AddSigner(context.Background(), e.owner.ID, docID, SignerInput{Email: email, Name: name, OrderIndex: &order}, client)
	require.NoError(t, err)
	return s
}

func (e *env) addSignatureField(t *testing.T, docID string, signerID *string) *model.Field {
	t.Helper()
	f, err := e.docs.AddField(context.Background(), e.owner.ID, docID, FieldInput{
		FieldType: model.FieldSignature, Page: 1, X: 10, Y: 700, Width: 200, Height: 50, SignerID: signerID,
	}, client)
	require.NoError(t, err)
	return f
}

func (e *env) assertChain(t *testing.T, docID string) {
	t.Helper()
	ok, err := e.ledger.VerifyChain(context.Background(), docID)
	require.NoError(t, err)
	assert.True(t, ok, "audit chain must verify")
}

func (e *env) countAction(t *testing.T, docID string, action model.AuditAction) int {
	t.Helper()
	entries, err := e.ledger.EntriesFor(context.Background(), docID)
	require.NoError(t, err)
	n := 0
	for _, en := range entries {
		if en.Action == action {
			n++
		}
	}
	return n
}

func sign(fieldID string) SubmitInput {
	return SubmitInput{
		Signatures: []SignatureSubmission{{FieldID: fieldID, Data: "data:image/png;base64,iVBORw0KGgo=" + fieldID}},
		Client:     client,
	}
}

func TestTwoSignerScenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	d := e.createDocument(t, false)
	e.assertChain(t, d.ID)
	s1 := e.addSigner(t, d.ID, "alice@example.com", "Alice", 0)
	s2 := e.addSigner(t, d.ID, "bob@example.com", "Bob", 1)
	f1 := e.addSignatureField(t, d.ID, &s1.ID)
	f2 := e.addSignatureField(t, d.ID, &s2.ID)
	e.assertChain(t, d.ID)

	sent, err := e.docs.Send(ctx, e.owner.ID, d.ID, client)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentPending, sent.Document.Status)
	assert.Equal(t, 2, sent.Document.TotalSigners)
	assert.Len(t, sent.Signers, 2)
	e.assertChain(t, d.ID)

	res, err := e.signing.Submit(ctx, s1.AccessToken, sign(f1.ID))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.DocumentCompleted)
	assert.Equal(t, model.SignerSigned, res.Signer.Status)
	assert.Equal(t, 1, res.Document.CompletedSigners)
	assert.Equal(t, model.DocumentPending, res.Document.Status)
	e.assertChain(t, d.ID)

	res, err = e.signing.Submit(ctx, s2.AccessToken, sign(f2.ID))
	require.NoError(t, err)
	assert.True(t, res.DocumentCompleted)
	assert.Equal(t, 2, res.Document.CompletedSigners)
	assert.Equal(t, model.DocumentCompleted, res.Document.Status)
	require.NotNil(t, res.Document.CompletedAt)
	assert.Equal(t, 1, e.countAction(t, d.ID, model.ActionDocumentCompleted))
	e.assertChain(t, d.ID)

	cert, err := e.certs.GenerateCertificate(ctx, e.owner.ID, d.ID)
	require.NoError(t, err)
	require.Len(t, cert.Signers, 2)
	for _, cs := range cert.Signers {
		assert.NotEmpty(t, cs.SignatureHash)
		assert.Equal(t, client.IP, cs.IPAddress)
	}
	assert.Equal(t, "Alice", cert.Signers[0].Name)
	assert.True(t, VerifyCertificate(*cert))
	assert.Equal(t, 1, e.countAction(t, d.ID, model.ActionCertificateGenerated))
	e.assertChain(t, d.ID)
}

func TestConcurrentFinalSignersCompleteOnce(t *testing.T) {
	const signers = 6
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			e := b.open(t)
			ctx := context.Background()

			d := e.createDocument(t, false)
			type job struct{ token, field string }
			jobs := make([]job, 0, signers)
			for i := 0; i < signers; i++ {
				s := e.addSigner(t, d.ID, fmt.Sprintf("signer%d@example.com", i), fmt.Sprintf("Signer %d", i), i)
				f := e.addSignatureField(t, d.ID, &s.ID)
				jobs = append(jobs, job{s.AccessToken, f.ID})
			}
			_, err := e.docs.Send(ctx, e.owner.ID, d.ID, client)
			require.NoError(t, err)

			var wg sync.WaitGroup
			var completions, failures atomic.Int32
			start := make(chan struct{})
			for _, j := range jobs {
				wg.Add(1)
				go func(j job) {
					defer wg.Done()
					<-start
					res, err := e.signing.Submit(ctx, j.token, sign(j.field))
					if err != nil {
						t.Logf("submit failed: %v", err)
						failures.Add(1)
						return
					}
					if res.DocumentCompleted {
						completions.Add(1)
					}
				}(j)
			}
			close(start)
			wg.Wait()

			assert.Equal(t, int32(0), failures.Load())
			assert.Equal(t, int32(1), completions.Load())
			got, err := e.store.Documents.GetByID(ctx, d.ID)
			require.NoError(t, err)
			assert.Equal(t, signers, got.CompletedSigners)
			assert.Equal(t, model.DocumentCompleted, got.Status)
			assert.Equal(t, 1, e.countAction(t, d.ID, model.ActionDocumentCompleted))
			assert.Equal(t, signers, e.countAction(t, d.ID, model.ActionSignerSigned))
			e.assertChain(t, d.ID)
		})
	}
}

func TestSubmitRejections(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	d := e.createDocument(t, false)
	s1 := e.addSigner(t, d.ID, "alice@example.com", "Alice", 0)
	s2 := e.addSigner(t, d.ID, "bob@example.com", "Bob", 1)
	f1 := e.addSignatureField(t, d.ID, &s1.ID)
	open := e.addSignatureField(t, d.ID, nil)

	_, err := e.signing.Submit(ctx, s1.AccessToken, sign(f1.ID))
	assert.ErrorIs(t, err, ErrDocumentNotSent)

	_, err = e.docs.Send(ctx, e.owner.ID, d.ID, client)
	require.NoError(t, err)

	_, err = e.signing.Submit(ctx, "not-a-token", sign(f1.ID))
	assert.ErrorIs(t, err, ErrSignerNotFound)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.signing.Submit(ctx, s2.AccessToken, sign(f1.ID))
	assert.ErrorIs(t, err, ErrFieldNotAssigned)
	assert.ErrorIs(t, err, ErrOwnershipViolation)

	_, err = e.signing.Submit(ctx, s2.AccessToken, sign("no-such-field"))
	assert.ErrorIs(t, err, ErrFieldNotInDocument)

	_, err = e.signing.Submit(ctx, s2.AccessToken, SubmitInput{Signatures: []SignatureSubmission{{FieldID: open.ID}}})
	assert.ErrorIs(t, err, ErrValidation)

	// Rejected submissions leave no trace.
	got, err := e.store.Documents.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CompletedSigners)
	assert.Equal(t, 0, e.countAction(t, d.ID, model.ActionSignatureApplied))

	res, err := e.signing.Submit(ctx, s2.AccessToken, sign(open.ID))
	require.NoError(t, err)
	assert.False(t, res.DocumentCompleted)

	_, err = e.signing.Submit(ctx, s2.AccessToken, sign(open.ID))
	assert.ErrorIs(t, err, ErrAlreadySigned)
	assert.ErrorIs(t, err, ErrLifecycleViolation)

	_, err = e.signing.Submit(ctx, s1.AccessToken, SubmitInput{
		Signatures: []SignatureSubmission{{FieldID: f1.ID, Data: "x"}, {FieldID: open.ID, Data: "y"}},
	})
	assert.ErrorIs(t, err, ErrFieldAlreadySigned)
	e.assertChain(t, d.ID)
}

func TestDeclineBlocksLaterSigning(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	d := e.createDocument(t, false)
	s1 := e.addSigner(t, d.ID, "alice@example.com", "Alice", 0)
	e.addSigner(t, d.ID, "bob@example.com", "Bob", 1)
	f1 := e.addSignatureField(t, d.ID, &s1.ID)
	_, err := e.docs.Send(ctx, e.owner.ID, d.ID, client)
	require.NoError(t, err)

	reason := "  wrong counterparty "
	require.NoError(t, e.signing.Decline(ctx, s1.AccessToken, &reason, client))

	signer, err := e.store.Signers.GetByID(ctx, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SignerDeclined, signer.Status)
	require.NotNil(t, signer.DeclineReason)
	assert.Equal(t, "wrong counterparty", *signer.DeclineReason)

	_, err = e.signing.Submit(ctx, s1.AccessToken, sign(f1.ID))
	assert.ErrorIs(t, err, ErrSignerDeclined)
	assert.ErrorIs(t, e.signing.Decline(ctx, s1.AccessToken, nil, client), ErrSignerDeclined)

	got, err := e.store.Documents.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentPending, got.Status)
	assert.Equal(t, 0, got.CompletedSigners)
	e.assertChain(t, d.ID)
}

func TestVoidScenarios(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	t.Run("completed document cannot be voided", func(t *testing.T) {
		d := e.createDocument(t, false)
		s := e.addSigner(t, d.ID, "alice@example.com", "Alice", 0)
		f := e.addSignatureField(t, d.ID, &s.ID)
		_, err := e.docs.Send(ctx, e.owner.ID, d.ID, client)
		require.NoError(t, err)
		_, err = e.signing.Submit(ctx, s.AccessToken, sign(f.ID))
		require.NoError(t, err)

		_, err = e.docs.Void(ctx, e.owner.ID, d.ID, client)
		assert.ErrorIs(t, err, ErrDocumentCompleted)
		assert.ErrorIs(t, err, ErrLifecycleViolation)
		assert.ErrorIs(t, e.docs.DeleteDocument(ctx, e.owner.ID, d.ID), ErrCannotDelete)
	})

	t.Run("voided pending document rejects signing", func(t *testing.T) {
		d := e.createDocument(t, false)
		s1 := e.addSigner(t, d.ID, "alice@example.com", "Alice", 0)
		s2 := e.addSigner(t, d.ID, "bob@example.com", "Bob", 1)
		f := e.addSignatureField(t, d.ID, nil)
		_, err := e.docs.Send(ctx, e.owner.ID, d.ID, client)
		require.NoError(t, err)

		voided, err := e.docs.Void(ctx, e.owner.ID, d.ID, client)
		require.NoError(t, err)
		assert.Equal(t, model.DocumentVoided, voided.Status)

		for _, s := range []*model.Signer{s1, s2} {
			_, err = e.signing.Submit(ctx, s.AccessToken, sign(f.ID))
			assert.ErrorIs(t, err, ErrDocumentVoided)
		}
		_, err = e.signing.OpenSession(ctx, s1.AccessToken, client)
		assert.ErrorIs(t, err, ErrDocumentVoided)
		_, err = e.docs.Void(ctx, e.owner.ID, d.ID, client)
		assert.ErrorIs(t, err, ErrDocumentVoided)
		e.assertChain(t, d.ID)
	})

	t.Run("other owners see not found", func(t *testing.T) {
		d := e.createDocument(t, false)
		_, err := e.docs.Void(ctx, "someone-else", d.ID, client)
		assert.ErrorIs(t, err, ErrDocumentNotFound)
	})
}

func TestDraftOnlyMutations(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	d := e.createDocument(t, false)
	_, err := e.docs.Send(ctx, e.owner.ID, d.ID, client)
	assert.ErrorIs(t, err, ErrNoSigners)

	s := e.addSigner(t, d.ID, "alice@example.com", "Alice", 0)
	f := e.addSignatureField(t, d.ID, &s.ID)
	_, err = e.docs.Send(ctx, e.owner.ID, d.ID, client)
	require.NoError(t, err)

	_, err = e.docs.AddSigner(ctx, e.owner.ID, d.ID, SignerInput{Email: "bob@example.com", Name: "Bob"}, client)
	assert.ErrorIs(t, err, ErrNotDraft)
	_, err = e.docs.AddField(ctx, e.owner.ID, d.ID, FieldInput{FieldType: model.FieldText, Page: 1, Width: 1, Height: 1}, client)
	assert.ErrorIs(t, err, ErrNotDraft)
	page := 2
	_, err = e.docs.UpdateField(ctx, e.owner.ID, d.ID, f.ID, FieldPatch{Page: &page}, client)
	assert.ErrorIs(t, err, ErrNotDraft)
	assert.ErrorIs(t, e.docs.DeleteField(ctx, e.owner.ID, d.ID, f.ID, client), ErrNotDraft)
	assert.ErrorIs(t, e.docs.RemoveSigner(ctx, e.owner.ID, d.ID, s.ID, client), ErrNotDraft)
	e.assertChain(t, d.ID)
}

func TestSignerRegistryMaintainsTotals(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	d := e.createDocument(t, false)
	s1 := e.addSigner(t, d.ID, "Alice@Example.com", "Alice", 0)
	s2 := e.addSigner(t, d.ID, "bob@example.com", "Bob", 1)
	assert.Equal(t, "alice@example.com", s1.Email)
	assert.Len(t, s1.AccessToken, 64)
	assert.NotEqual(t, s1.AccessToken, s2.AccessToken)

	f := e.addSignatureField(t, d.ID, &s2.ID)

	got, err := e.store.Documents.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalSigners)

	require.NoError(t, e.docs.RemoveSigner(ctx, e.owner.ID, d.ID, s2.ID, client))
	got, err = e.store.Documents.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalSigners)

	fields, err := e.docs.ListFields(ctx, e.owner.ID, d.ID)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, f.ID, fields[0].ID)
	assert.Nil(t, fields[0].SignerID)

	_, err = e.docs.AddSigner(ctx, e.owner.ID, d.ID, SignerInput{Email: "not-an-email", Name: "X"}, client)
	assert.ErrorIs(t, err, ErrValidation)

	other := e.createDocument(t, false)
	_, err = e.docs.AddField(ctx, e.owner.ID, other.ID, FieldInput{
		FieldType: model.FieldSignature, Page: 1, Width: 10, Height: 10, SignerID: &s1.ID,
	}, client)
	assert.ErrorIs(t, err, ErrSignerNotInDocument)
	e.assertChain(t, d.ID)
}

func TestUpdateFieldPatch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	d := e.createDocument(t, false)
	s := e.addSigner(t, d.ID, "alice@example.com", "Alice", 0)
	f := e.addSignatureField(t, d.ID, &s.ID)
	assert.Equal(t, model.DefaultFontSize, f.FontSize)
	assert.Equal(t, model.DefaultFontFamily, f.FontFamily)

	x, size := 42.5, 14
	got, err := e.docs.UpdateField(ctx, e.owner.ID, d.ID, f.ID, FieldPatch{X: &x, FontSize: &size, ClearSigner: true}, client)
	require.NoError(t, err)
	assert.Equal(t, 42.5, got.X)
	assert.Equal(t, 14, got.FontSize)
	assert.Nil(t, got.SignerID)

	bad := 0.0
	_, err = e.docs.UpdateField(ctx, e.owner.ID, d.ID, f.ID, FieldPatch{Width: &bad}, client)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.docs.UpdateField(ctx, e.owner.ID, d.ID, "missing", FieldPatch{X: &x}, client)
	assert.ErrorIs(t, err, ErrFieldNotFound)

	require.NoError(t, e.docs.DeleteField(ctx, e.owner.ID, d.ID, f.ID, client))
	assert.ErrorIs(t, e.docs.DeleteField(ctx, e.owner.ID, d.ID, f.ID, client), ErrFieldNotFound)
	assert.Equal(t, 1, e.countAction(t, d.ID, model.ActionFieldUpdated))
	e.assertChain(t, d.ID)
}

func TestSelfSignDocument(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	d := e.createDocument(t, true)
	_, err := e.docs.AddSigner(ctx, e.owner.ID, d.ID, SignerInput{Email: "bob@example.com", Name: "Bob"}, client)
	assert.ErrorIs(t, err, ErrSelfSignOnly)
	f := e.addSignatureField(t, d.ID, nil)

	sent, err := e.docs.Send(ctx, e.owner.ID, d.ID, client)
	require.NoError(t, err)
	require.Len(t, sent.Signers, 1)
	assert.Equal(t, e.owner.Email, sent.Signers[0].Email)
	assert.Equal(t, 1, sent.Document.TotalSigners)

	res, err := e.signing.Submit(ctx, sent.Signers[0].AccessToken, sign(f.ID))
	require.NoError(t, err)
	assert.True(t, res.DocumentCompleted)
	e.assertChain(t, d.ID)
}

func TestOpenSessionMarksViewedOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	d := e.createDocument(t, false)
	s1 := e.addSigner(t, d.ID, "alice@example.com", "Alice", 0)
	s2 := e.addSigner(t, d.ID, "bob@example.com", "Bob", 1)
	e.addSignatureField(t, d.ID, &s1.ID)
	e.addSignatureField(t, d.ID, &s2.ID)
	e.addSignatureField(t, d.ID, nil)

	_, err := e.signing.OpenSession(ctx, s1.AccessToken, client)
	assert.ErrorIs(t, err, ErrDocumentNotSent)

	_, err = e.docs.Send(ctx, e.owner.ID, d.ID, client)
	require.NoError(t, err)

	sess, err := e.signing.OpenSession(ctx, s1.AccessToken, client)
	require.NoError(t, err)
	assert.Equal(t, model.SignerViewed, sess.Signer.Status)
	assert.Len(t, sess.Fields, 2)

	_, err = e.signing.OpenSession(ctx, s1.AccessToken, client)
	require.NoError(t, err)
	assert.Equal(t, 1, e.countAction(t, d.ID, model.ActionSignerViewed))

	_, err = e.signing.RecordDocumentView(ctx, s1.AccessToken, client)
	require.NoError(t, err)
	assert.Equal(t, 1, e.countAction(t, d.ID, model.ActionDocumentViewed))
	e.assertChain(t, d.ID)
}

func TestMarkEmailSent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	d := e.createDocument(t, false)
	s := e.addSigner(t, d.ID, "alice@example.com", "Alice", 0)
	_, err := e.docs.Send(ctx, e.owner.ID, d.ID, client)
	require.NoError(t, err)

	require.NoError(t, e.docs.MarkEmailSent(ctx, s.ID))
	got, err := e.store.Signers.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SignerSent, got.Status)
	assert.NotNil(t, got.EmailSentAt)
	assert.ErrorIs(t, e.docs.MarkEmailSent(ctx, "missing"), ErrSignerNotFound)
	e.assertChain(t, d.ID)
}

func TestExpireOverdue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := repository.NewStore(db, database.DialectSQLite)
	log := testutil.Logger(t)
	now := time.Now().UTC()
	clock := func() time.Time { return now }
	opts := Options{Now: clock}
	ledger := NewLedger(store, log, opts)
	docs := NewDocumentService(store, ledger, log, opts)
	signing := NewSigningService(store, ledger, log, opts)
	owner := testutil.CreateOwner(t, db, "owner@example.com")
	ctx := context.Background()

	expires := now.Add(time.Hour)
	d, err := docs.CreateDocument(ctx, CreateDocumentInput{
		OwnerID: owner.ID, Title: "NDA", OriginalFilename: "nda.pdf",
		FileHash: utils.HashString("nda"), ExpiresAt: &expires,
	})
	require.NoError(t, err)
	s, err := docs.AddSigner(ctx, owner.ID, d.ID, SignerInput{Email: "a@example.com", Name: "A"}, ClientInfo{})
	require.NoError(t, err)
	_, err = docs.Send(ctx, owner.ID, d.ID, ClientInfo{})
	require.NoError(t, err)

	n, err := docs.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	now = now.Add(2 * time.Hour)
	n, err = docs.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Documents.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentExpired, got.Status)

	_, err = signing.Submit(ctx, s.AccessToken, SubmitInput{})
	assert.ErrorIs(t, err, ErrDocumentExpired)

	ok, err := ledger.VerifyChain(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCertificateRequiresCompletion(t *testing.T) {
	e := newEnv(t)
	d := e.createDocument(t, false)
	_, err := e.certs.GenerateCertificate(context.Background(), e.owner.ID, d.ID)
	assert.ErrorIs(t, err, ErrNotCompleted)
	_, err = e.certs.GenerateCertificate(context.Background(), "intruder", d.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestCertificateRegeneration(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	d := e.createDocument(t, false)
	s := e.addSigner(t, d.ID, "alice@example.com", "Alice", 0)
	f := e.addSignatureField(t, d.ID, &s.ID)
	_, err := e.docs.Send(ctx, e.owner.ID, d.ID, client)
	require.NoError(t, err)
	_, err = e.signing.Submit(ctx, s.AccessToken, sign(f.ID))
	require.NoError(t, err)

	first, err := e.certs.GenerateCertificate(ctx, e.owner.ID, d.ID)
	require.NoError(t, err)
	second, err := e.certs.GenerateCertificate(ctx, e.owner.ID, d.ID)
	require.NoError(t, err)

	assert.NotEqual(t, first.CertificateHash, second.CertificateHash)
	assert.Equal(t, first.Signers, second.Signers)
	assert.Equal(t, first.AuditTrail, second.AuditTrail[:len(first.AuditTrail)])
	assert.Equal(t, 2, e.countAction(t, d.ID, model.ActionCertificateGenerated))

	actors := map[string]string{}
	for _, en := range first.AuditTrail {
		actors[en.Action] = en.Actor
	}
	assert.Equal(t, e.owner.Label(), actors[string(model.ActionDocumentCreated)])
	assert.Equal(t, "Alice (alice@example.com)", actors[string(model.ActionSignerSigned)])
	assert.Equal(t, "System", actors[string(model.ActionDocumentCompleted)])

	tampered := *first
	tampered.DocumentHash = utils.HashString("other bytes")
	assert.False(t, VerifyCertificate(tampered))
}

func TestSubmitRollsBackWhenSigningFails(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	d := e.createDocument(t, false)
	s := e.addSigner(t, d.ID, "alice@example.com", "Alice", 0)
	f := e.addSignatureField(t, d.ID, &s.ID)
	text, err := e.docs.AddField(ctx, e.owner.ID, d.ID, FieldInput{
		FieldType: model.FieldText, Page: 1, X: 10, Y: 600, Width: 200, Height: 20,
	}, client)
	require.NoError(t, err)
	_, err = e.docs.Send(ctx, e.owner.ID, d.ID, client)
	require.NoError(t, err)

	before, err := e.ledger.EntriesFor(ctx, d.ID)
	require.NoError(t, err)

	// Fail the write that follows the signature insert and the field value.
	_, err = e.store.DB.ExecContext(ctx, `CREATE TRIGGER abort_signed BEFORE UPDATE OF status ON signers
		WHEN NEW.status = 'signed' BEGIN SELECT RAISE(ABORT, 'signer update rejected'); END`)
	require.NoError(t, err)

	in := sign(f.ID)
	in.FieldValues = []FieldValueSubmission{{FieldID: text.ID, Value: "ACME Corp"}}
	_, err = e.signing.Submit(ctx, s.AccessToken, in)
	assert.ErrorContains(t, err, "signer update rejected")

	var signatures int
	require.NoError(t, e.store.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM signatures WHERE document_id = ?`, d.ID).Scan(&signatures))
	assert.Zero(t, signatures)

	after, err := e.ledger.EntriesFor(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, after, len(before))

	got, err := e.store.Documents.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CompletedSigners)
	assert.Equal(t, model.DocumentPending, got.Status)

	signer, err := e.store.Signers.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.NotEqual(t, model.SignerSigned, signer.Status)
	assert.Nil(t, signer.SignedAt)

	fields, err := e.docs.ListFields(ctx, e.owner.ID, d.ID)
	require.NoError(t, err)
	for _, fl := range fields {
		assert.Nil(t, fl.Value, "field %s", fl.ID)
	}
	e.assertChain(t, d.ID)

	_, err = e.store.DB.ExecContext(ctx, `DROP TRIGGER abort_signed`)
	require.NoError(t, err)
	res, err := e.signing.Submit(ctx, s.AccessToken, in)
	require.NoError(t, err)
	assert.True(t, res.DocumentCompleted)
	e.assertChain(t, d.ID)
}

func TestDefaultOrderAfterRemoval(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	d := e.createDocument(t, false)

	add := func(email, name string) *model.Signer {
		s, err := e.docs.AddSigner(ctx, e.owner.ID, d.ID, SignerInput{Email: email, Name: name}, client)
		require.NoError(t, err)
		return s
	}
	a := add("alice@example.com", "Alice")
	b := add("bob@example.com", "Bob")
	assert.Equal(t, 0, a.OrderIndex)
	assert.Equal(t, 1, b.OrderIndex)

	require.NoError(t, e.docs.RemoveSigner(ctx, e.owner.ID, d.ID, a.ID, client))
	c := add("carol@example.com", "Carol")
	assert.Equal(t, 2, c.OrderIndex)

	signers, err := e.store.Signers.ListByDocument(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, signers, 2)
	assert.Equal(t, b.ID, signers[0].ID)
	assert.Equal(t, c.ID, signers[1].ID)

	got, err := e.store.Documents.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalSigners)
}

func TestDeadlineEnforcedBeforeSweep(t *testing.T) {
	db := testutil.SetupTestDB(t)
	now := time.Now().UTC()
	e := newEnvOn(t, db, database.DialectSQLite, testutil.CreateOwner(t, db, "owner@example.com"))
	log := testutil.Logger(t)
	opts := Options{Now: func() time.Time { return now }}
	e.ledger = NewLedger(e.store, log, opts)
	e.docs = NewDocumentService(e.store, e.ledger, log, opts)
	e.signing = NewSigningService(e.store, e.ledger, log, opts)
	ctx := context.Background()

	expires := now.Add(time.Hour)
	d, err := e.docs.CreateDocument(ctx, CreateDocumentInput{
		OwnerID: e.owner.ID, Title: "Lease", OriginalFilename: "lease.pdf",
		FileHash: utils.HashString("lease"), ExpiresAt: &expires, Client: client,
	})
	require.NoError(t, err)
	s := e.addSigner(t, d.ID, "alice@example.com", "Alice", 0)
	f := e.addSignatureField(t, d.ID, &s.ID)
	_, err = e.docs.Send(ctx, e.owner.ID, d.ID, client)
	require.NoError(t, err)

	_, err = e.signing.OpenSession(ctx, s.AccessToken, client)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)

	_, err = e.signing.OpenSession(ctx, s.AccessToken, client)
	assert.ErrorIs(t, err, ErrDocumentExpired)
	_, err = e.signing.Submit(ctx, s.AccessToken, sign(f.ID))
	assert.ErrorIs(t, err, ErrDocumentExpired)
	assert.ErrorIs(t, err, ErrLifecycleViolation)

	got, err := e.store.Documents.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentPending, got.Status)
	assert.Equal(t, 0, got.CompletedSigners)
	assert.Equal(t, 0, e.countAction(t, d.ID, model.ActionSignatureApplied))

	// The sweep then records the expiry.
	n, err := e.docs.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	e.assertChain(t, d.ID)
}
