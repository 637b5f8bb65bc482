package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memledger "github.com/bankfeedhq/camt54-sync-backend/internal/adapters/ledger/memory"
	"github.com/bankfeedhq/camt54-sync-backend/internal/application/reconcile"
	"github.com/bankfeedhq/camt54-sync-backend/internal/domain/ledger"
	"github.com/bankfeedhq/camt54-sync-backend/internal/domain/recon"
	"github.com/bankfeedhq/camt54-sync-backend/internal/events"
	"github.com/bankfeedhq/camt54-sync-backend/internal/infrastructure/config"
	"github.com/bankfeedhq/camt54-sync-backend/internal/infrastructure/storage"
)

const sampleNotification = `<?xml version="1.0" encoding="UTF-8"?>
<Document xmlns="urn:iso:std:iso:20022:tech:xsd:camt.054.001.02">
  <BkToCstmrDbtCdtNtfctn>
    <GrpHdr><MsgId>MSG-1</MsgId></GrpHdr>
    <Ntfctn>
      <Id>NTFCTN-1</Id>
      <Acct><Id><IBAN>CH9300762011623852957</IBAN></Id></Acct>
      <Ntry>
        <Amt Ccy="CHF">150.00</Amt>
        <CdtDbtInd>DBIT</CdtDbtInd>
        <BookgDt><Dt>2024-03-07</Dt></BookgDt>
        <NtryDtls>
          <TxDtls>
            <RmtInf><Strd><CdtrRefInf><Ref>INV-2024-001</Ref></CdtrRefInf></Strd></RmtInf>
            <RltdPties><Cdtr><Nm>Acme Supplies AG</Nm></Cdtr></RltdPties>
          </TxDtls>
        </NtryDtls>
      </Ntry>
      <Ntry>
        <Amt Ccy="CHF">42.50</Amt>
        <CdtDbtInd>CRDT</CdtDbtInd>
        <BookgDt><Dt>2024-03-08</Dt></BookgDt>
        <NtryDtls>
          <TxDtls>
            <RmtInf><Ustrd>Rent March</Ustrd></RmtInf>
            <RltdPties><Dbtr><Nm>Jane Tenant</Nm></Dbtr></RltdPties>
          </TxDtls>
        </NtryDtls>
      </Ntry>
    </Ntfctn>
  </BkToCstmrDbtCdtNtfctn>
</Document>`

// capturingPublisher records published events for assertions.
type capturingPublisher struct {
	events []events.FileProcessed
}

func (p *capturingPublisher) Publish(_ string, event any) error {
	p.events = append(p.events, event.(events.FileProcessed))
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func newTestRepo(t *testing.T) storage.Repository {
	t.Helper()
	repo, err := storage.New(filepath.Join(t.TempDir(), "importer.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestConfig(t *testing.T) config.ImportConfig {
	t.Helper()
	base := t.TempDir()
	return config.ImportConfig{
		Name:            "main-account",
		Active:          true,
		WatchFolder:     filepath.Join(base, "watch"),
		ProcessedFolder: filepath.Join(base, "processed"),
		ErrorFolder:     filepath.Join(base, "error"),
		JournalID:       "BANK1",
		CompanyID:       "acme",
		FilePattern:     "*.xml",
		ReconcileMethod: recon.StrategySmartMatch,
	}
}

func writeWatchFile(t *testing.T, cfg config.ImportConfig, name, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(cfg.WatchFolder, 0o755))
	path := filepath.Join(cfg.WatchFolder, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestProcessFileSuccess(t *testing.T) {
	repo := newTestRepo(t)
	pub := &capturingPublisher{}
	imp := New(repo, nil, pub, nil)

	cfg := newTestConfig(t)
	path := writeWatchFile(t, cfg, "notification.xml", sampleNotification)

	require.NoError(t, imp.ProcessFile(context.Background(), cfg, path))

	logs, err := repo.ListImportLogs(context.Background(), storage.LogFilters{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, storage.StateSuccess, logs[0].State)
	assert.Equal(t, 1, logs[0].StatementsCreated)
	assert.Equal(t, 2, logs[0].TransactionsImported)
	assert.Equal(t, 0, logs[0].TransactionsReconciled)

	// The input moved to the processed folder.
	assert.NoFileExists(t, path)
	assert.FileExists(t, filepath.Join(cfg.ProcessedFolder, "notification.xml"))

	require.Len(t, pub.events, 1)
	assert.Equal(t, storage.StateSuccess, pub.events[0].State)
	assert.Equal(t, 2, pub.events[0].TransactionsImported)
}

func TestProcessFileWithAutoReconcile(t *testing.T) {
	repo := newTestRepo(t)

	store := memledger.NewStore()
	store.AddDocument(ledger.Document{
		ID:            "doc-1",
		Reference:     "INV-2024-001",
		Status:        ledger.DocumentPosted,
		PaymentStatus: ledger.PaymentNotPaid,
		CompanyID:     "acme",
		Lines: []ledger.OpenLedgerEntry{{
			ID:          "entry-1",
			AccountType: ledger.AccountPayable,
			Residual:    decimal.RequireFromString("150.00"),
			DocumentID:  "doc-1",
			CompanyID:   "acme",
		}},
	})

	matcher := recon.NewMatcher(store, store)
	orch := reconcile.NewOrchestrator(matcher, repo, nil)
	imp := New(repo, orch, nil, nil)

	cfg := newTestConfig(t)
	cfg.AutoReconcile = true
	path := writeWatchFile(t, cfg, "notification.xml", sampleNotification)

	require.NoError(t, imp.ProcessFile(context.Background(), cfg, path))

	logs, err := repo.ListImportLogs(context.Background(), storage.LogFilters{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 1, logs[0].TransactionsReconciled, "debit should match the invoice by reference")

	_, linked := store.LinkedLine("entry-1")
	assert.True(t, linked)
}

func TestProcessFileNotCAMT054(t *testing.T) {
	repo := newTestRepo(t)
	imp := New(repo, nil, nil, nil)

	cfg := newTestConfig(t)
	path := writeWatchFile(t, cfg, "payment.xml", `<Document><CstmrCdtTrfInitn/></Document>`)

	err := imp.ProcessFile(context.Background(), cfg, path)
	assert.Error(t, err)

	logs, lerr := repo.ListImportLogs(context.Background(), storage.LogFilters{})
	require.NoError(t, lerr)
	require.Len(t, logs, 1)
	assert.Equal(t, storage.StateError, logs[0].State)
	assert.NotEmpty(t, logs[0].ErrorDetails)

	// Failed input moved to the error folder.
	assert.NoFileExists(t, path)
	assert.FileExists(t, filepath.Join(cfg.ErrorFolder, "payment.xml"))
}

func TestProcessFileDeleteAfterProcessing(t *testing.T) {
	repo := newTestRepo(t)
	imp := New(repo, nil, nil, nil)

	cfg := newTestConfig(t)
	cfg.DeleteAfterProcessing = true
	path := writeWatchFile(t, cfg, "notification.xml", sampleNotification)

	require.NoError(t, imp.ProcessFile(context.Background(), cfg, path))
	assert.NoFileExists(t, path)
	assert.NoFileExists(t, filepath.Join(cfg.ProcessedFolder, "notification.xml"))
}

func TestProcessConfigurationIsolatesFailures(t *testing.T) {
	repo := newTestRepo(t)
	imp := New(repo, nil, nil, nil)

	cfg := newTestConfig(t)
	writeWatchFile(t, cfg, "good.xml", sampleNotification)
	writeWatchFile(t, cfg, "bad.xml", `not xml at all`)
	writeWatchFile(t, cfg, "ignored.txt", `does not match the pattern`)

	result, err := imp.ProcessConfiguration(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, result.FilesFound)
	assert.Equal(t, 1, result.FilesProcessed)
	assert.Equal(t, 1, result.FilesFailed)
}

func TestProcessConfigurationSubfolders(t *testing.T) {
	repo := newTestRepo(t)
	imp := New(repo, nil, nil, nil)

	cfg := newTestConfig(t)
	cfg.ProcessSubfolders = true
	writeWatchFile(t, cfg, "top.xml", sampleNotification)
	sub := filepath.Join(cfg.WatchFolder, "2026", "08")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "nested.xml"), []byte(sampleNotification), 0o644))

	result, err := imp.ProcessConfiguration(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, result.FilesFound)
	assert.Equal(t, 2, result.FilesProcessed)
}

func TestProcessConfigurationInactive(t *testing.T) {
	repo := newTestRepo(t)
	imp := New(repo, nil, nil, nil)

	cfg := newTestConfig(t)
	cfg.Active = false
	writeWatchFile(t, cfg, "notification.xml", sampleNotification)

	result, err := imp.ProcessConfiguration(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, result.FilesFound)
}

func TestProcessConfigurationMissingWatchFolder(t *testing.T) {
	repo := newTestRepo(t)
	imp := New(repo, nil, nil, nil)

	cfg := newTestConfig(t)
	cfg.WatchFolder = filepath.Join(t.TempDir(), "does-not-exist")

	_, err := imp.ProcessConfiguration(context.Background(), cfg)
	assert.Error(t, err)
}

func TestRetry(t *testing.T) {
	repo := newTestRepo(t)
	imp := New(repo, nil, nil, nil)

	cfg := newTestConfig(t)
	path := writeWatchFile(t, cfg, "flaky.xml", `broken`)

	require.Error(t, imp.ProcessFile(context.Background(), cfg, path))

	logs, err := repo.ListImportLogs(context.Background(), storage.LogFilters{State: storage.StateError})
	require.NoError(t, err)
	require.Len(t, logs, 1)

	// Fix the file in the error folder, then retry.
	errPath := filepath.Join(cfg.ErrorFolder, "flaky.xml")
	require.NoError(t, os.WriteFile(errPath, []byte(sampleNotification), 0o644))

	require.NoError(t, imp.Retry(context.Background(), cfg, logs[0].ID))

	succeeded, err := repo.ListImportLogs(context.Background(), storage.LogFilters{State: storage.StateSuccess})
	require.NoError(t, err)
	assert.Len(t, succeeded, 1)
}

func TestRetryRejectsNonErrorLog(t *testing.T) {
	repo := newTestRepo(t)
	imp := New(repo, nil, nil, nil)

	cfg := newTestConfig(t)
	path := writeWatchFile(t, cfg, "notification.xml", sampleNotification)
	require.NoError(t, imp.ProcessFile(context.Background(), cfg, path))

	logs, err := repo.ListImportLogs(context.Background(), storage.LogFilters{})
	require.NoError(t, err)
	require.Len(t, logs, 1)

	assert.Error(t, imp.Retry(context.Background(), cfg, logs[0].ID))
}
