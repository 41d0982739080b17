package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sage/core/report"
	"sage/core/spec"
)

func sampleRecord(casilla string) *ExecutionRecord {
	result := report.New()
	result.Append(report.Event{
		RuleName:  "monto_positivo",
		Severity:  spec.SeverityError,
		Scope:     report.ScopeRow,
		CatalogID: "ventas",
		RowIndex:  report.Row(0),
	})
	result.Finish()
	return NewRecord(result, casilla, "sftp")
}

func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	record := sampleRecord("casilla-1")
	require.NoError(t, store.Save(ctx, record))

	// Saving the same execution twice must fail
	err := store.Save(ctx, sampleRecordWithID(record.ID))
	require.Error(t, err)

	got, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, "casilla-1", got.Casilla)
	assert.Equal(t, report.StatusFailed, got.Status)
	assert.Equal(t, 1, got.Errors)
	require.Len(t, got.Result.Events, 1)
	assert.Equal(t, "monto_positivo", got.Result.Events[0].RuleName)

	_, err = store.Get(ctx, "no-such-id")
	assert.Error(t, err)

	other := sampleRecord("casilla-2")
	require.NoError(t, store.Save(ctx, other))

	listed, err := store.List(ctx, "casilla-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, record.ID, listed[0].ID)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, store.Close())
}

func sampleRecordWithID(id string) *ExecutionRecord {
	r := sampleRecord("casilla-1")
	r.ID = id
	return r
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	runStoreContract(t, store)
}

func TestFileStorePersistsAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewFileStore(dir)
	require.NoError(t, err)
	record := sampleRecord("casilla-1")
	require.NoError(t, first.Save(ctx, record))
	require.NoError(t, first.Close())

	second, err := NewFileStore(dir)
	require.NoError(t, err)
	got, err := second.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.Errors, got.Errors)
}

func TestOpenBackends(t *testing.T) {
	mem, err := Open(BackendMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, mem)

	file, err := Open(BackendFile, t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, file)

	_, err = Open("redis", "")
	assert.Error(t, err)
}

func TestSaveAssignsID(t *testing.T) {
	store := NewMemoryStore()
	record := sampleRecord("c")
	record.ID = ""
	require.NoError(t, store.Save(context.Background(), record))
	assert.NotEmpty(t, record.ID)
}
