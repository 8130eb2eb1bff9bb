package vault_test

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkvault/inkvault/internal/backup"
	"github.com/inkvault/inkvault/internal/document"
	"github.com/inkvault/inkvault/internal/medium"
	"github.com/inkvault/inkvault/internal/testutil"
	"github.com/inkvault/inkvault/internal/vault"
	"github.com/inkvault/inkvault/pkg/fs"
)

// newEngine opens an engine on a fresh in-memory medium with a frozen
// clock. Pass opts to override; zero fields keep the fixture defaults.
func newEngine(t *testing.T, opts vault.Options) (*vault.Engine, medium.Medium, *testutil.Clock) {
	t.Helper()

	clock := testutil.NewClock()

	if opts.Medium == nil {
		opts.Medium = medium.NewMemory()
	}

	if opts.Clock == nil {
		opts.Clock = clock.Now
	}

	e, err := vault.Open(t.Context(), opts)
	require.NoError(t, err)

	t.Cleanup(func() { _ = e.Close() })

	return e, opts.Medium, clock
}

func sampleNotes(ids ...string) document.Notes {
	notes := make(document.Notes, 0, len(ids))

	for _, id := range ids {
		notes = append(notes, document.Note{
			ID:        id,
			Title:     "note " + id,
			CreatedAt: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
			UpdatedAt: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		})
	}

	return notes
}

func loadNotes(t *testing.T, e *vault.Engine) document.Notes {
	t.Helper()

	doc, err := e.Load(t.Context(), document.KeyNotes)
	require.NoError(t, err)

	notes, ok := doc.(document.Notes)
	require.True(t, ok, "expected document.Notes, got %T", doc)

	return notes
}

// backupPayloads reads the raw backup envelopes for key off the medium,
// oldest first.
func backupPayloads(t *testing.T, m medium.Medium, key document.Key) [][]byte {
	t.Helper()

	ctx := t.Context()

	slots, err := m.List(ctx, "backups/"+string(key)+"-")
	require.NoError(t, err)

	payloads := make([][]byte, 0, len(slots))

	for _, slot := range slots {
		blob, err := m.Read(ctx, slot)
		require.NoError(t, err)

		var rec backup.Record
		require.NoError(t, json.Unmarshal(blob, &rec))

		payloads = append(payloads, rec.Payload)
	}

	return payloads
}

func auditActions(e *vault.Engine) []vault.AuditAction {
	entries := e.AuditTail(0)

	actions := make([]vault.AuditAction, 0, len(entries))
	for _, entry := range entries {
		actions = append(actions, entry.Action)
	}

	return actions
}

func Test_Open_Requires_Medium(t *testing.T) {
	t.Parallel()

	_, err := vault.Open(t.Context(), vault.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Medium")
}

func Test_Save_Then_Load_Round_Trips(t *testing.T) {
	t.Parallel()

	e, _, _ := newEngine(t, vault.Options{})
	ctx := t.Context()

	want := sampleNotes("1", "2")
	require.NoError(t, e.Save(ctx, want))

	got := loadNotes(t, e)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("loaded notes differ (-want +got):\n%s", diff)
	}
}

func Test_Load_Returns_Type_Default_When_Missing(t *testing.T) {
	t.Parallel()

	e, _, _ := newEngine(t, vault.Options{})
	ctx := t.Context()

	for _, key := range document.Keys() {
		doc, err := e.Load(ctx, key)
		require.NoError(t, err, "key %s", key)

		if diff := cmp.Diff(document.Default(key), doc); diff != "" {
			t.Fatalf("default for %s differs (-want +got):\n%s", key, diff)
		}
	}
}

func Test_Load_Rejects_Unknown_Key(t *testing.T) {
	t.Parallel()

	e, _, _ := newEngine(t, vault.Options{})

	_, err := e.Load(t.Context(), document.Key("scratch"))
	require.ErrorIs(t, err, document.ErrUnknownKey)
}

func Test_Save_Rejects_Invalid_Document_And_Keeps_Current(t *testing.T) {
	t.Parallel()

	e, _, _ := newEngine(t, vault.Options{})
	ctx := t.Context()

	require.NoError(t, e.Save(ctx, document.TagColors{"work": "#FF0000"}))

	err := e.Save(ctx, document.TagColors{"work": "notacolor"})
	require.ErrorIs(t, err, document.ErrSchema)

	doc, err := e.Load(ctx, document.KeyTagColors)
	require.NoError(t, err)
	assert.Equal(t, document.TagColors{"work": "#FF0000"}, doc)
}

func Test_Failed_Write_Still_Appends_An_Audit_Entry(t *testing.T) {
	t.Parallel()

	flaky := fs.NewFlaky(fs.NewReal())

	m, err := medium.OpenFile(medium.FileOptions{Root: t.TempDir(), FS: flaky})
	require.NoError(t, err)

	e, _, _ := newEngine(t, vault.Options{Medium: m})

	flaky.Break(fs.OpRename, "notes", errors.New("injected: rename"))

	err = e.Save(t.Context(), sampleNotes("1"))
	require.ErrorIs(t, err, vault.ErrWrite)

	entries := e.AuditTail(0)
	require.Len(t, entries, 1)
	assert.Equal(t, vault.AuditSaved, entries[0].Action)
	assert.Equal(t, document.KeyNotes, entries[0].Key)
	assert.Contains(t, entries[0].Detail["error"], "injected")
}

func Test_First_Save_Snapshots_The_Saved_Document(t *testing.T) {
	t.Parallel()

	e, mem, _ := newEngine(t, vault.Options{})
	ctx := t.Context()

	want := sampleNotes("1")
	require.NoError(t, e.Save(ctx, want))

	payloads := backupPayloads(t, mem, document.KeyNotes)
	require.Len(t, payloads, 1, "a single save must leave a restorable record")

	doc, err := document.Decode(document.KeyNotes, payloads[0])
	require.NoError(t, err)

	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("snapshot payload differs (-want +got):\n%s", diff)
	}
}

func Test_Save_Backs_Up_Previous_Contents_Before_Overwrite(t *testing.T) {
	t.Parallel()

	e, mem, clock := newEngine(t, vault.Options{})
	ctx := t.Context()

	first := sampleNotes("1")
	require.NoError(t, e.Save(ctx, first))

	clock.Advance(10 * time.Second)
	require.NoError(t, e.Save(ctx, sampleNotes("1", "2")))

	payloads := backupPayloads(t, mem, document.KeyNotes)
	require.Len(t, payloads, 2)

	// The newest record holds what the overwrite replaced.
	doc, err := document.Decode(document.KeyNotes, payloads[len(payloads)-1])
	require.NoError(t, err)

	if diff := cmp.Diff(first, doc); diff != "" {
		t.Fatalf("pre-overwrite backup differs (-want +got):\n%s", diff)
	}
}

func Test_Rapid_Saves_Produce_At_Most_One_New_Backup(t *testing.T) {
	t.Parallel()

	e, mem, clock := newEngine(t, vault.Options{})
	ctx := t.Context()

	require.NoError(t, e.Save(ctx, sampleNotes("1")))

	clock.Advance(2 * time.Second)
	require.NoError(t, e.Save(ctx, sampleNotes("2")))

	assert.Len(t, backupPayloads(t, mem, document.KeyNotes), 1,
		"second save inside the window must not add a backup")

	clock.Advance(6 * time.Second)
	require.NoError(t, e.Save(ctx, sampleNotes("3")))

	payloads := backupPayloads(t, mem, document.KeyNotes)
	require.Len(t, payloads, 2)

	doc, err := document.Decode(document.KeyNotes, payloads[len(payloads)-1])
	require.NoError(t, err)
	assert.Equal(t, sampleNotes("2"), doc)
}

func Test_Backup_Retention_Keeps_The_Newest(t *testing.T) {
	t.Parallel()

	e, mem, clock := newEngine(t, vault.Options{
		MaxBackups:      3,
		BackupRateLimit: -1,
	})
	ctx := t.Context()

	for _, id := range []string{"1", "2", "3", "4", "5"} {
		clock.Advance(time.Second)
		require.NoError(t, e.Save(ctx, sampleNotes(id)))
	}

	payloads := backupPayloads(t, mem, document.KeyNotes)
	require.Len(t, payloads, 3)

	// Saves snapshot the prior contents, so the retained records are the
	// pre-overwrite states of saves 3..5.
	for i, wantID := range []string{"2", "3", "4"} {
		doc, err := document.Decode(document.KeyNotes, payloads[i])
		require.NoError(t, err)
		assert.Equal(t, sampleNotes(wantID), doc, "payload %d", i)
	}
}

func Test_Delete_Backs_Up_Then_Removes(t *testing.T) {
	t.Parallel()

	e, mem, _ := newEngine(t, vault.Options{})
	ctx := t.Context()

	final := sampleNotes("1")
	require.NoError(t, e.Save(ctx, final))
	require.NoError(t, e.Delete(ctx, document.KeyNotes))

	// Gone from the primary slot, present in the retention set.
	assert.Empty(t, loadNotes(t, e))

	payloads := backupPayloads(t, mem, document.KeyNotes)
	require.NotEmpty(t, payloads)

	doc, err := document.Decode(document.KeyNotes, payloads[len(payloads)-1])
	require.NoError(t, err)
	assert.Equal(t, final, doc)
}

func Test_Delete_Missing_Key_Reports_NotFound(t *testing.T) {
	t.Parallel()

	e, _, _ := newEngine(t, vault.Options{})

	err := e.Delete(t.Context(), document.KeyNotes)
	require.ErrorIs(t, err, vault.ErrNotFound)
}

func Test_Delete_Bypasses_The_Backup_Rate_Limit(t *testing.T) {
	t.Parallel()

	e, mem, clock := newEngine(t, vault.Options{})
	ctx := t.Context()

	require.NoError(t, e.Save(ctx, sampleNotes("1")))

	clock.Advance(time.Second)

	final := sampleNotes("1", "2")
	require.NoError(t, e.Save(ctx, final))
	require.NoError(t, e.Delete(ctx, document.KeyNotes))

	// The save's snapshot was suppressed by the window; the delete's
	// must not be, or the final contents would be lost.
	payloads := backupPayloads(t, mem, document.KeyNotes)
	require.Len(t, payloads, 2)

	doc, err := document.Decode(document.KeyNotes, payloads[len(payloads)-1])
	require.NoError(t, err)
	assert.Equal(t, final, doc)
}

func Test_Operations_After_Close_Report_ErrClosed(t *testing.T) {
	t.Parallel()

	e, _, _ := newEngine(t, vault.Options{})
	ctx := t.Context()

	require.NoError(t, e.Close())
	require.NoError(t, e.Close(), "close must be idempotent")

	_, err := e.Load(ctx, document.KeyNotes)
	require.ErrorIs(t, err, vault.ErrClosed)

	require.ErrorIs(t, e.Save(ctx, sampleNotes("1")), vault.ErrClosed)
	require.ErrorIs(t, e.Delete(ctx, document.KeyNotes), vault.ErrClosed)

	_, err = e.Validate(ctx)
	require.ErrorIs(t, err, vault.ErrClosed)

	_, err = e.Recover(ctx, document.KeyNotes, vault.DefaultRecoverOptions())
	require.ErrorIs(t, err, vault.ErrClosed)

	_, err = e.ListBackups(ctx, document.KeyNotes)
	require.ErrorIs(t, err, vault.ErrClosed)

	_, err = e.RestoreLatestBackup(ctx, document.KeyNotes)
	require.ErrorIs(t, err, vault.ErrClosed)

	_, err = e.Watch(ctx)
	require.ErrorIs(t, err, vault.ErrClosed)
}

func Test_Audit_Records_Saves_And_Deletes(t *testing.T) {
	t.Parallel()

	e, _, _ := newEngine(t, vault.Options{})
	ctx := t.Context()

	require.NoError(t, e.Save(ctx, sampleNotes("1")))
	require.NoError(t, e.Save(ctx, document.Settings{"theme": "dark"}))
	require.NoError(t, e.Delete(ctx, document.KeyNotes))

	entries := e.AuditTail(0)
	require.Len(t, entries, 3)

	assert.Equal(t, vault.AuditSaved, entries[0].Action)
	assert.Equal(t, document.KeyNotes, entries[0].Key)
	assert.Equal(t, vault.AuditSaved, entries[1].Action)
	assert.Equal(t, document.KeySettings, entries[1].Key)
	assert.Equal(t, vault.AuditDeleted, entries[2].Action)
	assert.Equal(t, document.KeyNotes, entries[2].Key)

	for _, entry := range entries {
		assert.NotEmpty(t, entry.ID)
		assert.False(t, entry.Timestamp.IsZero())
	}
}

func Test_Audit_Trims_Oldest_Beyond_Cap(t *testing.T) {
	t.Parallel()

	e, _, clock := newEngine(t, vault.Options{MaxAuditEntries: 5})
	ctx := t.Context()

	for range 8 {
		clock.Advance(10 * time.Second)
		require.NoError(t, e.Save(ctx, document.Settings{"theme": "dark"}))
	}

	entries := e.AuditTail(0)
	require.Len(t, entries, 5)

	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].Timestamp.Before(entries[i-1].Timestamp),
			"entries must stay in append order")
	}

	assert.Len(t, e.AuditTail(2), 2)
	assert.Len(t, e.AuditTail(100), 5)
}

func Test_Audit_Survives_Restart(t *testing.T) {
	t.Parallel()

	mem := medium.NewMemory()
	ctx := t.Context()

	first, err := vault.Open(ctx, vault.Options{Medium: mem})
	require.NoError(t, err)

	require.NoError(t, first.Save(ctx, sampleNotes("1")))
	require.NoError(t, first.Delete(ctx, document.KeyNotes))
	require.NoError(t, first.Close())

	second, err := vault.Open(ctx, vault.Options{Medium: mem})
	require.NoError(t, err)

	defer func() { _ = second.Close() }()

	assert.Equal(t, []vault.AuditAction{vault.AuditSaved, vault.AuditDeleted}, auditActions(second))
}

func Test_Audit_Resets_When_Metadata_Is_Corrupt(t *testing.T) {
	t.Parallel()

	mem := medium.NewMemory()
	ctx := t.Context()

	require.NoError(t, mem.Write(ctx, "metadata", []byte(`{"entries": [broken`)))

	e, err := vault.Open(ctx, vault.Options{Medium: mem})
	require.NoError(t, err, "a corrupt trail must not block the engine")

	defer func() { _ = e.Close() }()

	assert.Empty(t, e.AuditTail(0))

	// The trail works again after the reset.
	require.NoError(t, e.Save(ctx, sampleNotes("1")))
	assert.Len(t, e.AuditTail(0), 1)
}

func Test_Concurrent_Saves_To_Distinct_Keys(t *testing.T) {
	t.Parallel()

	e, _, _ := newEngine(t, vault.Options{})
	ctx := t.Context()

	docs := []document.Doc{
		sampleNotes("1", "2"),
		document.Notebooks{{ID: "nb1", Name: "inbox"}},
		document.Settings{"theme": "dark"},
		document.TagColors{"work": "#00FF00"},
	}

	var wg sync.WaitGroup

	for _, doc := range docs {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 10 {
				if err := e.Save(ctx, doc); err != nil {
					t.Errorf("save %s: %v", doc.Key(), err)

					return
				}
			}
		}()
	}

	wg.Wait()

	for _, want := range docs {
		got, err := e.Load(ctx, want.Key())
		require.NoError(t, err)

		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("%s differs after concurrent saves (-want +got):\n%s", want.Key(), diff)
		}
	}
}
