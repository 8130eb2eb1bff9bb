package vault_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkvault/inkvault/internal/document"
	"github.com/inkvault/inkvault/internal/medium"
	"github.com/inkvault/inkvault/internal/vault"
	"github.com/inkvault/inkvault/pkg/fs"
)

func Test_Load_With_AutoRecover_Restores_From_Backup(t *testing.T) {
	t.Parallel()

	e, mem, _ := newEngine(t, vault.Options{AutoRecover: true})
	ctx := t.Context()

	want := sampleNotes("1")
	require.NoError(t, e.Save(ctx, want))

	// Corrupt the stored blob behind the engine's back.
	require.NoError(t, mem.Write(ctx, "notes", []byte(`{invalid`)))

	got := loadNotes(t, e)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("recovered notes differ (-want +got):\n%s", diff)
	}

	assert.Contains(t, auditActions(e), vault.AuditRecoverySucceeded)
}

func Test_Load_Without_AutoRecover_Surfaces_Corruption(t *testing.T) {
	t.Parallel()

	e, mem, _ := newEngine(t, vault.Options{})
	ctx := t.Context()

	require.NoError(t, mem.Write(ctx, "notes", []byte(`{invalid`)))

	_, err := e.Load(ctx, document.KeyNotes)
	require.ErrorIs(t, err, document.ErrSyntax)

	// The blob stays as it was; surfacing is not mutating.
	blob, err := mem.Read(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{invalid`), blob)
}

func Test_Recover_Repairs_Mechanical_Damage_In_Place(t *testing.T) {
	t.Parallel()

	e, mem, _ := newEngine(t, vault.Options{})
	ctx := t.Context()

	require.NoError(t, mem.Write(ctx, "tag-colors", []byte(`{"work": "#FF0000",}`)))

	out, err := e.Recover(ctx, document.KeyTagColors, vault.DefaultRecoverOptions())
	require.NoError(t, err)

	assert.Equal(t, vault.StateRecovered, out.State)
	assert.Equal(t, vault.MethodRepair, out.Method)
	assert.NotEmpty(t, out.Run)

	doc, err := e.Load(ctx, document.KeyTagColors)
	require.NoError(t, err)
	assert.Equal(t, document.TagColors{"work": "#FF0000"}, doc)

	// The pre-repair blob was preserved in the retention set.
	infos, err := e.ListBackups(ctx, document.KeyTagColors)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.False(t, infos[0].Damaged)
}

func Test_Recover_Restores_Newest_Decodable_Backup(t *testing.T) {
	t.Parallel()

	e, mem, clock := newEngine(t, vault.Options{})
	ctx := t.Context()

	want := sampleNotes("1")
	require.NoError(t, e.Save(ctx, want))

	clock.Advance(10 * time.Second)
	require.NoError(t, e.Save(ctx, sampleNotes("1", "2")))

	// Damage beyond what heuristics can fix.
	require.NoError(t, mem.Write(ctx, "notes", []byte(`%%% not json at all`)))

	out, err := e.Recover(ctx, document.KeyNotes, vault.DefaultRecoverOptions())
	require.NoError(t, err)

	assert.Equal(t, vault.StateRecovered, out.State)
	assert.Equal(t, vault.MethodBackup, out.Method)
	assert.Contains(t, out.Detail, "restored backup from")

	// The forced snapshot of the corrupted blob is digest-valid but not
	// decodable, so restore must have skipped past it.
	got := loadNotes(t, e)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("restored notes differ (-want +got):\n%s", diff)
	}
}

func Test_Recover_Quarantines_And_Defaults_As_Last_Resort(t *testing.T) {
	t.Parallel()

	e, mem, _ := newEngine(t, vault.Options{})
	ctx := t.Context()

	corrupted := []byte(`%%% beyond repair`)
	require.NoError(t, mem.Write(ctx, "notes", corrupted))

	out, err := e.Recover(ctx, document.KeyNotes, vault.DefaultRecoverOptions())
	require.NoError(t, err, "a lost document is not an engine failure")

	assert.Equal(t, vault.StateUnrecoverable, out.State)
	assert.Equal(t, vault.MethodDefault, out.Method)
	assert.Contains(t, out.Detail, "quarantined as ")

	// The key loads again, empty.
	assert.Empty(t, loadNotes(t, e))

	// The corrupted bytes survive verbatim for forensics.
	quarantined, err := e.Quarantined(ctx, document.KeyNotes)
	require.NoError(t, err)
	require.Len(t, quarantined, 1)
	assert.Equal(t, len(corrupted), quarantined[0].Size)

	blob, err := e.QuarantinedBlob(ctx, quarantined[0].Slot)
	require.NoError(t, err)
	assert.Equal(t, corrupted, blob)

	assert.Contains(t, auditActions(e), vault.AuditRecoveryFailed)
}

func Test_Recover_Healthy_Key_Is_A_Noop(t *testing.T) {
	t.Parallel()

	e, mem, _ := newEngine(t, vault.Options{})
	ctx := t.Context()

	require.NoError(t, e.Save(ctx, sampleNotes("1")))

	before, err := mem.Read(ctx, "notes")
	require.NoError(t, err)

	out, err := e.Recover(ctx, document.KeyNotes, vault.DefaultRecoverOptions())
	require.NoError(t, err)

	assert.Equal(t, vault.StateRecovered, out.State)
	assert.Equal(t, vault.MethodNone, out.Method)

	after, err := mem.Read(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, before, after, "a noop recovery must not rewrite the document")
}

func Test_Recover_Missing_Key_Is_A_Noop(t *testing.T) {
	t.Parallel()

	e, _, _ := newEngine(t, vault.Options{})

	out, err := e.Recover(t.Context(), document.KeyNotebooks, vault.DefaultRecoverOptions())
	require.NoError(t, err)

	assert.Equal(t, vault.StateRecovered, out.State)
	assert.Equal(t, vault.MethodNone, out.Method)
}

func Test_Recover_Leaves_Corruption_When_Clearing_Disabled(t *testing.T) {
	t.Parallel()

	e, mem, _ := newEngine(t, vault.Options{})
	ctx := t.Context()

	corrupted := []byte(`%%% beyond repair`)
	require.NoError(t, mem.Write(ctx, "notes", corrupted))

	opts := vault.DefaultRecoverOptions()
	opts.ClearCorrupted = false

	out, err := e.Recover(ctx, document.KeyNotes, opts)
	require.NoError(t, err)

	assert.Equal(t, vault.StateUnrecoverable, out.State)
	assert.Empty(t, out.Method, "no stage may claim a run that changed nothing")

	blob, err := mem.Read(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, corrupted, blob)

	_, err = e.Load(ctx, document.KeyNotes)
	require.ErrorIs(t, err, document.ErrSyntax)
}

func Test_Recover_Skips_Quarantine_When_Preserve_Disabled(t *testing.T) {
	t.Parallel()

	e, mem, _ := newEngine(t, vault.Options{})
	ctx := t.Context()

	require.NoError(t, mem.Write(ctx, "notes", []byte(`%%%`)))

	opts := vault.DefaultRecoverOptions()
	opts.PreserveUserData = false

	out, err := e.Recover(ctx, document.KeyNotes, opts)
	require.NoError(t, err)

	assert.Equal(t, vault.StateUnrecoverable, out.State)
	assert.Equal(t, vault.MethodDefault, out.Method)

	quarantined, err := e.Quarantined(ctx, document.KeyNotes)
	require.NoError(t, err)
	assert.Empty(t, quarantined)
}

func Test_Recover_Rejects_Unknown_Key(t *testing.T) {
	t.Parallel()

	e, _, _ := newEngine(t, vault.Options{})

	_, err := e.Recover(t.Context(), document.Key("bogus"), vault.DefaultRecoverOptions())
	require.ErrorIs(t, err, document.ErrUnknownKey)
}

func Test_Recover_Surfaces_Unreachable_Medium(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("disk on fire")

	flaky := fs.NewFlaky(fs.NewReal())

	m, err := medium.OpenFile(medium.FileOptions{Root: t.TempDir(), FS: flaky})
	require.NoError(t, err)

	t.Cleanup(func() { _ = m.Close() })

	e, _, _ := newEngine(t, vault.Options{Medium: m})
	ctx := t.Context()

	require.NoError(t, e.Save(ctx, sampleNotes("1")))

	flaky.Break(fs.OpReadFile, "notes.json", errBoom)

	out, err := e.Recover(ctx, document.KeyNotes, vault.DefaultRecoverOptions())
	require.ErrorIs(t, err, errBoom)

	assert.Equal(t, vault.StateUnrecoverable, out.State)
	assert.Contains(t, auditActions(e), vault.AuditRecoveryFailed)
}

func Test_Recovery_Always_Leaves_The_Key_Loadable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		blob string
	}{
		{name: "truncated json", blob: `{invalid`},
		{name: "binary garbage", blob: "\x00\x01\x02\xff"},
		{name: "missing required field", blob: `[{"id": "", "title": "x"}]`},
		{name: "object where array expected", blob: `{"a": 1}`},
		{name: "null root", blob: `null`},
		{name: "bare number", blob: `42`},
		{name: "bare string", blob: `"not a collection"`},
		{name: "empty blob", blob: ``},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			e, mem, _ := newEngine(t, vault.Options{})
			ctx := t.Context()

			require.NoError(t, mem.Write(ctx, "notes", []byte(tc.blob)))

			_, err := e.Recover(ctx, document.KeyNotes, vault.DefaultRecoverOptions())
			require.NoError(t, err)

			_, err = e.Load(ctx, document.KeyNotes)
			require.NoError(t, err, "key must load after recovery")
		})
	}
}

func Test_RestoreLatestBackup_Reinstates_The_Newest_Valid(t *testing.T) {
	t.Parallel()

	e, _, clock := newEngine(t, vault.Options{})
	ctx := t.Context()

	want := sampleNotes("1")
	require.NoError(t, e.Save(ctx, want))

	clock.Advance(10 * time.Second)
	require.NoError(t, e.Save(ctx, sampleNotes("1", "2")))

	ok, err := e.RestoreLatestBackup(ctx, document.KeyNotes)
	require.NoError(t, err)
	require.True(t, ok)

	got := loadNotes(t, e)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("restored notes differ (-want +got):\n%s", diff)
	}
}

func Test_RestoreLatestBackup_Without_Backups_Reports_False(t *testing.T) {
	t.Parallel()

	e, _, _ := newEngine(t, vault.Options{})

	ok, err := e.RestoreLatestBackup(t.Context(), document.KeyNotebooks)
	require.NoError(t, err)
	assert.False(t, ok)
}
