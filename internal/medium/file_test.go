package medium_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkvault/inkvault/internal/medium"
	"github.com/inkvault/inkvault/pkg/fs"
)

func Test_File_Lays_Out_Slots_As_JSON_Files(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	m, err := medium.OpenFile(medium.FileOptions{Root: root})
	require.NoError(t, err)
	defer m.Close()

	ctx := t.Context()

	require.NoError(t, m.Write(ctx, "notes", []byte(`[]`)))
	require.NoError(t, m.Write(ctx, "backups/notes-20260101T000000.000000000Z", []byte(`{}`)))
	require.NoError(t, m.Write(ctx, "quarantine/notes-20260101T000000.000000000Z", []byte(`garbage`)))
	require.NoError(t, m.Write(ctx, "metadata", []byte(`{"entries":[]}`)))

	for _, rel := range []string{
		"notes.json",
		"backups/notes-20260101T000000.000000000Z.json",
		"quarantine/notes-20260101T000000.000000000Z.json",
		"metadata.json",
	} {
		_, err := os.Stat(filepath.Join(root, rel))
		require.NoError(t, err, "expected %s on disk", rel)
	}

	blob, err := os.ReadFile(filepath.Join(root, "notes.json"))
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(blob))
}

func Test_File_Rejects_Second_Engine_On_Same_Root(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	first, err := medium.OpenFile(medium.FileOptions{Root: root})
	require.NoError(t, err)

	_, err = medium.OpenFile(medium.FileOptions{Root: root})
	require.ErrorIs(t, err, medium.ErrLocked)

	require.NoError(t, first.Close())

	second, err := medium.OpenFile(medium.FileOptions{Root: root})
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func Test_File_DisableLock_Allows_Concurrent_Open(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	locked, err := medium.OpenFile(medium.FileOptions{Root: root})
	require.NoError(t, err)
	defer locked.Close()

	require.NoError(t, locked.Write(t.Context(), "notes", []byte(`["live"]`)))

	// Forensics-style read-only access while the vault is open.
	reader, err := medium.OpenFile(medium.FileOptions{Root: root, DisableLock: true})
	require.NoError(t, err)
	defer reader.Close()

	blob, err := reader.Read(t.Context(), "notes")
	require.NoError(t, err)
	assert.Equal(t, `["live"]`, string(blob))
}

func Test_File_List_Ignores_Lock_And_Temp_Files(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	m, err := medium.OpenFile(medium.FileOptions{Root: root})
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Write(t.Context(), "notes", []byte(`[]`)))

	// Simulate atomic-writer leftovers and stray dotfiles.
	require.NoError(t, os.WriteFile(filepath.Join(root, ".notes.json.tmp-7"), []byte(`x`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".DS_Store"), []byte(`x`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.txt"), []byte(`not a slot`), 0o600))

	got, err := m.List(t.Context(), "")
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"notes"}, got); diff != "" {
		t.Fatalf("list mismatch (-want +got):\n%s", diff)
	}
}

func Test_File_Read_IO_Failure_Is_Not_Mistaken_For_Missing_Slot(t *testing.T) {
	t.Parallel()

	flaky := fs.NewFlaky(fs.NewReal())

	m, err := medium.OpenFile(medium.FileOptions{Root: t.TempDir(), FS: flaky})
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Write(t.Context(), "notes", []byte(`[]`)))

	injected := errors.New("injected io error")
	flaky.Break(fs.OpReadFile, "notes.json", injected)

	_, err = m.Read(t.Context(), "notes")
	require.ErrorIs(t, err, injected)
	require.NotErrorIs(t, err, medium.ErrSlotNotExist)
}

func Test_File_Write_Failure_Leaves_Previous_Blob_Intact(t *testing.T) {
	t.Parallel()

	flaky := fs.NewFlaky(fs.NewReal())

	m, err := medium.OpenFile(medium.FileOptions{Root: t.TempDir(), FS: flaky})
	require.NoError(t, err)
	defer m.Close()

	ctx := t.Context()

	require.NoError(t, m.Write(ctx, "notes", []byte(`["old"]`)))

	flaky.Break(fs.OpSync, ".tmp-", errors.New("disk full"))

	err = m.Write(ctx, "notes", []byte(`["new"]`))
	require.Error(t, err)

	flaky.Reset()

	blob, err := m.Read(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, `["old"]`, string(blob))
}

func Test_File_Close_Is_Idempotent(t *testing.T) {
	t.Parallel()

	m, err := medium.OpenFile(medium.FileOptions{Root: t.TempDir()})
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}
