package fs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/inkvault/inkvault/pkg/fs"
)

func Test_Real_Exists_Distinguishes_Present_And_Absent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "x.json")

	fsys := fs.NewReal()

	ok, err := fsys.Exists(path)
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v, want (false, nil) before create", ok, err)
	}

	seedFile(t, path, `{}`)

	ok, err = fsys.Exists(path)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v, want (true, nil) after create", ok, err)
	}
}

func Test_Real_ReadFile_Reports_NotExist(t *testing.T) {
	t.Parallel()

	fsys := fs.NewReal()

	_, err := fsys.ReadFile(filepath.Join(t.TempDir(), "missing.json"))
	if !os.IsNotExist(err) {
		t.Fatalf("err=%v, want not-exist", err)
	}
}
