package writeback

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile_CreatesNew(t *testing.T) {
	for _, atomic := range []bool{true, false} {
		fs := memfs.New()
		require.NoError(t, WriteFile(fs, "/index.ts", []byte("export * from './a';"), Options{Atomic: atomic}))

		got, err := util.ReadFile(fs, "/index.ts")
		require.NoError(t, err)
		assert.Equal(t, "export * from './a';", string(got))
	}
}

func TestWriteFile_ReplacesShorterContent(t *testing.T) {
	for _, atomic := range []bool{true, false} {
		fs := memfs.New()
		require.NoError(t, util.WriteFile(fs, "/index.ts", []byte("export * from './a';\nexport * from './b';\n"), 0o644))

		require.NoError(t, WriteFile(fs, "/index.ts", []byte("x"), Options{Atomic: atomic}))

		got, err := util.ReadFile(fs, "/index.ts")
		require.NoError(t, err)
		assert.Equal(t, "x", string(got))
	}
}

func TestWriteFile_AtomicLeavesNoTempFiles(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, WriteFile(fs, "/index.ts", []byte("a"), Options{Atomic: true}))
	require.NoError(t, WriteFile(fs, "/index.ts", []byte("b"), Options{Atomic: true}))

	entries, err := fs.ReadDir("/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "index.ts", entries[0].Name())
}

func TestWriteFile_PreservesPermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.ts")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))
	require.NoError(t, os.Chmod(path, 0o600))

	fs := osfs.New(dir)
	require.NoError(t, WriteFile(fs, "index.ts", []byte("new"), Options{Atomic: true}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

// renameFailFS refuses renames so the atomic path has to clean up.
type renameFailFS struct {
	billy.Filesystem
}

var errRename = errors.New("rename refused")

func (f renameFailFS) Rename(_, _ string) error { return errRename }

func TestWriteFile_AtomicFailureKeepsOriginal(t *testing.T) {
	mem := memfs.New()
	require.NoError(t, util.WriteFile(mem, "/index.ts", []byte("original"), 0o644))

	err := WriteFile(renameFailFS{mem}, "/index.ts", []byte("new"), Options{Atomic: true})
	require.ErrorIs(t, err, errRename)

	got, err := util.ReadFile(mem, "/index.ts")
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))

	entries, err := mem.ReadDir("/")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be removed")
}

func TestIsTempFile(t *testing.T) {
	assert.True(t, IsTempFile(".modgate-abc123"))
	assert.False(t, IsTempFile(".modgate-"))
	assert.False(t, IsTempFile("index.ts"))
	assert.False(t, IsTempFile(".modgate.yaml"))
}

func TestIsTempFile_RequiresPrefix(t *testing.T) {
	assert.False(t, IsTempFile("x.modgate-abc"))
	assert.True(t, IsTempFile(TempPrefix+"z"))
}
