package gateway

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/modgate/internal/config"
	"github.com/agentic-research/modgate/internal/module"
	"github.com/agentic-research/modgate/internal/syntax"
)

func newTestSyncer(t *testing.T, fs billy.Filesystem) *Syncer {
	t.Helper()
	cfg := config.Default()
	cfg.LineEnding = config.LineEndingLF
	e, err := NewEngine(cfg, nil)
	require.NoError(t, err)
	return e.Syncer(fs, "/work")
}

func seed(t *testing.T, fs billy.Filesystem, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, util.WriteFile(fs, name, []byte(content), 0o644))
	}
}

func readGateway(t *testing.T, fs billy.Filesystem) string {
	t.Helper()
	data, err := util.ReadFile(fs, "/index.ts")
	require.NoError(t, err)
	return string(data)
}

func TestSync_Example1_CreatesGateway(t *testing.T) {
	fs := memfs.New()
	seed(t, fs, map[string]string{"/a.ts": "export function a() {}"})

	res, err := newTestSyncer(t, fs).Sync(context.Background(), false)
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.True(t, res.Changed)
	assert.Equal(t, filepath.Join("/work", "index.ts"), res.Path)
	assert.Equal(t, "export * from './a';", readGateway(t, fs))
}

func TestSync_Example2_AppendsMissing(t *testing.T) {
	fs := memfs.New()
	seed(t, fs, map[string]string{
		"/a.ts":     "export const a = 1;",
		"/b.ts":     "export const b = 2;",
		"/index.ts": "export * from './a';\n",
	})

	res, err := newTestSyncer(t, fs).Sync(context.Background(), false)
	require.NoError(t, err)

	assert.False(t, res.Created)
	assert.Equal(t, []string{"./b"}, res.Added)
	assert.Equal(t, "export * from './a';\nexport * from './b';\n", readGateway(t, fs))
}

func TestSync_Example3_DirectoryModuleSkipsExportCheck(t *testing.T) {
	fs := memfs.New()
	seed(t, fs, map[string]string{"/widgets/index.ts": "// nothing exported yet\n"})

	_, err := newTestSyncer(t, fs).Sync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "export * from './widgets';", readGateway(t, fs))
}

func TestSync_Example4_ZeroExportFileExcluded(t *testing.T) {
	fs := memfs.New()
	seed(t, fs, map[string]string{
		"/utils.ts": "const a = 1;\nlet b = a + 1;\n",
		"/api.ts":   "export const api = {};",
	})

	_, err := newTestSyncer(t, fs).Sync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "export * from './api';", readGateway(t, fs))
}

func TestSync_Idempotent(t *testing.T) {
	fs := memfs.New()
	seed(t, fs, map[string]string{
		"/a.ts":             "export const a = 1;",
		"/b.tsx":            "export const B = () => <b />;",
		"/widgets/index.ts": "export {};",
	})
	s := newTestSyncer(t, fs)

	_, err := s.Sync(context.Background(), false)
	require.NoError(t, err)
	first := readGateway(t, fs)

	res, err := s.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Empty(t, res.Added)
	assert.Equal(t, first, readGateway(t, fs))
}

func TestSync_Completeness(t *testing.T) {
	fs := memfs.New()
	seed(t, fs, map[string]string{
		"/a.ts":             "export const a = 1;",
		"/b.js":             "export default 1;",
		"/c.jsx":            "export const C = () => <c />;",
		"/d.tsx":            "export type D = string;",
		"/none.ts":          "const x = 1;",
		"/index.tsx":        "export const x = 1;",
		"/widgets/index.ts": "",
		"/nested/deep.ts":   "export const deep = 1;",
		"/index.ts":         "export * from './legacy';\n",
	})

	_, err := newTestSyncer(t, fs).Sync(context.Background(), false)
	require.NoError(t, err)

	tree, err := syntax.NewParser().ParseGateway(context.Background(), "index.ts", []byte(readGateway(t, fs)))
	require.NoError(t, err)
	got := tree.ReExportSpecifiers()
	sort.Strings(got)
	assert.Equal(t, []string{"./a", "./b", "./c", "./d", "./legacy", "./widgets"}, got)
}

func TestSync_NonDestructive(t *testing.T) {
	fs := memfs.New()
	existing := "// Public surface\nimport './polyfills';\nexport * from './a';\n\nexport const VERSION = '2.0';\n/* end */\n"
	seed(t, fs, map[string]string{
		"/a.ts":     "export const a = 1;",
		"/b.ts":     "export const b = 1;",
		"/index.ts": existing,
	})

	_, err := newTestSyncer(t, fs).Sync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t,
		"// Public surface\nimport './polyfills';\nexport * from './a';\nexport * from './b';\n\nexport const VERSION = '2.0';\n/* end */\n",
		readGateway(t, fs))
}

func TestSync_DryRunDoesNotWrite(t *testing.T) {
	fs := memfs.New()
	seed(t, fs, map[string]string{"/a.ts": "export const a = 1;"})

	res, err := newTestSyncer(t, fs).Sync(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "export * from './a';", string(res.Content))

	_, err = fs.Stat("/index.ts")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSync_MalformedGatewayAbortsWithoutWrite(t *testing.T) {
	fs := memfs.New()
	broken := "export * from './a'\nexport {\n"
	seed(t, fs, map[string]string{
		"/a.ts":     "export const a = 1;",
		"/b.ts":     "export const b = 1;",
		"/index.ts": broken,
	})

	_, err := newTestSyncer(t, fs).Sync(context.Background(), false)
	var ve *syntax.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, broken, readGateway(t, fs))
}

func TestSync_CollisionAbortsWithoutWrite(t *testing.T) {
	fs := memfs.New()
	seed(t, fs, map[string]string{
		"/foo.ts": "export const a = 1;",
		"/foo.js": "export const a = 1;",
	})

	_, err := newTestSyncer(t, fs).Sync(context.Background(), false)
	var ce *module.CollisionError
	require.ErrorAs(t, err, &ce)

	_, err = fs.Stat("/index.ts")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// readFailFS fails reads of one file.
type readFailFS struct {
	billy.Filesystem
	name string
}

var errRead = errors.New("read refused")

func (f readFailFS) Open(name string) (billy.File, error) {
	if name == f.name {
		return nil, errRead
	}
	return f.Filesystem.Open(name)
}

func TestSync_ReadFailureIsFatal(t *testing.T) {
	fs := memfs.New()
	seed(t, fs, map[string]string{"/a.ts": "export const a = 1;"})

	_, err := newTestSyncer(t, readFailFS{Filesystem: fs, name: "/a.ts"}).Sync(context.Background(), false)
	require.ErrorIs(t, err, errRead)

	_, err = fs.Stat("/index.ts")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCheck(t *testing.T) {
	fs := memfs.New()
	seed(t, fs, map[string]string{"/a.ts": "export const a = 1;"})
	s := newTestSyncer(t, fs)

	res, err := s.Check(context.Background())
	require.ErrorIs(t, err, ErrStale)
	assert.Equal(t, []string{"./a"}, res.Added)

	_, err = s.Sync(context.Background(), false)
	require.NoError(t, err)

	res, err = s.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Changed)
}

func TestSync_ReportsSuspiciousReExports(t *testing.T) {
	fs := memfs.New()
	original := "export * from './a';\nexport * from './gone';\nexport * from './a';\n"
	seed(t, fs, map[string]string{
		"/a.ts":     "export const a = 1;",
		"/index.ts": original,
	})

	res, err := newTestSyncer(t, fs).Sync(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, res.Diagnostics, 2)
	assert.Equal(t, "./gone", res.Diagnostics[0].Specifier)
	assert.Equal(t, "./a", res.Diagnostics[1].Specifier)
	assert.False(t, res.Changed)
	assert.Equal(t, original, readGateway(t, fs))
}

func TestEngine_WithConfigAppliesPerDirectorySettings(t *testing.T) {
	base := config.Default()
	base.LineEnding = config.LineEndingLF
	e, err := NewEngine(base, nil)
	require.NoError(t, err)

	project := config.Default()
	project.LineEnding = config.LineEndingLF
	project.Quote = config.QuoteDouble
	project.Exclude = []string{"*.spec.ts"}

	files := map[string]string{
		"/a.ts":      "export const a = 1;",
		"/a.spec.ts": "export const t = 1;",
	}

	fs := memfs.New()
	seed(t, fs, files)
	_, err = e.WithConfig(project).Syncer(fs, "/work").Sync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, `export * from "./a";`, readGateway(t, fs))

	// the base engine keeps its own settings
	fs = memfs.New()
	seed(t, fs, files)
	_, err = e.Syncer(fs, "/work").Sync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "export * from './a.spec';\nexport * from './a';", readGateway(t, fs))
}

func TestEngine_SyncerForDirResolvesAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	e, err := NewEngine(config.Default(), nil)
	require.NoError(t, err)
	s, err := e.SyncerForDir(".")
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(s.Dir()))
	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(s.Dir())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
