// Package exports counts the export-producing constructs of a source file.
package exports

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/modgate/internal/syntax"
)

// Analysis is the result of analysing one file.
type Analysis struct {
	ExportCount int
}

// Stamp identifies a file revision for the cache.
type Stamp struct {
	Size    int64
	ModTime time.Time
}

type cacheEntry struct {
	stamp    Stamp
	analysis Analysis
}

// Analyzer counts exports using the syntax parser it is given.
type Analyzer struct {
	parser *syntax.Parser
	cache  *lru.Cache[string, cacheEntry]
}

// NewAnalyzer returns an analyzer. cacheSize 0 disables caching.
func NewAnalyzer(parser *syntax.Parser, cacheSize int) (*Analyzer, error) {
	a := &Analyzer{parser: parser}
	if cacheSize > 0 {
		c, err := lru.New[string, cacheEntry](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create analysis cache: %w", err)
		}
		a.cache = c
	}
	return a, nil
}

// Analyze parses src and counts its export-producing constructs.
// Syntax errors do not fail the analysis; ERROR nodes are walked like any
// other node.
func (a *Analyzer) Analyze(ctx context.Context, path string, src []byte) (Analysis, error) {
	f, err := a.parser.Parse(ctx, path, src)
	if err != nil {
		return Analysis{}, err
	}
	defer f.Close()

	return Analysis{ExportCount: countExports(f.Root)}, nil
}

// AnalyzeCached returns the cached analysis for path when stamp matches,
// otherwise calls read and analyses the result.
func (a *Analyzer) AnalyzeCached(ctx context.Context, path string, stamp Stamp, read func() ([]byte, error)) (Analysis, error) {
	if a.cache != nil {
		if e, ok := a.cache.Get(path); ok && e.stamp.Size == stamp.Size && e.stamp.ModTime.Equal(stamp.ModTime) {
			return e.analysis, nil
		}
	}

	src, err := read()
	if err != nil {
		return Analysis{}, err
	}
	res, err := a.Analyze(ctx, path, src)
	if err != nil {
		return Analysis{}, err
	}

	if a.cache != nil {
		a.cache.Add(path, cacheEntry{stamp: stamp, analysis: res})
	}
	return res, nil
}

// countExports walks the whole tree. An export statement is counted once;
// only a statement that exports a declaration is descended into, so exports
// nested in an exported namespace count as well.
func countExports(n *sitter.Node) int {
	switch n.Type() {
	case "import_statement":
		return 0
	case "export_specifier":
		return 1
	case "export_statement":
		if isGlobalNamespaceExport(n) {
			return 0
		}
		if decl := n.ChildByFieldName("declaration"); decl != nil {
			return 1 + countExports(decl)
		}
		return 1
	}

	total := 0
	for i := 0; i < int(n.NamedChildCount()); i++ {
		total += countExports(n.NamedChild(i))
	}
	return total
}

// isGlobalNamespaceExport matches `export as namespace X`, which declares a
// UMD global rather than a module export.
func isGlobalNamespaceExport(n *sitter.Node) bool {
	return n.ChildCount() > 1 && n.Child(1).Type() == "as"
}
