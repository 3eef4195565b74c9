// Package gateway creates and updates the index.ts file that re-exports every
// module of a directory.
package gateway

import (
	"bytes"
	"context"
	"runtime"
	"strings"

	"github.com/agentic-research/modgate/internal/linter"
	"github.com/agentic-research/modgate/internal/module"
	"github.com/agentic-research/modgate/internal/syntax"
)

// MergeOptions controls the text of generated statements.
type MergeOptions struct {
	// Quote delimits generated specifiers. Zero means single quotes.
	Quote byte
	// LineEnding forces the separator. Empty means: follow the existing
	// gateway, falling back to the platform separator.
	LineEnding string
}

// MergeResult is the final gateway text and the specifiers that were added.
// Diagnostics describe the existing gateway; they never block the merge.
type MergeResult struct {
	Content     []byte
	Added       []string
	Diagnostics []linter.Diagnostic
}

// Merger merges module descriptors into gateway text.
type Merger struct {
	parser *syntax.Parser
	opts   MergeOptions
}

func NewMerger(parser *syntax.Parser, opts MergeOptions) *Merger {
	if opts.Quote == 0 {
		opts.Quote = '\''
	}
	return &Merger{parser: parser, opts: opts}
}

// Merge produces the gateway text for mods. When exists is false the gateway
// is generated from scratch; otherwise existing is parsed and only missing
// re-exports are spliced in after the last existing one.
func (m *Merger) Merge(ctx context.Context, path string, existing []byte, exists bool, mods []module.Descriptor) (*MergeResult, error) {
	if !exists {
		return m.create(mods), nil
	}

	tree, err := m.parser.ParseGateway(ctx, path, existing)
	if err != nil {
		return nil, err
	}
	diags := linter.Lint(tree, mods)

	present := make(map[string]bool)
	last := -1
	for pos, s := range tree.Statements {
		if s.Kind == syntax.KindReExportAll {
			present[s.Specifier] = true
			last = pos
		}
	}
	insertAt := last
	if last < 0 {
		insertAt = 0
	}

	sep := m.separator(existing)
	var added []syntax.Statement
	var specs []string
	for _, d := range mods {
		if present[d.ImportSpecifier] {
			continue
		}
		present[d.ImportSpecifier] = true
		s := syntax.NewReExportAll(d.ImportSpecifier, m.opts.Quote)
		s.Leading = sep
		added = append(added, s)
		specs = append(specs, d.ImportSpecifier)
	}

	if len(added) > 0 {
		splice(tree, insertAt, added, sep)
	}
	return &MergeResult{Content: tree.Render(), Added: specs, Diagnostics: diags}, nil
}

func (m *Merger) create(mods []module.Descriptor) *MergeResult {
	lines := make([]string, 0, len(mods))
	specs := make([]string, 0, len(mods))
	for _, d := range mods {
		lines = append(lines, syntax.NewReExportAll(d.ImportSpecifier, m.opts.Quote).Text)
		specs = append(specs, d.ImportSpecifier)
	}
	return &MergeResult{
		Content: []byte(strings.Join(lines, m.separator(nil))),
		Added:   specs,
	}
}

// splice inserts added right after statement insertAt. A tree without
// statements takes the block after its trivia, so a header comment stays on
// top.
func splice(tree *syntax.Tree, insertAt int, added []syntax.Statement, sep string) {
	if len(tree.Statements) == 0 {
		lead := tree.Trailing
		if lead != "" && !strings.HasSuffix(lead, "\n") {
			lead += sep
		}
		added[0].Leading = lead
		tree.Statements = added
		tree.Trailing = ""
		return
	}

	cut := min(insertAt+1, len(tree.Statements))
	out := make([]syntax.Statement, 0, len(tree.Statements)+len(added))
	out = append(out, tree.Statements[:cut]...)
	out = append(out, added...)
	out = append(out, tree.Statements[cut:]...)
	tree.Statements = out
}

func (m *Merger) separator(existing []byte) string {
	if m.opts.LineEnding != "" {
		return m.opts.LineEnding
	}
	if i := bytes.IndexByte(existing, '\n'); i >= 0 {
		if i > 0 && existing[i-1] == '\r' {
			return "\r\n"
		}
		return "\n"
	}
	return platformLineEnding()
}

func platformLineEnding() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}
