package syntax

import (
	"bytes"
	"context"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// Kind tags the top-level statements the gateway engine distinguishes.
type Kind int

const (
	// KindOpaque is any statement kept verbatim.
	KindOpaque Kind = iota
	// KindReExportAll is `export * from '<specifier>'` with no bindings.
	KindReExportAll
)

func (k Kind) String() string {
	switch k {
	case KindReExportAll:
		return "re-export-all"
	default:
		return "opaque"
	}
}

// Statement is one top-level statement of a gateway file.
//
// Leading holds the whitespace and comments between the previous statement
// and this one; Text is the statement itself, extended over a comment that
// trails it on the same line. Rendering Leading+Text for every statement
// followed by Tree.Trailing reproduces the source exactly.
type Statement struct {
	Kind      Kind
	Specifier string
	Leading   string
	Text      string
	// Line is the 0-indexed row Text starts on. Generated statements have
	// no position and leave it zero.
	Line uint32
}

// Tree is the ordered top-level statement sequence of a gateway file.
type Tree struct {
	Statements []Statement
	Trailing   string
}

// Render serializes the tree back to text.
func (t *Tree) Render() []byte {
	var buf bytes.Buffer
	for _, s := range t.Statements {
		buf.WriteString(s.Leading)
		buf.WriteString(s.Text)
	}
	buf.WriteString(t.Trailing)
	return buf.Bytes()
}

// ReExportSpecifiers returns the specifiers of every re-export-all statement
// in source order.
func (t *Tree) ReExportSpecifiers() []string {
	var specs []string
	for _, s := range t.Statements {
		if s.Kind == KindReExportAll {
			specs = append(specs, s.Specifier)
		}
	}
	return specs
}

// NewReExportAll builds `export * from '<specifier>';` using quote as the
// string delimiter. Leading is left empty for the caller to fill in.
func NewReExportAll(specifier string, quote byte) Statement {
	return Statement{
		Kind:      KindReExportAll,
		Specifier: specifier,
		Text:      "export * from " + quoteString(specifier, quote) + ";",
	}
}

func quoteString(s string, quote byte) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(quote)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == quote || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	b.WriteByte(quote)
	return b.String()
}

// ParseGateway parses gateway text into a Tree. Malformed text yields a
// *ValidationError.
func (p *Parser) ParseGateway(ctx context.Context, path string, src []byte) (*Tree, error) {
	f, err := p.ParseStrict(ctx, path, maskTypeReExports(src))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return buildTree(f.Root, src), nil
}

// typeReExport matches `export type * [as X] from '<specifier>'`, which the
// TypeScript grammar predates.
var typeReExport = regexp.MustCompile(`(?m)^[ \t]*(export\s+type\s+\*(?:\s+as\s+[\p{L}_$][\p{L}\p{N}_$]*)?\s+from\s*(?:'(?:[^'\\\n]|\\.)*'|"(?:[^"\\\n]|\\.)*")[ \t]*;?)`)

// maskTypeReExports overwrites every type-only re-export with an expression
// statement of the same length and line layout, so it parses as one opaque
// statement. Spans stay aligned with src.
func maskTypeReExports(src []byte) []byte {
	locs := typeReExport.FindAllSubmatchIndex(src, -1)
	if len(locs) == 0 {
		return src
	}
	masked := bytes.Clone(src)
	for _, loc := range locs {
		start, end := loc[2], loc[3]
		for i := start; i < end; i++ {
			if masked[i] != '\n' && masked[i] != '\r' {
				masked[i] = ' '
			}
		}
		masked[start] = '_'
		masked[end-1] = ';'
	}
	return masked
}

// buildTree partitions src into top-level statements. Comments and the
// hashbang line are trivia and never become statements of their own.
func buildTree(root *sitter.Node, src []byte) *Tree {
	tree := &Tree{}
	prev := uint32(0)
	count := int(root.NamedChildCount())

	for i := 0; i < count; i++ {
		n := root.NamedChild(i)
		if isTrivia(n) {
			continue
		}

		end := n.EndByte()
		// pull a same-line trailing comment into the statement
		if i+1 < count {
			next := root.NamedChild(i + 1)
			if next.Type() == "comment" && next.StartPoint().Row == n.EndPoint().Row {
				end = next.EndByte()
				i++
			}
		}

		kind, spec := classify(n, src)
		tree.Statements = append(tree.Statements, Statement{
			Kind:      kind,
			Specifier: spec,
			Leading:   string(src[prev:n.StartByte()]),
			Text:      string(src[n.StartByte():end]),
			Line:      n.StartPoint().Row,
		})
		prev = end
	}

	tree.Trailing = string(src[prev:])
	return tree
}

func isTrivia(n *sitter.Node) bool {
	switch n.Type() {
	case "comment", "hash_bang_line":
		return true
	}
	return false
}

// classify reports whether n is `export * from <string>`. Namespace
// re-exports (`export * as ns from`) and type-only forms carry bindings or
// modifiers and stay opaque.
func classify(n *sitter.Node, src []byte) (Kind, string) {
	if n.Type() != "export_statement" || n.ChildCount() < 3 {
		return KindOpaque, ""
	}
	if n.Child(0).Type() != "export" || n.Child(1).Type() != "*" || n.Child(2).Type() != "from" {
		return KindOpaque, ""
	}
	source := n.ChildByFieldName("source")
	if source == nil || source.Type() != "string" {
		return KindOpaque, ""
	}
	return KindReExportAll, stringValue(source, src)
}

// stringValue returns the cooked value of a string literal node.
func stringValue(n *sitter.Node, src []byte) string {
	var b strings.Builder
	for i := 0; i < int(n.NamedChildCount()); i++ {
		part := n.NamedChild(i)
		raw := part.Content(src)
		switch part.Type() {
		case "string_fragment":
			b.WriteString(raw)
		case "escape_sequence":
			b.WriteString(unescape(raw))
		}
	}
	return b.String()
}

// unescape cooks one escape_sequence node the way ECMAScript does.
func unescape(seq string) string {
	switch seq {
	case `\'`:
		return "'"
	case `\"`:
		return `"`
	case `\0`:
		return "\x00"
	case "\\\n", "\\\r\n", "\\\r", "\\\u2028", "\\\u2029":
		// line continuation
		return ""
	}
	if strings.HasPrefix(seq, `\u{`) && strings.HasSuffix(seq, "}") {
		cp, err := strconv.ParseUint(seq[3:len(seq)-1], 16, 32)
		if err == nil && utf8.ValidRune(rune(cp)) {
			return string(rune(cp))
		}
	}
	if s, err := strconv.Unquote(`"` + seq + `"`); err == nil {
		return s
	}
	return strings.TrimPrefix(seq, `\`)
}
