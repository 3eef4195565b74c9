// Package syntax parses TypeScript-family sources with tree-sitter and models
// a gateway file as an ordered sequence of top-level statements.
package syntax

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// ErrUnsupportedLanguage is returned for paths with no known grammar.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// ValidationError contains structured information about a syntax error.
type ValidationError struct {
	FilePath string
	Line     uint32 // 0-indexed
	Column   uint32 // 0-indexed
	Message  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.FilePath, e.Line+1, e.Column+1, e.Message)
}

// File is a parsed source file. Close releases the underlying tree.
type File struct {
	Path   string
	Lang   string
	Source []byte
	Root   *sitter.Node

	tree *sitter.Tree
}

// Close releases the tree-sitter tree.
func (f *File) Close() {
	if f.tree != nil {
		f.tree.Close()
		f.tree = nil
	}
}

// Parser is the parse/print collaborator handed to the analyzer and merger.
// It holds no state; a fresh tree-sitter parser is created per call.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse parses src tolerantly: syntax errors are kept as ERROR nodes in the
// returned tree rather than reported.
func (p *Parser) Parse(ctx context.Context, path string, src []byte) (*File, error) {
	langName, lang, ok := LanguageForPath(path)
	if !ok {
		return nil, fmt.Errorf("parse %s: %w", path, ErrUnsupportedLanguage)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed for %s: %w", path, err)
	}
	root := tree.RootNode()
	if root == nil {
		tree.Close()
		return nil, fmt.Errorf("tree-sitter returned nil root for %s", path)
	}

	return &File{
		Path:   path,
		Lang:   langName,
		Source: src,
		Root:   root,
		tree:   tree,
	}, nil
}

// ParseStrict parses src and fails with a *ValidationError if the tree
// contains any ERROR or MISSING node.
func (p *Parser) ParseStrict(ctx context.Context, path string, src []byte) (*File, error) {
	f, err := p.Parse(ctx, path, src)
	if err != nil {
		return nil, err
	}
	if !f.Root.HasError() {
		return f, nil
	}
	defer f.Close()

	if errNode := findFirstError(f.Root); errNode != nil {
		return nil, &ValidationError{
			FilePath: path,
			Line:     errNode.StartPoint().Row,
			Column:   errNode.StartPoint().Column,
			Message:  "syntax error in AST",
		}
	}
	return nil, &ValidationError{FilePath: path, Message: "AST contains errors"}
}

// findFirstError does a depth-first search for the first ERROR node.
func findFirstError(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.HasError() || child.IsError() || child.IsMissing() {
			if found := findFirstError(child); found != nil {
				return found
			}
		}
	}
	return nil
}
