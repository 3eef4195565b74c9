// Package linter reports re-exports in an existing gateway that look wrong.
// It never changes the gateway; fixing is left to the user.
package linter

import (
	"fmt"
	"strings"

	"github.com/agentic-research/modgate/internal/module"
	"github.com/agentic-research/modgate/internal/syntax"
)

// Rule names a diagnostic category.
type Rule string

const (
	// RuleDuplicate flags a re-export-all that repeats an earlier specifier.
	RuleDuplicate Rule = "duplicate-re-export"
	// RuleDangling flags a relative re-export-all that names no module in the
	// directory.
	RuleDangling Rule = "dangling-re-export"
)

type Diagnostic struct {
	Rule      Rule
	Specifier string
	Line      uint32 // 0-indexed
	Message   string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d: %s [%s]", d.Line+1, d.Message, d.Rule)
}

// Lint checks the re-export-all statements of tree against the modules
// currently found in its directory. Specifiers that do not start with "./"
// point outside the directory and are only checked for duplicates.
func Lint(tree *syntax.Tree, mods []module.Descriptor) []Diagnostic {
	known := make(map[string]bool, len(mods))
	for _, d := range mods {
		known[d.ImportSpecifier] = true
	}

	var diags []Diagnostic
	seen := make(map[string]uint32)
	for _, s := range tree.Statements {
		if s.Kind != syntax.KindReExportAll {
			continue
		}
		if first, dup := seen[s.Specifier]; dup {
			diags = append(diags, Diagnostic{
				Rule:      RuleDuplicate,
				Specifier: s.Specifier,
				Line:      s.Line,
				Message:   fmt.Sprintf("%q is already re-exported on line %d", s.Specifier, first+1),
			})
			continue
		}
		seen[s.Specifier] = s.Line

		if strings.HasPrefix(s.Specifier, "./") && !known[s.Specifier] {
			diags = append(diags, Diagnostic{
				Rule:      RuleDangling,
				Specifier: s.Specifier,
				Line:      s.Line,
				Message:   fmt.Sprintf("%q does not name a module with exports in this directory", s.Specifier),
			})
		}
	}
	return diags
}
