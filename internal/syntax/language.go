package syntax

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// LanguageForPath returns the language name and tree-sitter grammar for a
// file path. Returns ok=false for extensions outside the TypeScript family.
func LanguageForPath(path string) (langName string, lang *sitter.Language, ok bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return "typescript", typescript.GetLanguage(), true
	case ".tsx":
		return "tsx", tsx.GetLanguage(), true
	case ".js", ".jsx", ".mjs", ".cjs":
		// the javascript grammar accepts JSX
		return "javascript", javascript.GetLanguage(), true
	default:
		return "", nil, false
	}
}
