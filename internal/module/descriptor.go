// Package module classifies directory entries into re-exportable modules.
package module

import (
	"fmt"
	"regexp"
)

// Descriptor is a module the gateway re-exports.
type Descriptor struct {
	// Name is the raw directory entry name.
	Name string
	// IsDirectoryModule is set for directories that carry their own index.ts.
	IsDirectoryModule bool
	// Path is the absolute path of the entry.
	Path string
	// ImportSpecifier is what the gateway re-exports from, e.g. "./foo".
	ImportSpecifier string
}

var scriptSuffix = regexp.MustCompile(`\.[tj]sx?$`)

// gatewayName matches the gateway itself and its tsx variant.
var gatewayName = regexp.MustCompile(`^index\.tsx?$`)

// ImportSpecifier derives the specifier for an entry name: "./" followed by
// the name with one .ts/.tsx/.js/.jsx suffix removed.
func ImportSpecifier(name string) string {
	return "./" + scriptSuffix.ReplaceAllString(name, "")
}

// IsGatewayName reports whether name is index.ts or index.tsx.
func IsGatewayName(name string) bool {
	return gatewayName.MatchString(name)
}

// CollisionError reports two entries that map to the same specifier, such as
// foo.ts and foo.js.
type CollisionError struct {
	Specifier string
	First     string
	Second    string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("import specifier %q is produced by both %s and %s", e.Specifier, e.First, e.Second)
}

// Specifiers returns the import specifiers of mods in order.
func Specifiers(mods []Descriptor) []string {
	specs := make([]string, len(mods))
	for i, m := range mods {
		specs[i] = m.ImportSpecifier
	}
	return specs
}
