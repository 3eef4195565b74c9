package module

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/agentic-research/modgate/internal/exports"
	"github.com/agentic-research/modgate/internal/logging"
	"github.com/agentic-research/modgate/internal/syntax"
)

// DirectoryIndex is the file that makes a subdirectory a directory-module.
const DirectoryIndex = "index.ts"

// Options tunes classification.
type Options struct {
	// Extensions lists the file extensions handed to the analyzer. Files with
	// any other extension have no exports.
	Extensions []string
	// Exclude holds path.Match patterns tested against entry names.
	Exclude []string
}

// Classifier decides which entries of one directory are modules.
// The filesystem is rooted at the scanned directory; dir is its absolute
// path and only feeds Descriptor.Path.
type Classifier struct {
	fs       billy.Filesystem
	dir      string
	analyzer *exports.Analyzer
	opts     Options
	log      logging.Logger
}

func NewClassifier(fs billy.Filesystem, dir string, analyzer *exports.Analyzer, opts Options, log logging.Logger) *Classifier {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Classifier{
		fs:       fs,
		dir:      dir,
		analyzer: analyzer,
		opts:     opts,
		log:      log,
	}
}

// Classify returns the modules of the directory in listing order.
// Any filesystem failure aborts the whole classification.
func (c *Classifier) Classify(ctx context.Context) ([]Descriptor, error) {
	entries, err := c.fs.ReadDir("/")
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", c.dir, err)
	}

	var mods []Descriptor
	seen := make(map[string]string)

	for _, entry := range entries {
		name := entry.Name()
		if c.excluded(name) {
			c.log.Debug("skip excluded entry", logging.String("name", name))
			continue
		}

		d, ok, err := c.classifyEntry(ctx, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		if prev, dup := seen[d.ImportSpecifier]; dup {
			return nil, &CollisionError{Specifier: d.ImportSpecifier, First: prev, Second: name}
		}
		seen[d.ImportSpecifier] = name
		mods = append(mods, d)
	}

	return mods, nil
}

func (c *Classifier) classifyEntry(ctx context.Context, name string) (Descriptor, bool, error) {
	rel := c.fs.Join("/", name)

	info, err := c.fs.Stat(rel)
	if err != nil {
		return Descriptor{}, false, fmt.Errorf("stat %s: %w", c.abs(name), err)
	}

	isDirModule := false
	if info.IsDir() {
		_, err := c.fs.Stat(c.fs.Join(rel, DirectoryIndex))
		switch {
		case errors.Is(err, os.ErrNotExist):
			c.log.Debug("skip directory without index", logging.String("name", name))
			return Descriptor{}, false, nil
		case err != nil:
			return Descriptor{}, false, fmt.Errorf("stat %s: %w", c.abs(filepath.Join(name, DirectoryIndex)), err)
		}
		isDirModule = true
	}

	if IsGatewayName(name) {
		return Descriptor{}, false, nil
	}

	if !info.IsDir() {
		count, err := c.exportCount(ctx, rel, name, info)
		if err != nil {
			return Descriptor{}, false, err
		}
		if count == 0 {
			c.log.Debug("skip file without exports", logging.String("name", name))
			return Descriptor{}, false, nil
		}
	}

	return Descriptor{
		Name:              name,
		IsDirectoryModule: isDirModule,
		Path:              c.abs(name),
		ImportSpecifier:   ImportSpecifier(name),
	}, true, nil
}

func (c *Classifier) exportCount(ctx context.Context, rel, name string, info os.FileInfo) (int, error) {
	if !c.analyzable(name) {
		return 0, nil
	}

	stamp := exports.Stamp{Size: info.Size(), ModTime: info.ModTime()}
	res, err := c.analyzer.AnalyzeCached(ctx, c.abs(name), stamp, func() ([]byte, error) {
		data, err := util.ReadFile(c.fs, rel)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", c.abs(name), err)
		}
		return data, nil
	})
	if errors.Is(err, syntax.ErrUnsupportedLanguage) {
		c.log.Warn("no grammar for configured extension", logging.String("name", name))
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return res.ExportCount, nil
}

func (c *Classifier) analyzable(name string) bool {
	ext := filepath.Ext(name)
	for _, want := range c.opts.Extensions {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

func (c *Classifier) excluded(name string) bool {
	for _, pattern := range c.opts.Exclude {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func (c *Classifier) abs(name string) string {
	return filepath.Join(c.dir, name)
}
