package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/agentic-research/modgate/internal/linter"
	"github.com/agentic-research/modgate/internal/logging"
	"github.com/agentic-research/modgate/internal/module"
	"github.com/agentic-research/modgate/internal/writeback"
)

// FileName is the gateway maintained in every scanned directory.
const FileName = "index.ts"

// ErrStale is returned by Check when the gateway is missing re-exports.
var ErrStale = errors.New("gateway is out of date")

// Result describes one synchronization.
type Result struct {
	Path        string
	Created     bool
	Changed     bool
	Added       []string
	Content     []byte
	Diagnostics []linter.Diagnostic
}

// Syncer keeps the gateway of one directory in sync.
type Syncer struct {
	fs         billy.Filesystem
	dir        string
	classifier *module.Classifier
	merger     *Merger
	write      writeback.Options
	log        logging.Logger
}

// NewSyncer wires a syncer over fs, which must be rooted at dir.
func NewSyncer(fs billy.Filesystem, dir string, classifier *module.Classifier, merger *Merger, write writeback.Options, log logging.Logger) *Syncer {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Syncer{
		fs:         fs,
		dir:        dir,
		classifier: classifier,
		merger:     merger,
		write:      write,
		log:        log.With(logging.String("dir", dir)),
	}
}

// Dir returns the absolute path of the scanned directory.
func (s *Syncer) Dir() string {
	return s.dir
}

// Sync classifies the directory, merges the result into the gateway and
// writes it unless dryRun is set. Nothing is written when any step fails.
func (s *Syncer) Sync(ctx context.Context, dryRun bool) (*Result, error) {
	start := time.Now()

	mods, err := s.classifier.Classify(ctx)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(s.dir, FileName)
	name := s.fs.Join("/", FileName)

	exists := true
	if _, err := s.fs.Stat(name); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		exists = false
	}

	var existing []byte
	if exists {
		existing, err = util.ReadFile(s.fs, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	merged, err := s.merger.Merge(ctx, path, existing, exists, mods)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Path:        path,
		Created:     !exists,
		Changed:     !exists || !bytes.Equal(existing, merged.Content),
		Added:       merged.Added,
		Content:     merged.Content,
		Diagnostics: merged.Diagnostics,
	}
	for _, d := range merged.Diagnostics {
		s.log.Warn("suspicious re-export in gateway",
			logging.String("rule", string(d.Rule)),
			logging.String("specifier", d.Specifier),
			logging.Int("line", int(d.Line)+1),
		)
	}

	if res.Changed && !dryRun {
		if err := writeback.WriteFile(s.fs, name, merged.Content, s.write); err != nil {
			return nil, fmt.Errorf("write gateway %s: %w", path, err)
		}
	}

	s.log.Debug("gateway synchronized",
		logging.Int("modules", len(mods)),
		logging.Strings("added", merged.Added),
		logging.Bool("created", res.Created),
		logging.Bool("changed", res.Changed),
		logging.Bool("dry_run", dryRun),
		logging.Duration("took", time.Since(start)),
	)
	return res, nil
}

// Check reports ErrStale, together with the would-be result, when a sync
// would change the gateway.
func (s *Syncer) Check(ctx context.Context) (*Result, error) {
	res, err := s.Sync(ctx, true)
	if err != nil {
		return nil, err
	}
	if res.Changed {
		return res, fmt.Errorf("%s: %w", res.Path, ErrStale)
	}
	return res, nil
}
