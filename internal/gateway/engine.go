package gateway

import (
	"path/filepath"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/agentic-research/modgate/internal/config"
	"github.com/agentic-research/modgate/internal/exports"
	"github.com/agentic-research/modgate/internal/logging"
	"github.com/agentic-research/modgate/internal/module"
	"github.com/agentic-research/modgate/internal/syntax"
	"github.com/agentic-research/modgate/internal/writeback"
)

// Engine holds the collaborators shared by every directory it syncs, so the
// analysis cache survives across runs.
type Engine struct {
	cfg      *config.Config
	parser   *syntax.Parser
	analyzer *exports.Analyzer
	merger   *Merger
	log      logging.Logger
}

// NewEngine builds an engine for cfg. cfg.Cache sizes the analysis cache
// shared by every engine derived with WithConfig.
func NewEngine(cfg *config.Config, log logging.Logger) (*Engine, error) {
	if log == nil {
		log = logging.NopLogger()
	}
	parser := syntax.NewParser()
	analyzer, err := exports.NewAnalyzer(parser, cfg.Cache.Size)
	if err != nil {
		return nil, err
	}
	e := &Engine{parser: parser, analyzer: analyzer, log: log}
	return e.WithConfig(cfg), nil
}

// WithConfig returns an engine that applies cfg to the directories it syncs
// while sharing the parser and analysis cache of e. Cache settings in cfg
// are ignored.
func (e *Engine) WithConfig(cfg *config.Config) *Engine {
	return &Engine{
		cfg:      cfg,
		parser:   e.parser,
		analyzer: e.analyzer,
		merger: NewMerger(e.parser, MergeOptions{
			Quote:      cfg.QuoteRune(),
			LineEnding: cfg.FixedLineEnding(),
		}),
		log: e.log,
	}
}

// Syncer returns a syncer for the directory fs is rooted at.
func (e *Engine) Syncer(fs billy.Filesystem, dir string) *Syncer {
	classifier := module.NewClassifier(fs, dir, e.analyzer, module.Options{
		Extensions: e.cfg.Extensions,
		Exclude:    e.cfg.Exclude,
	}, e.log)
	return NewSyncer(fs, dir, classifier, e.merger, writeback.Options{Atomic: e.cfg.Write.Atomic}, e.log)
}

// SyncerForDir returns a syncer over the real filesystem.
func (e *Engine) SyncerForDir(dir string) (*Syncer, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return e.Syncer(osfs.New(abs), abs), nil
}
