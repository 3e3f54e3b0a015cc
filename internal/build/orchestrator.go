package build

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/geodesk/golbuild/internal/analyzer"
	"github.com/geodesk/golbuild/internal/buildutil"
	"github.com/geodesk/golbuild/internal/compiler"
	"github.com/geodesk/golbuild/internal/golstore"
	"github.com/geodesk/golbuild/internal/osmsource"
	"github.com/geodesk/golbuild/internal/sorter"
	"github.com/geodesk/golbuild/internal/stringcat"
	"github.com/geodesk/golbuild/internal/tilecatalog"
	"github.com/geodesk/golbuild/internal/validator"
)

// Config is everything a Run call needs beyond the parsed Settings: where
// the source reads from, where the finished GOL and its scratch work
// directory go, and whether to keep the work directory around afterward
// for inspection (mirrors GolBuilder::build's `Console::verbosity() <
// DEBUG` check that skips cleanup).
type Config struct {
	Source     osmsource.Source
	OutputPath string
	WorkDir    string
	Settings   Settings
	Debug      bool
	Logger     *zap.SugaredLogger
}

// Result is what a completed Run produces: each phase's own stats plus
// the number of distinct tile blobs the finished GOL actually stored.
type Result struct {
	GUID          uuid.UUID
	Analyzer      *analyzer.Result
	Sorter        sorter.Stats
	Validator     validator.Stats
	Compiler      compiler.Stats
	TilesWritten  int
	Elapsed       time.Duration
	WorkDirKept   bool
	TileCatalog   *tilecatalog.Catalog
	StringCatalog *stringcat.Catalog
}

// Run drives the full four-phase pipeline (§4: analyze, sort, validate,
// compile) once, the Go counterpart of GolBuilder::build. Phase order is
// fixed and total: no phase starts before the previous one has fully
// flushed (§5 "Ordering guarantees").
func Run(ctx context.Context, cfg Config) (*Result, error) {
	start := time.Now()
	log := cfg.Logger
	if log == nil {
		l, _ := zap.NewProduction()
		log = l.Sugar()
		defer log.Sync()
	}

	resolved, err := cfg.Settings.Resolve()
	if err != nil {
		return nil, cfg.wrap(err)
	}

	if budget := buildutil.ComputeArenaBudget(buildutil.DefaultArenaPressurePercent, log); budget > 0 {
		if maxWorkers := int(budget / buildutil.EstimatedWorkerArenaBytes); maxWorkers > 0 && maxWorkers < resolved.Workers {
			log.Infow("capping worker count to fit arena budget",
				"workers", maxWorkers, "requested", resolved.Workers)
			resolved.Workers = maxWorkers
		}
	}

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, cfg.wrap(fmt.Errorf("build: creating work directory: %w", err))
	}
	workDirKept := false
	defer func() {
		if workDirKept {
			log.Infow("work directory kept", "path", cfg.WorkDir)
			return
		}
		if err := os.RemoveAll(cfg.WorkDir); err != nil {
			log.Warnw("failed to remove work directory", "path", cfg.WorkDir, "error", err)
		}
	}()

	log.Infow("analyze: starting", "progress", buildutil.OverallPercent(nil))
	catalogs, err := analyzer.Run(ctx, cfg.Source, analyzer.Config{
		TileCatalog: tilecatalog.Config{
			ZoomLevels:     resolved.ZoomLevels,
			MinTileDensity: resolved.MinTileDensity,
			MaxTiles:       resolved.MaxTiles,
		},
		Strings: stringcat.Config{
			IndexedKeys:         resolved.IndexedKeyNames,
			MaxStrings:          resolved.MaxStrings,
			MinProtoStringUsage: resolved.MinStringUsage,
		},
	})
	if err != nil {
		return nil, cfg.wrap(errors.Wrap(err, "build: analyze phase"))
	}
	log.Infow("analyze: done",
		"tiles", catalogs.TileCatalog.TileCount(),
		"strings", len(catalogs.StringCatalog.GST),
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, err := sorter.New(cfg.WorkDir, catalogs.TileCatalog, catalogs.StringCatalog)
	if err != nil {
		return nil, cfg.wrap(errors.Wrap(err, "build: sort phase setup"))
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Warnw("failed to close sorter", "error", err)
		}
	}()

	log.Infow("sort: starting")
	if err := cfg.Source.Read(ctx, s); err != nil {
		return nil, cfg.wrap(errors.Wrap(err, "build: sort phase"))
	}
	log.Infow("sort: done", "stats", s.Stats())

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v, err := validator.New(catalogs.TileCatalog, catalogs.StringCatalog, s.Arena(), s.Piles(), validator.Config{
		Workers: resolved.Workers,
	})
	if err != nil {
		return nil, cfg.wrap(errors.Wrap(err, "build: validate phase setup"))
	}
	log.Infow("validate: starting")
	validateResult, err := v.Run(ctx)
	if err != nil {
		return nil, cfg.wrap(errors.Wrap(err, "build: validate phase"))
	}
	log.Infow("validate: done", "stats", validateResult.Stats)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if resolved.Updatable {
		if err := syncIndexes(s); err != nil {
			log.Warnw("failed to sync id indexes for --updatable", "error", err)
		} else {
			workDirKept = true
		}
	}

	store, err := golstore.NewFileWriter(cfg.OutputPath, cfg.WorkDir)
	if err != nil {
		return nil, cfg.wrap(errors.Wrap(err, "build: compile phase setup"))
	}

	c, err := compiler.New(
		catalogs.TileCatalog, catalogs.StringCatalog, s.Arena(), s.Piles(),
		s.NodeIndex(), s.WayIndex(), s.RelationIndex(),
		resolved.Classifier, resolved.IndexedKeys, store,
		compiler.Config{Workers: resolved.Workers, RTreeBranchSize: resolved.RTreeBranchSize},
	)
	if err != nil {
		return nil, cfg.wrap(errors.Wrap(err, "build: compile phase setup"))
	}

	log.Infow("compile: starting")
	compileResult, err := c.Run(ctx)
	if err != nil {
		return nil, cfg.wrap(errors.Wrap(err, "build: compile phase"))
	}
	log.Infow("compile: done", "stats", compileResult.Stats)

	guid := uuid.New()
	levels := resolved.ZoomLevels.Levels()
	minZoom, maxZoom := 0, buildutil.MaxZoom
	if len(levels) > 0 {
		minZoom, maxZoom = levels[0], levels[len(levels)-1]
	}

	tilesWritten, err := store.Finish(golstore.Manifest{
		GUID:        guid,
		Revision:    1,
		MinZoom:     minZoom,
		MaxZoom:     maxZoom,
		GST:         catalogs.StringCatalog.GST,
		IndexedKeys: resolved.IndexedKeyNames,
		Settings: map[string]string{
			"levels":       resolved.ZoomLevels.String(),
			"indexed-keys": buildutil.FormatIndexedKeys(resolved.IndexedKeys),
		},
	})
	if err != nil {
		return nil, cfg.wrap(errors.Wrap(err, "build: writing GOL"))
	}

	if cfg.Debug {
		workDirKept = true
	}

	return &Result{
		GUID:          guid,
		Analyzer:      catalogs,
		Sorter:        s.Stats(),
		Validator:     validateResult.Stats,
		Compiler:      compileResult.Stats,
		TilesWritten:  tilesWritten,
		Elapsed:       time.Since(start),
		WorkDirKept:   workDirKept,
		TileCatalog:   catalogs.TileCatalog,
		StringCatalog: catalogs.StringCatalog,
	}, nil
}

// syncIndexes flushes and leaves open the three id indexes so they
// survive as on-disk files next to the pile file (§6 "in --updatable
// mode the id indexes are synced and kept"), the Go analogue of
// GolBuilder::finalizeIndexes' keepIndexes_ branch.
func syncIndexes(s *sorter.Sorter) error {
	var result error
	for _, idx := range []interface{ Sync() error }{s.NodeIndex(), s.WayIndex(), s.RelationIndex()} {
		if err := idx.Sync(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// wrap attaches a stack trace via pkg/errors when the caller asked for a
// debug build; production builds get the plain wrapped error, matching
// the ambient stack's "invariant-class errors with stack traces (debug
// builds only)" rule.
func (cfg Config) wrap(err error) error {
	if err == nil {
		return nil
	}
	if cfg.Debug {
		return errors.WithStack(err)
	}
	return err
}
