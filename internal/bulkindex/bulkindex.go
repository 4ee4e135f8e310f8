// Package bulkindex takes a scanner.ScanResult and produces a sequence
// of patches reflecting the full repository (spec.md §4.3). It chooses
// between a batched mode, which keeps every patch in memory, and a
// streaming mode that bounds memory by draining patches as it goes.
package bulkindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/codeprism-dev/codeprism/internal/errors"
	"github.com/codeprism-dev/codeprism/internal/graphstore"
	"github.com/codeprism-dev/codeprism/internal/langparser"
	"github.com/codeprism-dev/codeprism/internal/logging"
	"github.com/codeprism-dev/codeprism/internal/parserengine"
	"github.com/codeprism-dev/codeprism/internal/patch"
	"github.com/codeprism-dev/codeprism/internal/resolver"
	"github.com/codeprism-dev/codeprism/internal/scanner"
)

// GiB is one gibibyte, used for the default memory budget.
const GiB = 1 << 30

// Options configures a bulk-indexing run. Defaults mirror spec.md §4.3.
type Options struct {
	BatchSize               int
	ParallelWorkers         int
	MemoryLimitBytes        int64
	StreamingThresholdFiles int
	MaxPatchesInMemory      int
	ContinueOnError         bool
	RepoID                  string
	CommitSHA               string
}

// DefaultOptions returns the spec.md §4.3 defaults.
func DefaultOptions() Options {
	return Options{
		BatchSize:               30,
		ParallelWorkers:         runtime.NumCPU(),
		MemoryLimitBytes:        4 * GiB,
		StreamingThresholdFiles: 10_000,
		MaxPatchesInMemory:      100,
		ContinueOnError:         true,
		RepoID:                  "default",
	}
}

// FailedFile records one file that could not be read or parsed.
type FailedFile struct {
	Path string
	Err  error
}

// Result is the bulk indexer's final report (spec.md §4.3).
type Result struct {
	Patches        []*patch.Patch // retained patches; bounded in streaming mode
	FilesProcessed int
	NodesCreated   int
	EdgesCreated   int
	Duration       time.Duration
	ThroughputFPS  float64
	ErrorCount     int
	FailedFiles    []FailedFile
	Streaming      bool
}

// ReadFileFunc reads a repo-relative file's content; overridable for tests.
type ReadFileFunc func(root, relPath string) ([]byte, error)

func defaultReadFile(root, relPath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(root, relPath))
}

// Indexer runs the bulk indexing pipeline over a parser engine, with
// an optional graph store sink used in streaming mode to drain
// patches as they're produced.
type Indexer struct {
	engine   *parserengine.Engine
	store    *graphstore.Store // optional: when set, streaming mode applies patches here
	readFile ReadFileFunc
	log      *logging.Logger
}

// New creates an Indexer. store may be nil; when non-nil, streaming
// mode applies drained patches to it immediately.
func New(engine *parserengine.Engine, store *graphstore.Store, log *logging.Logger) *Indexer {
	if log == nil {
		log = logging.Discard()
	}
	return &Indexer{engine: engine, store: store, readFile: defaultReadFile, log: log.With("bulkindex")}
}

// SetReadFile overrides the file-reading function, used by tests that
// don't want to touch the real filesystem.
func (ix *Indexer) SetReadFile(f ReadFileFunc) {
	ix.readFile = f
}

// IndexRepo processes every file in scan and returns the aggregate
// result. It does not itself run the cross-file resolver: callers that
// want the spec.md §4.5 resolution pass apply IndexRepo's patches to a
// graphstore.Store, then call ResolveCrossFile against that store and
// apply its output as the final patch.
func (ix *Indexer) IndexRepo(ctx context.Context, root string, scan scanner.ScanResult, opts Options) (*Result, error) {
	start := time.Now()
	streaming := len(scan.Files) > opts.StreamingThresholdFiles || opts.MemoryLimitBytes < 2*GiB

	res := &Result{Streaming: streaming}
	var retained []*patch.Patch

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	workers := opts.ParallelWorkers
	if workers <= 0 {
		workers = 1
	}

	for batchStart := 0; batchStart < len(scan.Files); batchStart += batchSize {
		if err := ctx.Err(); err != nil {
			return res, errors.New(errors.KindCancellation, errors.SeverityWarning, "IndexRepo", err)
		}

		end := batchStart + batchSize
		if end > len(scan.Files) {
			end = len(scan.Files)
		}
		batch := scan.Files[batchStart:end]

		batchPatches, batchFailed, err := ix.processBatch(ctx, root, batch, opts, workers)
		if err == nil && len(batchFailed) > 0 {
			err = batchFailed[0].Err
		}
		if err != nil && !opts.ContinueOnError {
			return res, err
		}

		res.FilesProcessed += len(batchPatches)
		res.ErrorCount += len(batchFailed)
		res.FailedFiles = append(res.FailedFiles, batchFailed...)
		for _, p := range batchPatches {
			res.NodesCreated += len(p.NodesAdd)
			res.EdgesCreated += len(p.EdgesAdd)
			retained = append(retained, p)
		}

		estimate := estimatePatchesBytes(retained)
		if streaming {
			if len(retained) > opts.MaxPatchesInMemory || estimate > opts.MemoryLimitBytes {
				retained = ix.drain(retained, opts.MaxPatchesInMemory)
			}
		} else if estimate > opts.MemoryLimitBytes {
			return res, errors.New(errors.KindResource, errors.SeverityCritical, "IndexRepo",
				bytesOverBudgetErr(estimate, opts.MemoryLimitBytes))
		}
	}

	res.Patches = retained
	res.Duration = time.Since(start)
	if res.Duration > 0 {
		res.ThroughputFPS = float64(res.FilesProcessed) / res.Duration.Seconds()
	}
	ix.log.Infof("indexed %d files (%d errors) in %s, streaming=%v", res.FilesProcessed, res.ErrorCount, res.Duration, streaming)
	return res, nil
}

func bytesOverBudgetErr(used, limit int64) error {
	return fmt.Errorf("memory budget exceeded: estimated %d bytes > limit %d", used, limit)
}

// drain applies retained patches to the store (if any) and keeps only
// the most recent maxKeep, preserving the streaming-mode memory bound
// from spec.md §4.3 ("preserving only aggregate statistics and the
// most recent patches").
func (ix *Indexer) drain(retained []*patch.Patch, maxKeep int) []*patch.Patch {
	if ix.store != nil {
		for _, p := range retained {
			ix.store.Apply(p)
		}
	}
	if maxKeep <= 0 || len(retained) <= maxKeep {
		if ix.store != nil {
			return nil
		}
		return retained
	}
	kept := append([]*patch.Patch(nil), retained[len(retained)-maxKeep:]...)
	return kept
}

func estimatePatchesBytes(patches []*patch.Patch) int64 {
	var total int64
	for _, p := range patches {
		total += p.EstimatedBytes()
	}
	return total
}

// processBatch parses every file in batch concurrently, bounded by
// workers, and returns the patches and failures produced.
func (ix *Indexer) processBatch(ctx context.Context, root string, batch []scanner.DiscoveredFile, opts Options, workers int) ([]*patch.Patch, []FailedFile, error) {
	sem := semaphore.NewWeighted(int64(workers))
	g, gctx := errgroup.WithContext(ctx)

	patches := make([]*patch.Patch, len(batch))
	failures := make([]*FailedFile, len(batch))

	for i, f := range batch {
		i, f := i, f
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			p, failed, err := ix.processFile(gctx, root, f, opts)
			if err != nil {
				failures[i] = failed
				return nil // per-file errors never abort the batch
			}
			patches[i] = p
			return nil
		})
	}
	err := g.Wait()

	var outPatches []*patch.Patch
	var outFailed []FailedFile
	for i := range batch {
		if patches[i] != nil {
			outPatches = append(outPatches, patches[i])
		}
		if failures[i] != nil {
			outFailed = append(outFailed, *failures[i])
		}
	}
	return outPatches, outFailed, err
}

// processFile implements the per-file protocol from spec.md §4.3: read
// the file's text; skip empty files; construct a ParseContext; parse;
// build one patch from the result.
func (ix *Indexer) processFile(ctx context.Context, root string, f scanner.DiscoveredFile, opts Options) (*patch.Patch, *FailedFile, error) {
	content, err := ix.readFile(root, f.Path)
	if err != nil {
		fail := &FailedFile{Path: f.Path, Err: errors.New(errors.KindIo, errors.SeverityError, "read", err).WithFile(f.Path)}
		return nil, fail, fail.Err
	}
	if len(content) == 0 {
		return nil, nil, nil // empty file: skip, not a failure
	}
	if !utf8.Valid(content) {
		fail := &FailedFile{Path: f.Path, Err: errors.New(errors.KindIo, errors.SeverityError, "read", errNotUTF8).WithFile(f.Path)}
		return nil, fail, fail.Err
	}

	pc := langparser.ParseContext{RepoID: opts.RepoID, FilePath: f.Path, Content: content}
	result, err := ix.engine.Parse(ctx, f.Language, pc)
	if err != nil {
		fail := &FailedFile{Path: f.Path, Err: errors.New(errors.KindParse, errors.SeverityWarning, "parse", err).WithFile(f.Path)}
		return nil, fail, fail.Err
	}

	p := patch.New(opts.RepoID, opts.CommitSHA)
	for _, n := range result.Nodes {
		p.AddNode(n)
	}
	for _, e := range result.Edges {
		p.AddEdge(e)
	}
	return p, nil, nil
}

var errNotUTF8 = fmt.Errorf("invalid UTF-8 content")

// IndexFile is the supplemental single-file incremental reindex entry
// point (SPEC_FULL.md §5): it reparses one file and, when store is
// set, applies the resulting patch and then a full resolver.Resolve
// pass over the whole store.
func (ix *Indexer) IndexFile(ctx context.Context, root string, f scanner.DiscoveredFile, opts Options) (*patch.Patch, error) {
	p, fail, err := ix.processFile(ctx, root, f, opts)
	if err != nil {
		return nil, err
	}
	if fail != nil {
		return nil, fail.Err
	}
	if p == nil {
		p = patch.New(opts.RepoID, opts.CommitSHA)
	}
	if ix.store != nil {
		ix.store.Apply(p)
		resolved := resolver.Resolve(ix.store, opts.RepoID, opts.CommitSHA)
		ix.store.Apply(resolved)
	}
	return p, nil
}

// ResolveCrossFile runs the cross-file resolver over store and
// returns its output patch (spec.md §4.5); callers apply it
// themselves so IndexRepo's caller controls the final apply step.
func ResolveCrossFile(store *graphstore.Store, repoID, commitSHA string) *patch.Patch {
	return resolver.Resolve(store, repoID, commitSHA)
}
