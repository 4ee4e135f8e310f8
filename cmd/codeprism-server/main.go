// Command codeprism-server is CodePrism's entry point: "index" runs a
// one-shot bulk index and prints aggregate stats, "serve" runs the MCP
// tool surface over stdio, mirroring the teacher's cmd/lci split
// between its index-on-demand commands and main_server.go's persistent
// server command.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/codeprism-dev/codeprism/internal/anacache"
	"github.com/codeprism-dev/codeprism/internal/ast"
	"github.com/codeprism-dev/codeprism/internal/bulkindex"
	"github.com/codeprism-dev/codeprism/internal/config"
	"github.com/codeprism-dev/codeprism/internal/contentindex"
	"github.com/codeprism-dev/codeprism/internal/graphstore"
	"github.com/codeprism-dev/codeprism/internal/langadapter"
	"github.com/codeprism-dev/codeprism/internal/langparser"
	"github.com/codeprism-dev/codeprism/internal/logging"
	"github.com/codeprism-dev/codeprism/internal/mcpserver"
	"github.com/codeprism-dev/codeprism/internal/parserengine"
	"github.com/codeprism-dev/codeprism/internal/resolver"
	"github.com/codeprism-dev/codeprism/internal/scanner"
)

// Version is overridden at link time via -ldflags, mirroring the
// teacher's version.Version indirection.
var Version = "dev"

func main() {
	app := &cli.App{
		Name:    "codeprism-server",
		Usage:   "code intelligence engine: bulk indexer and MCP tool server",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root", Aliases: []string{"r"}, Value: ".", Usage: "repository root to index"},
			&cli.StringSliceFlag{Name: "include", Usage: "restrict discovery to files matching these extensions/globs"},
			&cli.StringSliceFlag{Name: "exclude", Usage: "additional directory names to exclude"},
			&cli.StringFlag{Name: "repo-id", Value: "default", Usage: "repository identifier stamped onto every node/edge"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log at info level instead of errors only"},
		},
		Commands: []*cli.Command{
			{
				Name:   "index",
				Usage:  "run a one-shot bulk index of the repository and print aggregate stats",
				Action: indexCommand,
			},
			{
				Name:   "serve",
				Usage:  "run the MCP tool server over stdio, indexing the repository first",
				Action: serveCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "codeprism-server: %v\n", err)
		os.Exit(1)
	}
}

// buildEngine loads config for root, registers every language adapter,
// and returns a ready parserengine.Engine alongside the loaded config.
func buildEngine(root string, log *logging.Logger) (*config.Config, *parserengine.Engine, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	reg := langparser.NewRegistry()
	langadapter.RegisterAll(reg, log)
	engine := parserengine.New(reg, log)
	return cfg, engine, nil
}

// scanOptions adapts cfg and CLI overrides into scanner.Options.
func scanOptions(cfg *config.Config, c *cli.Context) scanner.Options {
	opts := scanner.Options{
		ExcludeDirs:       append(append([]string(nil), cfg.Index.ExcludeDirs...), c.StringSlice("exclude")...),
		IncludeExtensions: cfg.Index.IncludeExtensions,
		IncludeGlobs:      cfg.Index.IncludeGlobs,
	}
	if inc := c.StringSlice("include"); len(inc) > 0 {
		opts.IncludeGlobs = append(append([]string(nil), opts.IncludeGlobs...), inc...)
	}
	return opts
}

// indexOptions adapts cfg and CLI overrides into bulkindex.Options.
func indexOptions(cfg *config.Config, c *cli.Context) bulkindex.Options {
	opts := bulkindex.DefaultOptions()
	opts.BatchSize = cfg.Performance.BatchSize
	opts.ParallelWorkers = cfg.Performance.ParallelWorkers
	opts.MemoryLimitBytes = cfg.Performance.MemoryLimitBytes
	opts.StreamingThresholdFiles = cfg.Performance.StreamingThresholdFiles
	opts.MaxPatchesInMemory = cfg.Performance.MaxPatchesInMemory
	opts.ContinueOnError = cfg.FeatureFlags.ContinueOnError
	opts.RepoID = c.String("repo-id")
	return opts
}

// runBulkIndex wires scanner -> bulkindex -> graphstore -> resolver
// into a populated store, returning the bulkindex.Result for stats.
func runBulkIndex(ctx context.Context, root string, cfg *config.Config, engine *parserengine.Engine, store *graphstore.Store, c *cli.Context, log *logging.Logger) (*bulkindex.Result, error) {
	scan, err := scanner.Scan(root, scanOptions(cfg, c))
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	ix := bulkindex.New(engine, store, log)
	opts := indexOptions(cfg, c)
	result, err := ix.IndexRepo(ctx, root, scan, opts)
	if err != nil {
		return nil, fmt.Errorf("indexing repo: %w", err)
	}

	// Patches already drained into store under streaming mode
	// (bulkindex.Indexer.drain); batched mode retains them on
	// result.Patches instead, so apply those here.
	for _, p := range result.Patches {
		store.Apply(p)
	}

	resolved := resolver.Resolve(store, opts.RepoID, "")
	store.Apply(resolved)

	return result, nil
}

// populateContentIndex feeds one whole-file ContentChunk per scanned
// file into content, so search_content/content_stats have
// something to serve immediately after an index run. Per-span
// (doc-comment, function-body) chunking is a richer enrichment left
// for a future incremental pass; a whole-file Code chunk already
// satisfies every content-index invariant (tokenization, pattern
// lookup, file replacement on reindex).
func populateContentIndex(root string, scan scanner.ScanResult, content *contentindex.Index) {
	for _, f := range scan.Files {
		data, err := os.ReadFile(filepath.Join(root, f.Path))
		if err != nil {
			continue
		}
		chunk := ast.ContentChunk{
			ChunkID:     contentindex.NewChunkID(f.Path, 0),
			FilePath:    f.Path,
			ContentType: ast.ContentType{Category: "Code", Sub: string(f.Language)},
			Content:     data,
		}
		content.Update(f.Path, []ast.ContentChunk{chunk})
	}
}

func indexCommand(c *cli.Context) error {
	root := c.String("root")
	log := logging.New(os.Stderr, logLevel(c), "codeprism")

	cfg, engine, err := buildEngine(root, log)
	if err != nil {
		return err
	}

	store := graphstore.New()
	ctx := context.Background()
	result, err := runBulkIndex(ctx, root, cfg, engine, store, c, log)
	if err != nil {
		return err
	}

	fmt.Printf("files processed:  %d\n", result.FilesProcessed)
	fmt.Printf("errors:           %d\n", result.ErrorCount)
	fmt.Printf("nodes created:    %d\n", result.NodesCreated)
	fmt.Printf("edges created:    %d\n", result.EdgesCreated)
	fmt.Printf("duration:         %s\n", result.Duration)
	fmt.Printf("throughput:       %.1f files/sec\n", result.ThroughputFPS)
	fmt.Printf("streaming mode:   %v\n", result.Streaming)
	fmt.Printf("store nodes:      %d\n", store.NodeCount())
	fmt.Printf("store edges:      %d\n", store.EdgeCount())
	fmt.Printf("unresolved:       %d\n", store.UnresolvedCount())
	for _, f := range result.FailedFiles {
		fmt.Fprintf(os.Stderr, "failed: %s: %v\n", f.Path, f.Err)
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	root := c.String("root")
	// stdio MCP owns stdout; route our own logs to stderr and keep
	// them quiet unless --verbose was given.
	log := logging.New(os.Stderr, logLevel(c), "codeprism")
	log.Quiet(!c.Bool("verbose"))

	cfg, engine, err := buildEngine(root, log)
	if err != nil {
		return err
	}

	store := graphstore.New()
	scan, err := scanner.Scan(root, scanOptions(cfg, c))
	if err != nil {
		return fmt.Errorf("scanning %s: %w", root, err)
	}

	repoID := c.String("repo-id")
	ix := bulkindex.New(engine, store, log)
	opts := indexOptions(cfg, c)
	result, err := ix.IndexRepo(context.Background(), root, scan, opts)
	if err != nil {
		return fmt.Errorf("indexing repo: %w", err)
	}
	for _, p := range result.Patches {
		store.Apply(p)
	}
	resolved := resolver.Resolve(store, repoID, "")
	store.Apply(resolved)

	content := contentindex.New()
	populateContentIndex(root, scan, content)

	cache := anacache.New(
		anacache.WithMaxEntries(cfg.Cache.MaxEntries),
		anacache.WithMaxBytes(cfg.Cache.MaxBytes),
	)

	srv := mcpserver.New(mcpserver.Config{
		Name:    "codeprism-mcp-server",
		Version: Version,
		Store:   store,
		Content: content,
		Cache:   cache,
		Indexer: ix,
		RepoID:  repoID,
		Root:    root,
		Log:     log,
		Budget:  cfg.Sandbox,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Infof("codeprism-server: received shutdown signal")
		cancel()
	}()

	if err := srv.Start(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func logLevel(c *cli.Context) logging.Level {
	if c.Bool("verbose") {
		return logging.LevelInfo
	}
	return logging.LevelError
}
