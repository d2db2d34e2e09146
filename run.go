package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// rootSource is one input root after resolution.
type rootSource struct {
	arg   string // As given on the command line
	path  string // Local directory or file to walk; empty for stdin
	isDir bool
	stdin bool
	git   bool
}

// Pipeline carries the collaborators of one run.
type Pipeline struct {
	cfg        Config
	logger     *zap.Logger
	walker     *Walker
	dispatcher *Dispatcher
	names      []string
	mode       CountMode
}

// IO bundles the process streams used by run.
type IO struct {
	Stdin      io.Reader
	StdinPiped bool
	Stdout     io.Writer
}

// run executes a full treetok invocation. Fatal conditions are all checked
// before any tokenization starts and before anything is written to stdout.
func run(ctx context.Context, cfg Config, streams IO, logger *zap.Logger) error {
	paths := cfg.Paths
	if len(paths) == 0 {
		if streams.StdinPiped {
			paths = []string{stdinPath}
		} else {
			paths = []string{"."}
		}
	}

	reg := newRegistry(cfg, logger)
	sel, err := reg.Select(cfg.Tokenizers)
	if err != nil {
		return err
	}

	sources := make([]rootSource, 0, len(paths))
	for _, p := range paths {
		switch {
		case p == stdinPath:
			sources = append(sources, rootSource{arg: p, stdin: true})
		case isGitURL(p):
			if cfg.Offline {
				return fmt.Errorf("%w: cannot clone %s with --offline", ErrBadInvocation, p)
			}
			sources = append(sources, rootSource{arg: p, git: true, isDir: true})
		default:
			if err := checkRoot(p); err != nil {
				return err
			}
			info, _ := os.Stat(p)
			sources = append(sources, rootSource{arg: p, path: p, isDir: info.IsDir()})
		}
	}

	toks, err := reg.Open(sel)
	if err != nil {
		return err
	}
	defer closeAll(toks)

	var stdinEntry *FileEntry
	if slices.ContainsFunc(sources, func(s rootSource) bool { return s.stdin }) {
		e, err := readStdin(streams.Stdin)
		if err != nil {
			return err
		}
		stdinEntry = &e
	}

	for i := range sources {
		if !sources[i].git {
			continue
		}
		dir, cleanup, err := cloneGitRepo(ctx, sources[i].arg, logger)
		if err != nil {
			return err
		}
		defer cleanup()
		sources[i].path = dir
	}

	depth := cfg.Depth
	if cfg.Flat {
		depth = 0
	}
	p := &Pipeline{
		cfg:    cfg,
		logger: logger,
		walker: newWalker(WalkOptions{
			FollowIgnoreRules: !cfg.NoIgnore,
			ShowHidden:        cfg.Hidden,
			MaxDepth:          depth,
		}, logger),
		dispatcher: newDispatcher(toks, cfg, logger),
		names:      tokenizerNames(toks),
		mode:       sel.Mode,
	}

	reports := make([]RootReport, len(sources))
	for i, src := range sources {
		var entries []FileEntry
		if src.stdin {
			entries = []FileEntry{*stdinEntry}
		} else {
			entries = p.collect(ctx, src.path)
		}
		reports[i] = p.report(ctx, rootLabel(src), entries)
	}

	return p.emit(streams.Stdout, sources, reports)
}

func rootLabel(src rootSource) string {
	if src.stdin {
		return stdinLabel
	}
	return src.arg
}

// collect walks root and classifies its files on a bounded pool. The
// returned entries keep traversal order.
func (p *Pipeline) collect(ctx context.Context, root string) []FileEntry {
	var walked []WalkEntry
	for e := range p.walker.Walk(root) {
		if ctx.Err() != nil {
			break
		}
		if !e.IsDir {
			walked = append(walked, e)
		}
	}

	entries := make([]FileEntry, len(walked))
	workers := p.cfg.Threads
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i, w := range walked {
		g.Go(func() error {
			entries[i] = classifyFile(w.Path, w.RelPath, p.logger)
			return nil
		})
	}
	_ = g.Wait()
	return entries
}

func (p *Pipeline) report(ctx context.Context, label string, entries []FileEntry) RootReport {
	results := p.dispatcher.Run(ctx, entries)
	files, total := Aggregate(entries, p.names, results, p.mode)
	return RootReport{
		Label: label,
		Names: p.names,
		Files: files,
		Total: total,
		Mode:  p.mode,
	}
}

// emit writes the selected output form. With --copy the same text also goes
// to the clipboard.
func (p *Pipeline) emit(w io.Writer, sources []rootSource, reports []RootReport) error {
	var out string
	switch {
	case p.cfg.Count:
		best := 0
		for _, n := range mergeTotals(reports) {
			best = max(best, n)
		}
		out = strconv.Itoa(best) + "\n"
	case p.cfg.JSON:
		var b strings.Builder
		if err := writeJSON(&b, reports); err != nil {
			return err
		}
		out = b.String()
	default:
		r := newRenderer(RenderOptions{
			Flat:  p.cfg.Flat,
			Sort:  p.cfg.Sort,
			Color: useColor(p.cfg.NoColor) && !p.cfg.Copy,
			Depth: p.cfg.Depth,
		})
		parts := make([]string, len(reports))
		for i, rep := range reports {
			parts[i] = r.Render(rep, sources[i].isDir)
		}
		out = strings.Join(parts, "\n")
	}

	if _, err := io.WriteString(w, out); err != nil {
		return fmt.Errorf("%w: writing output: %v", ErrIO, err)
	}
	if p.cfg.Copy {
		if err := clipboard.WriteAll(out); err != nil {
			p.logger.Warn("could not copy to clipboard", zap.Error(err))
		}
	}
	return nil
}
