package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/monochromegane/go-gitignore"
	"go.uber.org/zap"
)

// ignoreFileNames are read in every directory when ignore rules are followed.
var ignoreFileNames = []string{".gitignore", ".ignore"}

// WalkOptions is the immutable configuration snapshot for a walk.
type WalkOptions struct {
	FollowIgnoreRules bool
	ShowHidden        bool
	MaxDepth          int // 0 for no limit
}

// WalkEntry is one filesystem entry produced by Walker.Walk.
type WalkEntry struct {
	Path    string // Absolute path
	RelPath string // Slash-separated, relative to the walk root
	IsDir   bool
	Depth   int // Number of path components in RelPath
}

// Walker enumerates files under a root. Warnings about skipped entries go to
// the logger, never into the sequence.
type Walker struct {
	opts   WalkOptions
	logger *zap.Logger
}

func newWalker(opts WalkOptions, logger *zap.Logger) *Walker {
	return &Walker{opts: opts, logger: logger}
}

// ignoreRule is one pattern line of an ignore file. The matcher holds the
// pattern without its leading "!", so a match can be told apart from a
// negated match.
type ignoreRule struct {
	matcher gitignore.IgnoreMatcher
	negate  bool
}

// ignoreChain is an immutable stack of rule sets, one per ignore file, the
// deepest on top. The last matching rule of the deepest file with an opinion
// decides, as in git.
type ignoreChain struct {
	parent *ignoreChain
	rules  []ignoreRule
}

func (c *ignoreChain) ignored(path string, isDir bool) bool {
	for n := c; n != nil; n = n.parent {
		for i := len(n.rules) - 1; i >= 0; i-- {
			if n.rules[i].matcher.Match(path, isDir) {
				return !n.rules[i].negate
			}
		}
	}
	return false
}

// extend returns the chain for dir's children.
func (c *ignoreChain) extend(dir string, logger *zap.Logger) *ignoreChain {
	chain := c
	for _, name := range ignoreFileNames {
		p := filepath.Join(dir, name)
		data, err := os.ReadFile(p)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				logger.Warn("could not read ignore file", zap.String("path", p), zap.Error(err))
			}
			continue
		}
		if rules := parseIgnoreRules(data, dir); len(rules) > 0 {
			chain = &ignoreChain{parent: chain, rules: rules}
		}
	}
	return chain
}

// parseIgnoreRules builds one matcher per pattern line, relative to base.
func parseIgnoreRules(data []byte, base string) []ignoreRule {
	var rules []ignoreRule
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r \t")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rule := ignoreRule{}
		if strings.HasPrefix(line, "!") {
			rule.negate = true
			line = line[1:]
		}
		if line == "" {
			continue
		}
		rule.matcher = gitignore.NewGitIgnoreFromReader(base, strings.NewReader(line))
		rules = append(rules, rule)
	}
	return rules
}

// parentIgnores loads ignore files from the directories above root, up to
// and including the enclosing git work tree. Outside a work tree nothing
// above root applies.
func parentIgnores(root string, logger *zap.Logger) *ignoreChain {
	if _, err := os.Stat(filepath.Join(root, ".git")); err == nil {
		return nil
	}
	var dirs []string
	found := false
	for dir := filepath.Dir(root); ; dir = filepath.Dir(dir) {
		dirs = append(dirs, dir)
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			found = true
			break
		}
		if filepath.Dir(dir) == dir {
			break
		}
	}
	if !found {
		return nil
	}

	var chain *ignoreChain
	for i := len(dirs) - 1; i >= 0; i-- {
		chain = chain.extend(dirs[i], logger)
	}
	return chain
}

// Walk returns a lazy, depth-first sequence of entries under root. Children
// are visited in name order, so the sequence is stable for a given snapshot.
// A root that is a regular file yields just that file.
func (w *Walker) Walk(root string) iter.Seq[WalkEntry] {
	return func(yield func(WalkEntry) bool) {
		abs, err := filepath.Abs(root)
		if err != nil {
			w.logger.Warn("cannot resolve path", zap.String("path", root), zap.Error(err))
			return
		}
		info, err := os.Stat(abs)
		if err != nil {
			w.logger.Warn("cannot access path", zap.String("path", root), zap.Error(err))
			return
		}
		if !info.IsDir() {
			yield(WalkEntry{Path: abs, RelPath: filepath.Base(abs), Depth: 1})
			return
		}

		var chain *ignoreChain
		if w.opts.FollowIgnoreRules {
			chain = parentIgnores(abs, w.logger).extend(abs, w.logger)
		}
		w.walkDir(abs, "", 0, chain, []os.FileInfo{info}, yield)
	}
}

// walkDir visits the children of dir. It returns false once yield asks to stop.
func (w *Walker) walkDir(dir, rel string, depth int, chain *ignoreChain, ancestors []os.FileInfo, yield func(WalkEntry) bool) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.logger.Warn("cannot read directory", zap.String("path", dir), zap.Error(err))
		return true
	}

	for _, d := range entries {
		name := d.Name()
		if name == ".git" {
			continue
		}
		if !w.opts.ShowHidden && isHidden(name) {
			continue
		}

		path := filepath.Join(dir, name)
		childRel := name
		if rel != "" {
			childRel = rel + "/" + name
		}
		childDepth := depth + 1
		if w.opts.MaxDepth > 0 && childDepth > w.opts.MaxDepth {
			continue
		}

		info, ok := w.resolve(path, d, ancestors)
		if !ok {
			continue
		}
		isDir := info.IsDir()
		if !isDir && !info.Mode().IsRegular() {
			// Sockets, devices and pipes have no content to count.
			continue
		}
		if chain.ignored(path, isDir) {
			continue
		}

		entry := WalkEntry{Path: path, RelPath: childRel, IsDir: isDir, Depth: childDepth}
		if !yield(entry) {
			return false
		}
		if !isDir {
			continue
		}

		childChain := chain
		if w.opts.FollowIgnoreRules {
			childChain = chain.extend(path, w.logger)
		}
		if !w.walkDir(path, childRel, childDepth, childChain, append(ancestors, info), yield) {
			return false
		}
	}
	return true
}

// resolve returns the info to use for an entry, following symlinks. Broken
// links and links that loop back onto an ancestor are skipped with a warning.
func (w *Walker) resolve(path string, d fs.DirEntry, ancestors []os.FileInfo) (os.FileInfo, bool) {
	if d.Type()&fs.ModeSymlink == 0 {
		info, err := d.Info()
		if err != nil {
			w.logger.Warn("cannot stat entry", zap.String("path", path), zap.Error(err))
			return nil, false
		}
		return info, true
	}

	info, err := os.Stat(path)
	if err != nil {
		w.logger.Warn("skipping broken symlink", zap.String("path", path), zap.Error(err))
		return nil, false
	}
	if info.IsDir() {
		for _, a := range ancestors {
			if os.SameFile(a, info) {
				w.logger.Warn("skipping symlink cycle", zap.String("path", path))
				return nil, false
			}
		}
	}
	return info, true
}

// isHidden checks if a base name is hidden (starts with '.').
func isHidden(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return len(name) > 0 && name[0] == '.'
}

// checkRoot verifies that a local root exists and, for directories, can be
// listed. Both failures are fatal for the run.
func checkRoot(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}
	if info.IsDir() {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrPathNotFound, path, err)
		}
		defer f.Close()
		if _, err := f.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %s: %v", ErrPathNotFound, path, err)
		}
	}
	return nil
}
