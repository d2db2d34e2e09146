package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"go.uber.org/zap"
)

// isGitURL checks if the input looks like a remote Git repository rather
// than a local path. An existing local path always wins.
func isGitURL(input string) bool {
	if _, err := os.Stat(input); err == nil {
		return false
	}
	if strings.HasPrefix(input, "git@") || strings.HasPrefix(input, "ssh://") {
		return true
	}
	return (strings.HasPrefix(input, "https://") || strings.HasPrefix(input, "http://")) &&
		strings.HasSuffix(input, ".git")
}

// cloneGitRepo shallow-clones url into a temporary directory. The returned
// cleanup removes it.
func cloneGitRepo(ctx context.Context, url string, logger *zap.Logger) (string, func(), error) {
	tempDir, err := os.MkdirTemp("", "treetok-git-")
	if err != nil {
		return "", nil, fmt.Errorf("%w: creating temporary directory: %v", ErrIO, err)
	}
	cleanup := func() {
		if err := os.RemoveAll(tempDir); err != nil {
			logger.Warn("could not remove clone", zap.String("path", tempDir), zap.Error(err))
		}
	}

	logger.Debug("cloning repository", zap.String("url", url), zap.String("dir", tempDir))
	_, err = git.PlainCloneContext(ctx, tempDir, false, &git.CloneOptions{
		URL:           url,
		Depth:         1,
		ReferenceName: plumbing.HEAD,
		SingleBranch:  true,
	})
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("%w: cloning %s: %v", ErrPathNotFound, url, err)
	}
	return tempDir, cleanup, nil
}
