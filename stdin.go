package main

import (
	"fmt"
	"io"
	"os"
)

const (
	stdinPath  = "-"
	stdinLabel = "<stdin>"
)

// readStdin reads r as a single file entry. Content beyond maxFileSize is
// not buffered; the entry is classified TooLarge instead.
func readStdin(r io.Reader) (FileEntry, error) {
	entry := FileEntry{Path: stdinPath, RelPath: stdinLabel}

	content, err := io.ReadAll(io.LimitReader(r, maxFileSize+1))
	if err != nil {
		return entry, fmt.Errorf("%w: reading stdin: %v", ErrIO, err)
	}
	entry.Size = int64(len(content))
	if entry.Size > maxFileSize {
		entry.Class = ClassTooLarge
		return entry, nil
	}

	prefix := content
	if len(prefix) > sniffBytes {
		prefix = prefix[:sniffBytes]
	}
	entry.Class = classifyBytes(prefix, len(content) > sniffBytes)
	if entry.Class == ClassText {
		entry.Content = content
	}
	return entry, nil
}

// stdinIsPiped reports whether stdin is a pipe or redirected file rather
// than a terminal or nothing at all.
func stdinIsPiped(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeNamedPipe != 0 || fi.Mode().IsRegular()
}
