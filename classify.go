package main

import (
	"errors"
	"io"
	"os"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	maxFileSize = 3 * 1024 * 1024 // Files above this are not tokenized
	sniffBytes  = 8 * 1024        // Prefix inspected by classifyFile
)

// classifyFile decides a file's class from its size and a bounded prefix.
// It never reads more than sniffBytes of content. Unreadable files get a
// warning on logger and ClassUnreadable.
func classifyFile(path, relPath string, logger *zap.Logger) FileEntry {
	entry := FileEntry{Path: path, RelPath: relPath}

	info, err := os.Stat(path)
	if err != nil {
		return unreadable(entry, err, logger)
	}
	entry.Size = info.Size()
	if entry.Size > maxFileSize {
		entry.Class = ClassTooLarge
		return entry
	}

	f, err := os.Open(path)
	if err != nil {
		return unreadable(entry, err, logger)
	}
	defer f.Close()

	buf := make([]byte, sniffBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return unreadable(entry, err, logger)
	}
	entry.Class = classifyBytes(buf[:n], n == sniffBytes)
	return entry
}

func unreadable(entry FileEntry, err error, logger *zap.Logger) FileEntry {
	logger.Warn("cannot read file", zap.String("path", entry.RelPath), zap.Error(err))
	entry.Class = ClassUnreadable
	entry.Err = err
	return entry
}

// classifyBytes sniffs a content prefix. truncated means more content
// follows, so a rune cut off at the end of the prefix is tolerated.
func classifyBytes(prefix []byte, truncated bool) Classification {
	if isTextPrefix(prefix, truncated) {
		return ClassText
	}
	return ClassBinary
}

// isTextPrefix reports whether prefix is valid UTF-8. NUL is a valid code
// point, so it does not make a file binary on its own.
func isTextPrefix(prefix []byte, truncated bool) bool {
	if utf8.Valid(prefix) {
		return true
	}
	if !truncated {
		return false
	}

	// Find the start of the last rune; it may be split by the prefix boundary.
	start := len(prefix) - 1
	for start > 0 && len(prefix)-start < utf8.UTFMax && !utf8.RuneStart(prefix[start]) {
		start--
	}
	tail := prefix[start:]
	return !utf8.FullRune(tail) && utf8.Valid(prefix[:start])
}
