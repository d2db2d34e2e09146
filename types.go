package main

// Classification is the content kind assigned to a file by classifyFile.
type Classification int

const (
	ClassText Classification = iota
	ClassBinary
	ClassTooLarge
	ClassUnreadable
)

func (c Classification) String() string {
	switch c {
	case ClassText:
		return "text"
	case ClassBinary:
		return "binary"
	case ClassTooLarge:
		return "too_large"
	case ClassUnreadable:
		return "error"
	default:
		return "unknown"
	}
}

// Counted reports whether files of this class are tokenized and included in totals.
func (c Classification) Counted() bool {
	return c == ClassText
}

// FileEntry holds information about a discovered file.
type FileEntry struct {
	Path    string // Absolute path, used for reading
	RelPath string // Slash-separated path relative to the walk root, used for display
	Size    int64
	Class   Classification
	Err     error  // Set for ClassUnreadable
	Content []byte // Pre-loaded content (stdin); nil for files on disk
}

// CountResult is the outcome of one (file, tokenizer) tokenization.
type CountResult struct {
	Count int
	Err   error
}

// OK reports whether the tokenization succeeded.
func (r CountResult) OK() bool {
	return r.Err == nil
}

// CountMode decides how per-file counts are reduced for display.
type CountMode int

const (
	// ModeSingle shows one scalar count (exactly one active tokenizer).
	ModeSingle CountMode = iota
	// ModeNamed shows every tokenizer's count (explicit multi-selection).
	ModeNamed
	// ModeRange shows min and max across tokenizers (implicit selection).
	ModeRange
)

// CountRange is an inclusive min/max pair.
type CountRange struct {
	Min int
	Max int
}

// TokenCell is one tokenizer's count for a file or a total.
type TokenCell struct {
	Tokenizer string
	Count     int
	OK        bool
}

// AggregatedFile is a display-ready row for one file.
type AggregatedFile struct {
	RelPath string
	Class   Classification
	Skip    string      // Reason for too-large or unreadable files
	Cells   []TokenCell // One per active tokenizer, in registry order; nil unless text
	Range   *CountRange // Set in ModeRange when at least one cell succeeded
	Failed  bool        // Text file whose every cell failed
}

// MaxCount returns the largest successful count, or 0.
func (f AggregatedFile) MaxCount() int {
	best := 0
	for _, c := range f.Cells {
		if c.OK && c.Count > best {
			best = c.Count
		}
	}
	return best
}

// AggregatedTotal is the grand total for one root.
type AggregatedTotal struct {
	Cells []TokenCell // Per active tokenizer sums of successful counts
	Range *CountRange // Set in ModeRange
}

// Max returns the largest per-tokenizer total.
func (t AggregatedTotal) Max() int {
	best := 0
	for _, c := range t.Cells {
		if c.Count > best {
			best = c.Count
		}
	}
	return best
}

// RootReport is everything the renderer needs for one root. Files are in
// traversal order; directories are implied by their paths.
type RootReport struct {
	Label string
	Names []string // Active tokenizers, in column order
	Files []AggregatedFile
	Total AggregatedTotal
	Mode  CountMode
}
