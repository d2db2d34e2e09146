package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
	tiktokenloader "github.com/pkoukk/tiktoken-go-loader"
	hf "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	"go.uber.org/zap"
)

// Availability describes what a tokenizer needs before it can run.
type Availability int

const (
	AlwaysOffline Availability = iota
	RequiresNetwork
	RequiresCredentialAndNetwork
)

// CostClass is the per-call cost of a tokenizer.
type CostClass int

const (
	CostLocal  CostClass = iota // In-process, bounded by CPU
	CostRemote                  // One network round trip per file
)

// Descriptor is the static metadata of a tokenizer for one run.
type Descriptor struct {
	Name         string
	Availability Availability
	Cost         CostClass
}

// Tokenizer counts tokens in text. Implementations must be safe for
// concurrent use.
type Tokenizer interface {
	Descriptor() Descriptor
	CountTokens(ctx context.Context, text string) (int, error)
	Close()
}

// --- Tiktoken Wrapper ---

var bpeLoaderOnce sync.Once

// loadEncoding returns a tiktoken encoding, preferring the embedded BPE
// ranks. When an encoding is not embedded and the run may use the network,
// the default downloading loader is tried instead.
func loadEncoding(encoding string, offline bool, logger *zap.Logger) (*tiktoken.Tiktoken, error) {
	bpeLoaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktokenloader.NewOfflineLoader())
	})
	tke, err := tiktoken.GetEncoding(encoding)
	if err == nil {
		return tke, nil
	}
	if offline {
		return nil, fmt.Errorf("%w: encoding %s is not available offline: %v", ErrTokenizerConfig, encoding, err)
	}

	logger.Debug("encoding not embedded, downloading", zap.String("encoding", encoding), zap.Error(err))
	tiktoken.SetBpeLoader(tiktoken.NewDefaultBpeLoader())
	defer tiktoken.SetBpeLoader(tiktokenloader.NewOfflineLoader())
	tke, err = tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: loading encoding %s: %v", ErrTokenizerConfig, encoding, err)
	}
	return tke, nil
}

type TiktokenWrapper struct {
	name string
	ttk  *tiktoken.Tiktoken
}

func newTiktoken(name, encoding string, offline bool, logger *zap.Logger) (*TiktokenWrapper, error) {
	tke, err := loadEncoding(encoding, offline, logger)
	if err != nil {
		return nil, err
	}
	return &TiktokenWrapper{name: name, ttk: tke}, nil
}

func (w *TiktokenWrapper) Descriptor() Descriptor {
	return Descriptor{Name: w.name, Availability: AlwaysOffline, Cost: CostLocal}
}

func (w *TiktokenWrapper) CountTokens(_ context.Context, text string) (int, error) {
	return len(w.ttk.EncodeOrdinary(text)), nil
}

func (w *TiktokenWrapper) Close() {}

// --- HuggingFace (sugarme) Wrapper ---

type HFTokenizerWrapper struct {
	name         string
	availability Availability

	mu  sync.Mutex // sugarme tokenizers keep per-call state
	htk *hf.Tokenizer
}

// newHFTokenizer loads a tokenizer.json from a local file, or resolves a
// Hugging Face model id through the hub cache.
func newHFTokenizer(name, source string, logger *zap.Logger) (*HFTokenizerWrapper, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: %s needs hf_tokenizer (a tokenizer.json path or model id)", ErrTokenizerConfig, name)
	}

	availability := hfAvailability(source)
	path := source
	if availability == RequiresNetwork {
		logger.Debug("resolving hugging face tokenizer", zap.String("model", source))
		cached, err := hf.CachedPath(source, "tokenizer.json")
		if err != nil {
			return nil, fmt.Errorf("%w: resolving %s: %v", ErrTokenizerConfig, source, err)
		}
		path = cached
	}

	htk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: loading %s: %v", ErrTokenizerConfig, path, err)
	}
	return &HFTokenizerWrapper{name: name, availability: availability, htk: htk}, nil
}

// hfAvailability classifies an hf_tokenizer source: an existing file is
// local, anything else is a hub model id.
func hfAvailability(source string) Availability {
	if info, err := os.Stat(source); err == nil && info.Mode().IsRegular() {
		return AlwaysOffline
	}
	return RequiresNetwork
}

func (w *HFTokenizerWrapper) Descriptor() Descriptor {
	return Descriptor{Name: w.name, Availability: w.availability, Cost: CostLocal}
}

func (w *HFTokenizerWrapper) CountTokens(_ context.Context, text string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	en, err := w.htk.EncodeSingle(text)
	if err != nil {
		return 0, fmt.Errorf("hf encode: %w", err)
	}
	return len(en.Tokens), nil
}

func (w *HFTokenizerWrapper) Close() {}
