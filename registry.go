package main

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// catalogEntry is a tokenizer the tool knows about.
type catalogEntry struct {
	desc    Descriptor
	inRange bool // Selected automatically when no -t is given
	open    func() (Tokenizer, error)
}

// Registry decides which tokenizers are eligible for a run and opens them.
type Registry struct {
	catalog       []catalogEntry
	offline       bool
	hasCredential bool
	logger        *zap.Logger
}

func newRegistry(cfg Config, logger *zap.Logger) *Registry {
	catalog := []catalogEntry{
		{
			desc:    Descriptor{Name: "o200k", Availability: AlwaysOffline, Cost: CostLocal},
			inRange: true,
			open: func() (Tokenizer, error) {
				return newTiktoken("o200k", "o200k_base", cfg.Offline, logger)
			},
		},
		{
			desc:    Descriptor{Name: claudeTokenizerName, Availability: RequiresCredentialAndNetwork, Cost: CostRemote},
			inRange: true,
			open: func() (Tokenizer, error) {
				return newClaudeTokenizer(cfg.APIKey, cfg.ClaudeModel, cfg.ClaudeURL, cfg.RequestTimeout), nil
			},
		},
		{
			desc: Descriptor{Name: "cl100k", Availability: AlwaysOffline, Cost: CostLocal},
			open: func() (Tokenizer, error) {
				return newTiktoken("cl100k", "cl100k_base", cfg.Offline, logger)
			},
		},
		{
			desc: Descriptor{Name: "hf", Availability: hfAvailability(cfg.HFTokenizer), Cost: CostLocal},
			open: func() (Tokenizer, error) {
				return newHFTokenizer("hf", cfg.HFTokenizer, logger)
			},
		},
	}
	return &Registry{
		catalog:       catalog,
		offline:       cfg.Offline,
		hasCredential: cfg.APIKey != "",
		logger:        logger,
	}
}

// Names lists every known tokenizer name in catalog order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.catalog))
	for i, e := range r.catalog {
		names[i] = e.desc.Name
	}
	return names
}

// Selection is the outcome of eligibility: which tokenizers run and how
// their counts are displayed.
type Selection struct {
	Entries []catalogEntry
	Mode    CountMode
	// MissingCredential is set when range mode dropped a tokenizer for lack
	// of a credential.
	MissingCredential []string
}

// Descriptors returns the selected descriptors in display order.
func (s Selection) Descriptors() []Descriptor {
	out := make([]Descriptor, len(s.Entries))
	for i, e := range s.Entries {
		out[i] = e.desc
	}
	return out
}

// selectTokenizers computes the eligible set without side effects.
func selectTokenizers(catalog []catalogEntry, explicit []string, offline, hasCredential bool) (Selection, error) {
	var sel Selection

	if len(explicit) == 0 {
		for _, e := range catalog {
			if !e.inRange {
				continue
			}
			switch e.desc.Availability {
			case RequiresCredentialAndNetwork:
				if offline {
					continue
				}
				if !hasCredential {
					sel.MissingCredential = append(sel.MissingCredential, e.desc.Name)
					continue
				}
			case RequiresNetwork:
				if offline {
					continue
				}
			}
			sel.Entries = append(sel.Entries, e)
		}
		if len(sel.Entries) == 0 {
			return sel, ErrNoEligibleTokenizers
		}
		sel.Mode = ModeRange
		if len(sel.Entries) == 1 {
			sel.Mode = ModeSingle
		}
		return sel, nil
	}

	seen := make(map[string]bool, len(explicit))
	for _, raw := range explicit {
		name := strings.ToLower(strings.TrimSpace(raw))
		if seen[name] {
			continue
		}
		seen[name] = true

		e, ok := lookupCatalog(catalog, name)
		if !ok {
			return sel, fmt.Errorf("%w: %q (known: %s)", ErrUnknownTokenizer, raw, strings.Join(catalogNames(catalog), ", "))
		}
		switch e.desc.Availability {
		case RequiresCredentialAndNetwork:
			if offline {
				return sel, fmt.Errorf("%w: %s", ErrOfflineConflict, name)
			}
			if !hasCredential {
				return sel, fmt.Errorf("%w: required by -t %s", ErrNoAPIKey, name)
			}
		case RequiresNetwork:
			if offline {
				return sel, fmt.Errorf("%w: %s", ErrOfflineConflict, name)
			}
		}
		sel.Entries = append(sel.Entries, e)
	}
	if len(sel.Entries) == 0 {
		return sel, ErrNoEligibleTokenizers
	}
	sel.Mode = ModeNamed
	if len(sel.Entries) == 1 {
		sel.Mode = ModeSingle
	}
	return sel, nil
}

func lookupCatalog(catalog []catalogEntry, name string) (catalogEntry, bool) {
	for _, e := range catalog {
		if e.desc.Name == name {
			return e, true
		}
	}
	return catalogEntry{}, false
}

func catalogNames(catalog []catalogEntry) []string {
	names := make([]string, len(catalog))
	for i, e := range catalog {
		names[i] = e.desc.Name
	}
	return names
}

// Select resolves the eligible set for explicit (possibly empty) names.
// A credential missing in range mode produces a single warning.
func (r *Registry) Select(explicit []string) (Selection, error) {
	sel, err := selectTokenizers(r.catalog, explicit, r.offline, r.hasCredential)
	if err != nil {
		return sel, err
	}
	for _, name := range sel.MissingCredential {
		r.logger.Warn("tokenizer disabled: API key not set (TREETOK_API_KEY or ANTHROPIC_API_KEY)", zap.String("tokenizer", name))
	}
	for _, d := range sel.Descriptors() {
		r.logger.Debug("tokenizer selected", zap.String("tokenizer", d.Name))
	}
	return sel, nil
}

// Open instantiates the selected tokenizers. On failure, tokenizers opened
// so far are closed.
func (r *Registry) Open(sel Selection) ([]Tokenizer, error) {
	toks := make([]Tokenizer, 0, len(sel.Entries))
	for _, e := range sel.Entries {
		tk, err := e.open()
		if err != nil {
			closeAll(toks)
			return nil, fmt.Errorf("initializing tokenizer %s: %w", e.desc.Name, err)
		}
		toks = append(toks, tk)
	}
	return toks, nil
}

func closeAll(toks []Tokenizer) {
	for _, tk := range toks {
		tk.Close()
	}
}

func tokenizerNames(toks []Tokenizer) []string {
	names := make([]string, len(toks))
	for i, tk := range toks {
		names[i] = tk.Descriptor().Name
	}
	return names
}
