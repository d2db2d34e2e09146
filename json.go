package main

import (
	"encoding/json"
	"fmt"
	"io"
)

type jsonReport struct {
	Root  string         `json:"root"`
	Files []jsonFile     `json:"files"`
	Total map[string]int `json:"total"`
}

type jsonFile struct {
	Path    string          `json:"path"`
	Type    string          `json:"type"`
	Tokens  map[string]*int `json:"tokens"` // nil map encodes as null
	Skipped string          `json:"skipped,omitempty"`
}

func toJSONReport(rep RootReport) jsonReport {
	out := jsonReport{
		Root:  rep.Label,
		Files: make([]jsonFile, 0, len(rep.Files)),
		Total: make(map[string]int, len(rep.Total.Cells)),
	}
	for _, f := range rep.Files {
		jf := jsonFile{Path: f.RelPath, Type: f.Class.String(), Skipped: f.Skip}
		if f.Class.Counted() {
			jf.Tokens = make(map[string]*int, len(f.Cells))
			for _, c := range f.Cells {
				if c.OK {
					n := c.Count
					jf.Tokens[c.Tokenizer] = &n
				} else {
					jf.Tokens[c.Tokenizer] = nil
				}
			}
		}
		out.Files = append(out.Files, jf)
	}
	for _, c := range rep.Total.Cells {
		out.Total[c.Tokenizer] = c.Count
	}
	return out
}

// writeJSON prints one object for a single root and an array for several.
// Files keep traversal order.
func writeJSON(w io.Writer, reports []RootReport) error {
	var v any
	if len(reports) == 1 {
		v = toJSONReport(reports[0])
	} else {
		all := make([]jsonReport, len(reports))
		for i, r := range reports {
			all[i] = toJSONReport(r)
		}
		v = all
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("%w: writing output: %v", ErrIO, err)
	}
	return nil
}
