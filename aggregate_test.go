package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func scenarioEntries() []FileEntry {
	return []FileEntry{
		{RelPath: "a.txt", Class: ClassText},
		{RelPath: "b.txt", Class: ClassText},
		{RelPath: "img.png", Class: ClassBinary},
	}
}

func TestAggregateScenario(t *testing.T) {
	results := [][]CountResult{{{Count: 50}}, {{Count: 60}}, nil}
	files, total := Aggregate(scenarioEntries(), []string{"o200k"}, results, ModeSingle)

	require.Len(t, files, 3)
	assert.Equal(t, []TokenCell{{Tokenizer: "o200k", Count: 50, OK: true}}, files[0].Cells)
	assert.Nil(t, files[2].Cells)
	assert.Equal(t, ClassBinary, files[2].Class)
	assert.Nil(t, files[0].Range)
	assert.Equal(t, 110, total.Max())
	assert.Nil(t, total.Range)
}

func TestAggregateSkippedFiles(t *testing.T) {
	entries := []FileEntry{
		{RelPath: "big.log", Class: ClassTooLarge},
		{RelPath: "secret", Class: ClassUnreadable, Err: errors.New("permission denied")},
		{RelPath: "odd", Class: ClassUnreadable},
	}
	files, total := Aggregate(entries, []string{"o200k"}, make([][]CountResult, 3), ModeSingle)

	assert.Equal(t, "too large", files[0].Skip)
	assert.Equal(t, "permission denied", files[1].Skip)
	assert.Equal(t, "unreadable", files[2].Skip)
	assert.Zero(t, total.Max())
}

func TestAggregateAllCellsFailed(t *testing.T) {
	boom := errors.New("boom")
	results := [][]CountResult{{{Err: boom}, {Err: boom}}}
	files, total := Aggregate([]FileEntry{{RelPath: "x.go", Class: ClassText}}, []string{"o200k", "claude"}, results, ModeRange)

	assert.True(t, files[0].Failed)
	assert.Nil(t, files[0].Range)
	assert.Zero(t, files[0].MaxCount())
	require.NotNil(t, total.Range)
	assert.Equal(t, CountRange{}, *total.Range)
}

func TestAggregateRangeTotalsBeforeReduction(t *testing.T) {
	// Summing per-file minimums would give 10+5=15; the total range must
	// come from per-tokenizer sums: o200k=10+9=19, claude=12+5=17.
	entries := []FileEntry{{RelPath: "a", Class: ClassText}, {RelPath: "b", Class: ClassText}}
	results := [][]CountResult{
		{{Count: 10}, {Count: 12}},
		{{Count: 9}, {Count: 5}},
	}
	files, total := Aggregate(entries, []string{"o200k", "claude"}, results, ModeRange)

	assert.Equal(t, &CountRange{Min: 10, Max: 12}, files[0].Range)
	assert.Equal(t, &CountRange{Min: 5, Max: 9}, files[1].Range)
	assert.Equal(t, &CountRange{Min: 17, Max: 19}, total.Range)
}

func TestAggregatePartialFailureKeepsOtherCells(t *testing.T) {
	results := [][]CountResult{{{Count: 40}, {Err: errors.New("rate limit exceeded after retries")}}}
	files, total := Aggregate([]FileEntry{{RelPath: "a", Class: ClassText}}, []string{"o200k", "claude"}, results, ModeRange)

	assert.False(t, files[0].Failed)
	assert.Equal(t, &CountRange{Min: 40, Max: 40}, files[0].Range)
	assert.Equal(t, 40, total.Cells[0].Count)
	assert.Equal(t, 0, total.Cells[1].Count)
}

func TestMergeTotals(t *testing.T) {
	reports := []RootReport{
		{Total: AggregatedTotal{Cells: []TokenCell{{Tokenizer: "o200k", Count: 3, OK: true}}}},
		{Total: AggregatedTotal{Cells: []TokenCell{{Tokenizer: "o200k", Count: 4, OK: true}, {Tokenizer: "claude", Count: 9, OK: true}}}},
	}
	assert.Equal(t, map[string]int{"o200k": 7, "claude": 9}, mergeTotals(reports))
}

func TestAggregateProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ntok := rapid.IntRange(1, 3).Draw(t, "tokenizers")
		names := []string{"o200k", "claude", "cl100k"}[:ntok]
		nfiles := rapid.IntRange(0, 12).Draw(t, "files")
		classes := []Classification{ClassText, ClassBinary, ClassTooLarge, ClassUnreadable}

		entries := make([]FileEntry, nfiles)
		results := make([][]CountResult, nfiles)
		want := make([]int, ntok)
		for i := range entries {
			class := rapid.SampledFrom(classes).Draw(t, "class")
			entries[i] = FileEntry{RelPath: "f", Class: class}
			if class != ClassText {
				continue
			}
			results[i] = make([]CountResult, ntok)
			for ti := range results[i] {
				if rapid.Bool().Draw(t, "fail") {
					results[i][ti] = CountResult{Err: errors.New("x")}
					continue
				}
				n := rapid.IntRange(0, 100000).Draw(t, "count")
				results[i][ti] = CountResult{Count: n}
				want[ti] += n
			}
		}

		files, total := Aggregate(entries, names, results, ModeRange)

		for ti, c := range total.Cells {
			if c.Count != want[ti] {
				t.Fatalf("total[%s] = %d, want %d", c.Tokenizer, c.Count, want[ti])
			}
		}
		for _, f := range files {
			if f.Class != ClassText {
				if f.Cells != nil || f.Range != nil {
					t.Fatalf("non-text file %v has counts", f.Class)
				}
				continue
			}
			if f.Range == nil {
				if !f.Failed {
					t.Fatalf("range missing on a file with successful cells")
				}
				continue
			}
			if f.Range.Min > f.Range.Max {
				t.Fatalf("min %d > max %d", f.Range.Min, f.Range.Max)
			}
			var hasMin, hasMax bool
			for _, c := range f.Cells {
				hasMin = hasMin || (c.OK && c.Count == f.Range.Min)
				hasMax = hasMax || (c.OK && c.Count == f.Range.Max)
			}
			if !hasMin || !hasMax {
				t.Fatalf("range %v is not drawn from cells %v", *f.Range, f.Cells)
			}
		}
	})
}
