package main

// Aggregate folds classifications and dispatch results into display rows
// and a total. results is indexed like entries, then like names; rows for
// files that are not text are ignored.
func Aggregate(entries []FileEntry, names []string, results [][]CountResult, mode CountMode) ([]AggregatedFile, AggregatedTotal) {
	files := make([]AggregatedFile, len(entries))
	sums := make([]int, len(names))

	for i, e := range entries {
		af := AggregatedFile{RelPath: e.RelPath, Class: e.Class}
		switch e.Class {
		case ClassTooLarge:
			af.Skip = "too large"
		case ClassUnreadable:
			af.Skip = "unreadable"
			if e.Err != nil {
				af.Skip = e.Err.Error()
			}
		case ClassText:
			af.Cells = make([]TokenCell, len(names))
			ok := 0
			for ti, name := range names {
				cell := TokenCell{Tokenizer: name}
				if i < len(results) && ti < len(results[i]) && results[i][ti].OK() {
					cell.Count = results[i][ti].Count
					cell.OK = true
					sums[ti] += cell.Count
					ok++
				}
				af.Cells[ti] = cell
			}
			af.Failed = ok == 0
			if mode == ModeRange && !af.Failed {
				af.Range = cellRange(af.Cells)
			}
		}
		files[i] = af
	}

	total := AggregatedTotal{Cells: make([]TokenCell, len(names))}
	for ti, name := range names {
		total.Cells[ti] = TokenCell{Tokenizer: name, Count: sums[ti], OK: true}
	}
	if mode == ModeRange && len(names) > 0 {
		total.Range = cellRange(total.Cells)
	}
	return files, total
}

// cellRange returns min and max over successful cells, or nil if none.
func cellRange(cells []TokenCell) *CountRange {
	var r *CountRange
	for _, c := range cells {
		if !c.OK {
			continue
		}
		if r == nil {
			r = &CountRange{Min: c.Count, Max: c.Count}
			continue
		}
		r.Min = min(r.Min, c.Count)
		r.Max = max(r.Max, c.Count)
	}
	return r
}

// mergeTotals sums per-tokenizer totals of several roots, matching cells
// by tokenizer name.
func mergeTotals(reports []RootReport) map[string]int {
	sums := make(map[string]int)
	for _, r := range reports {
		for _, c := range r.Total.Cells {
			sums[c.Tokenizer] += c.Count
		}
	}
	return sums
}
