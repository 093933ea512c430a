package xlledger

import (
	"fmt"
	"strings"
	"unicode"
)

// Bounds locates the tabular region of a sheet. All indexes are 0-based sheet rows;
// DataEnd is exclusive, so DataStart == DataEnd means the region holds no data.
type Bounds struct {
	HeaderRow int
	DataStart int
	DataEnd   int
}

// Len returns the number of sheet rows in the data region, blank rows included.
func (b Bounds) Len() int {
	return b.DataEnd - b.DataStart
}

// Validate checks that the bounds fit a grid of the given rows.
func (b Bounds) Validate(rows [][]Cell) error {
	switch {
	case b.HeaderRow < 0 || b.HeaderRow >= len(rows):
		return fmt.Errorf("header row %d outside sheet of %d rows: %w", b.HeaderRow+1, len(rows), ErrInvalidBounds)
	case b.DataStart <= b.HeaderRow:
		return fmt.Errorf("data must start below the header row: %w", ErrInvalidBounds)
	case b.DataEnd < b.DataStart || b.DataEnd > len(rows):
		return fmt.Errorf("data end %d outside %d..%d: %w", b.DataEnd, b.DataStart, len(rows), ErrInvalidBounds)
	}
	return nil
}

// TrimPolicy holds the tunable thresholds of header and footer detection.
type TrimPolicy struct {
	// HeaderScanRows limits the header search to the first rows of the sheet (0 = all rows).
	HeaderScanRows int
	// MinHeaderCells is the minimum number of filled cells of a header row.
	MinHeaderCells int
	// HeaderKeywords are typical column captions, matched word-wise and case-insensitively.
	HeaderKeywords []string
	// KeyHeaderKeywords are captions that almost always appear in ledger headers; they score KeyWeight.
	KeyHeaderKeywords []string
	KeyWeight         int
	// MinKeywordScore makes a row a confident header without structural evidence.
	MinKeywordScore int
	// FooterKeywords mark summary rows when they appear in the leading label of a row.
	FooterKeywords []string
	// MaxFooterRows is the most footer-like rows tolerated at the bottom before giving up.
	MaxFooterRows int
	// MaxSparseFooterCells classifies rows with an empty leading cell and at most this many
	// filled cells as footer rows.
	MaxSparseFooterCells int
}

// DefaultTrimPolicy returns the policy used for Tally-style purchase registers.
func DefaultTrimPolicy() TrimPolicy {
	return TrimPolicy{
		HeaderScanRows: 20,
		MinHeaderCells: 2,
		HeaderKeywords: []string{
			"date", "particular", "particulars", "voucher", "vch", "vch no", "voucher no",
			"debit", "credit", "amount", "dr", "cr", "balance",
			"narration", "description", "details", "account", "account name",
			"reference", "ref", "ref no", "transaction", "trans",
			"invoice", "inv", "inv no", "bill", "bill no", "receipt", "receipt no",
			"payment", "cheque", "chq", "chq no", "bank", "ledger",
			"gstin", "taxable", "value", "cgst", "sgst", "igst", "supplier", "party",
		},
		KeyHeaderKeywords:    []string{"date", "particular", "particulars", "voucher"},
		KeyWeight:            2,
		MinKeywordScore:      2,
		FooterKeywords:       []string{"total", "summary", "sum", "grand", "subtotal", "balance", "closing", "net", "amount"},
		MaxFooterRows:        5,
		MaxSparseFooterCells: 2,
	}
}

type headerCandidate struct {
	row        int
	score      int
	structural bool
	cells      int
	text       string
}

func (c headerCandidate) confident(p TrimPolicy) bool {
	return c.structural || c.score >= p.MinKeywordScore
}

// outranks orders candidates by keyword score, structural evidence, then filled cells.
func (c headerCandidate) outranks(o headerCandidate) bool {
	if c.score != o.score {
		return c.score > o.score
	}
	if c.structural != o.structural {
		return c.structural
	}
	return c.cells > o.cells
}

func (c headerCandidate) sameRank(o headerCandidate) bool {
	return c.score == o.score && c.structural == o.structural && c.cells == o.cells
}

// Trim locates the header row and the data region of a raw sheet grid.
// It never guesses: when no row is a confident header, or the end of the data
// cannot be told from the footer, it returns a *TrimError.
func (p TrimPolicy) Trim(rows [][]Cell) (Bounds, error) {
	header, err := p.findHeader(rows)
	if err != nil {
		return Bounds{}, err
	}

	end, err := p.findDataEnd(rows, header)
	if err != nil {
		return Bounds{}, err
	}

	start := header + 1
	for start < end && countNonBlank(rows[start]) == 0 {
		start++
	}
	if start > end {
		start = end
	}
	return Bounds{HeaderRow: header, DataStart: start, DataEnd: end}, nil
}

func (p TrimPolicy) findHeader(rows [][]Cell) (int, error) {
	limit := len(rows)
	if p.HeaderScanRows > 0 && p.HeaderScanRows < limit {
		limit = p.HeaderScanRows
	}

	var considered []int
	var confident []headerCandidate
	for i := 0; i < limit; i++ {
		c, ok := p.headerCandidate(rows, i)
		if !ok {
			continue
		}
		considered = append(considered, i)
		if c.confident(p) {
			confident = append(confident, c)
		}
	}

	if len(confident) == 0 {
		return -1, &TrimError{
			Err:        ErrAmbiguousHeader,
			Candidates: considered,
			Reason:     fmt.Sprintf("no text row in the first %d rows is followed by numeric data or names known columns", limit),
		}
	}

	best := confident[0]
	for _, c := range confident[1:] {
		if c.outranks(best) {
			best = c
		}
	}
	for _, c := range confident {
		if c.row != best.row && c.sameRank(best) && c.text != best.text {
			first, second := best.row, c.row
			if second < first {
				first, second = second, first
			}
			return -1, &TrimError{
				Err:        ErrAmbiguousHeader,
				Candidates: []int{first, second},
				Reason:     "two rows are equally likely headers",
			}
		}
	}
	return best.row, nil
}

// headerCandidate evaluates row i. Only rows of enough text-only, non-numeric cells qualify.
func (p TrimPolicy) headerCandidate(rows [][]Cell, i int) (headerCandidate, bool) {
	row := rows[i]
	filled := 0
	var texts []string
	for _, c := range row {
		if c.IsBlank() {
			continue
		}
		if c.Type != CellString || c.looksNumeric() {
			return headerCandidate{}, false
		}
		filled++
		texts = append(texts, normalizeLabel(c.String()))
	}
	if filled < p.MinHeaderCells || filled == 0 {
		return headerCandidate{}, false
	}

	cand := headerCandidate{row: i, cells: filled, text: strings.Join(texts, "|")}
	for _, t := range texts {
		words := strings.Fields(t)
		switch {
		case matchesAny(words, p.KeyHeaderKeywords):
			cand.score += p.KeyWeight
		case matchesAny(words, p.HeaderKeywords):
			cand.score++
		}
	}
	for j := i + 1; j < len(rows); j++ {
		if countNonBlank(rows[j]) == 0 {
			continue
		}
		cand.structural = hasNumeric(rows[j])
		break
	}
	return cand, true
}

// findDataEnd scans upward from the bottom of the sheet, skipping blank rows and
// footer rows, and returns the exclusive end of the data region.
func (p TrimPolicy) findDataEnd(rows [][]Cell, header int) (int, error) {
	end := len(rows)
	var footers []int
	for i := len(rows) - 1; i > header; i-- {
		row := rows[i]
		if countNonBlank(row) == 0 {
			end = i
			continue
		}
		if !p.isFooterRow(row) {
			return i + 1, nil
		}
		footers = append(footers, i)
		end = i
		if p.MaxFooterRows > 0 && len(footers) > p.MaxFooterRows {
			return -1, &TrimError{
				Err:        ErrAmbiguousFooter,
				Candidates: reverseInts(footers),
				Reason:     fmt.Sprintf("more than %d footer-like rows at the bottom of the sheet", p.MaxFooterRows),
			}
		}
	}
	if len(footers) > 0 {
		return -1, &TrimError{
			Err:        ErrAmbiguousFooter,
			Candidates: reverseInts(footers),
			Reason:     "every row below the header looks like a footer",
		}
	}
	return end, nil
}

// isFooterRow reports totals or summary rows: a leading label naming a footer keyword,
// or a sparse row whose leading cell is empty.
func (p TrimPolicy) isFooterRow(row []Cell) bool {
	for _, c := range row {
		if c.IsBlank() {
			continue
		}
		if c.Type == CellString && matchesAny(strings.Fields(normalizeLabel(c.String())), p.FooterKeywords) {
			return true
		}
		break
	}
	leadingBlank := len(row) == 0 || row[0].IsBlank()
	return leadingBlank && countNonBlank(row) <= p.MaxSparseFooterCells
}

func countNonBlank(row []Cell) int {
	n := 0
	for _, c := range row {
		if !c.IsBlank() {
			n++
		}
	}
	return n
}

func hasNumeric(row []Cell) bool {
	for _, c := range row {
		if c.Type == CellDate || c.looksNumeric() {
			return true
		}
	}
	return false
}

// normalizeLabel lower-cases s and replaces punctuation with spaces,
// so "Vch. No." and "vch no" compare equal word-wise.
func normalizeLabel(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// matchesAny reports whether any keyword phrase occurs as a run of whole words.
func matchesAny(words []string, keywords []string) bool {
	for _, kw := range keywords {
		phrase := strings.Fields(normalizeLabel(kw))
		if len(phrase) == 0 || len(phrase) > len(words) {
			continue
		}
		for i := 0; i+len(phrase) <= len(words); i++ {
			match := true
			for j := range phrase {
				if words[i+j] != phrase[j] {
					match = false
					break
				}
			}
			if match {
				return true
			}
		}
	}
	return false
}

func reverseInts(in []int) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}
