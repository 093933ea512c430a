package xlledger

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Session carries the state of one file through the pipeline. Each stage replaces
// Table with a new table; earlier tables are never modified.
type Session struct {
	ID         string
	SourcePath string
	Workbook   *Workbook
	SheetName  string
	// Candidates lists every sheet that matched the PR identifier, in workbook order.
	Candidates   []string
	Bounds       Bounds
	Table        *Table
	Diagnostics  []Diagnostic
	LastSavePath string
}

// Sheet returns the selected sheet of the loaded workbook.
func (s *Session) Sheet() *Sheet {
	if s.Workbook == nil {
		return nil
	}
	return s.Workbook.Sheet(s.SheetName)
}

// Processor runs the ledger pipeline: select the PR sheet, trim it, add columns,
// classify rows and write the result.
type Processor struct {
	opts *Options
}

// NewProcessor creates a Processor with the given options.
func NewProcessor(opts ...Option) *Processor {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Processor{opts: o}
}

// SheetInfo describes one sheet of a workbook.
type SheetInfo struct {
	Name    string `json:"name"`
	Rows    int    `json:"rows"`
	Matches bool   `json:"matches"`
}

// Sheets lists the sheets of a workbook and marks those that are PR sheets.
func (p *Processor) Sheets(path string) ([]SheetInfo, error) {
	wb, err := OpenWorkbook(path, ReadOptions{XLSCharset: p.opts.xlsCharset})
	if err != nil {
		return nil, &StageError{Stage: "load", Err: err}
	}
	infos := make([]SheetInfo, len(wb.Sheets))
	for i, s := range wb.Sheets {
		infos[i] = SheetInfo{Name: s.Name, Rows: len(s.Rows), Matches: p.opts.matcher.Match(s.Name)}
	}
	return infos, nil
}

// Load opens a workbook, selects the first PR sheet and trims it into a table.
// When trimming is ambiguous the session is returned together with the *TrimError,
// so the caller can confirm bounds with Reframe.
func (p *Processor) Load(path string) (*Session, error) {
	s, err := p.open(path)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	matched, err := SelectSheets(s.Workbook.SheetNames(), p.opts.matcher)
	switch {
	case err == nil:
		s.Candidates = matched
		s.SheetName = matched[0]
		if len(matched) > 1 {
			p.opts.logger.Info("several PR sheets found, using the first",
				slog.String("session", s.ID),
				slog.Any("sheets", matched),
				slog.String("sheet", s.SheetName))
		}
	case errors.Is(err, ErrNoMatchingSheet) && p.opts.fallbackToFirst && len(s.Workbook.Sheets) > 0:
		s.SheetName = s.Workbook.Sheets[0].Name
		p.opts.logger.Warn("no PR sheet found, falling back to first sheet",
			slog.String("session", s.ID),
			slog.String("sheet", s.SheetName))
		err = nil
	}
	p.opts.recorder.ObserveStage("select", time.Since(start), err)
	if err != nil {
		return nil, &StageError{Stage: "select", Err: err}
	}

	if err := p.trim(s); err != nil {
		return s, err
	}
	return s, nil
}

// LoadSheet opens a workbook and trims the named sheet, bypassing PR selection.
func (p *Processor) LoadSheet(path, sheet string) (*Session, error) {
	s, err := p.open(path)
	if err != nil {
		return nil, err
	}
	if s.Workbook.Sheet(sheet) == nil {
		err := fmt.Errorf("sheet %q not in [%s]: %w", sheet, strings.Join(s.Workbook.SheetNames(), ", "), ErrNoMatchingSheet)
		return nil, &StageError{Stage: "select", Sheet: sheet, Err: err}
	}
	s.SheetName = sheet
	if err := p.trim(s); err != nil {
		return s, err
	}
	return s, nil
}

func (p *Processor) open(path string) (*Session, error) {
	start := time.Now()
	wb, err := OpenWorkbook(path, ReadOptions{XLSCharset: p.opts.xlsCharset})
	p.opts.recorder.ObserveStage("load", time.Since(start), err)
	if err != nil {
		return nil, &StageError{Stage: "load", Err: err}
	}
	s := &Session{ID: uuid.NewString(), SourcePath: path, Workbook: wb}
	p.opts.logger.Debug("workbook loaded",
		slog.String("session", s.ID),
		slog.String("path", path),
		slog.Int("sheets", len(wb.Sheets)),
		slog.Duration("duration", time.Since(start)))
	return s, nil
}

func (p *Processor) trim(s *Session) error {
	start := time.Now()
	sheet := s.Sheet()
	b, err := p.opts.trimPolicy.Trim(sheet.Rows)
	p.opts.recorder.ObserveStage("trim", time.Since(start), err)
	if err != nil {
		p.opts.logger.Warn("trim failed",
			slog.String("session", s.ID),
			slog.String("sheet", s.SheetName),
			slog.String("error", err.Error()))
		return &StageError{Stage: "trim", Sheet: s.SheetName, Err: err}
	}
	return p.frame(s, b)
}

func (p *Processor) frame(s *Session, b Bounds) error {
	t, err := NewTable(s.Sheet(), b)
	if err != nil {
		return &StageError{Stage: "trim", Sheet: s.SheetName, Err: err}
	}
	s.Bounds = b
	s.Table = t
	s.Diagnostics = nil
	p.opts.logger.Info("sheet trimmed",
		slog.String("session", s.ID),
		slog.String("sheet", s.SheetName),
		slog.Int("header_row", b.HeaderRow+1),
		slog.Int("data_start", b.DataStart+1),
		slog.Int("data_end", b.DataEnd),
		slog.Int("rows", len(t.Rows)),
		slog.Int("columns", len(t.Columns)))
	return nil
}

// Reframe rebuilds the table from bounds the user confirmed, replacing detected ones.
func (p *Processor) Reframe(s *Session, b Bounds) error {
	if s.Sheet() == nil {
		return &StageError{Stage: "trim", Sheet: s.SheetName, Err: errors.New("no sheet loaded")}
	}
	return p.frame(s, b)
}

// AddColumns appends the named recognized columns that the table does not have yet.
func (p *Processor) AddColumns(s *Session, names []string) error {
	start := time.Now()
	err := p.addColumns(s, names)
	p.opts.recorder.ObserveStage("augment", time.Since(start), err)
	return err
}

func (p *Processor) addColumns(s *Session, names []string) error {
	if s.Table == nil {
		return &StageError{Stage: "augment", Sheet: s.SheetName, Err: errors.New("no table loaded")}
	}
	specs, err := LookupColumns(names)
	if err != nil {
		return &StageError{Stage: "augment", Sheet: s.SheetName, Err: err}
	}
	t, err := Augment(s.Table, specs)
	if err != nil {
		return &StageError{Stage: "augment", Sheet: s.SheetName, Err: err}
	}
	p.opts.logger.Debug("columns added",
		slog.String("session", s.ID),
		slog.Int("added", len(t.Columns)-len(s.Table.Columns)))
	s.Table = t
	return nil
}

// Classify fills LEDGER HEAD from the designated columns. The diagnostics of the pass
// replace those of any earlier pass.
func (p *Processor) Classify(s *Session, columns []string) error {
	start := time.Now()
	err := p.classify(s, columns)
	p.opts.recorder.ObserveStage("classify", time.Since(start), err)
	return err
}

func (p *Processor) classify(s *Session, columns []string) error {
	if s.Table == nil {
		return &StageError{Stage: "classify", Sheet: s.SheetName, Err: errors.New("no table loaded")}
	}
	t, diags, err := Classify(s.Table, ClassifyOptions{
		Columns:           columns,
		Labels:            p.opts.labels,
		Rule:              p.opts.rule,
		Unclassified:      p.opts.unclassified,
		BlankUnclassified: p.opts.blankUnclassified,
	})
	if err != nil {
		return &StageError{Stage: "classify", Sheet: s.SheetName, Err: err}
	}
	s.Table = t
	s.Diagnostics = diags

	counts := CountByCode(diags)
	p.opts.recorder.ObserveDiagnostics(counts)
	p.opts.logger.Info("rows classified",
		slog.String("session", s.ID),
		slog.String("rule", p.opts.rule.Name()),
		slog.Int("rows", len(t.Rows)),
		slog.Int("unclassified", counts[CodeUnclassifiedRow]),
		slog.Int("non_numeric", counts[CodeNonNumeric]))
	return nil
}

// Save writes the current table to path.
func (p *Processor) Save(s *Session, path string) error {
	start := time.Now()
	var err error
	if s.Table == nil {
		err = &StageError{Stage: "write", Sheet: s.SheetName, Err: &WriteError{Path: path, Err: errors.New("no table loaded")}}
	} else if werr := WriteTable(s.Table, path, p.opts.write); werr != nil {
		err = &StageError{Stage: "write", Sheet: s.SheetName, Err: werr}
	}
	p.opts.recorder.ObserveStage("write", time.Since(start), err)
	if err != nil {
		p.opts.logger.Error("write failed",
			slog.String("session", s.ID),
			slog.String("path", path),
			slog.String("error", err.Error()))
		return err
	}
	s.LastSavePath = path
	p.opts.logger.Info("workbook written",
		slog.String("session", s.ID),
		slog.String("path", path),
		slog.Int("rows", len(s.Table.Rows)))
	return nil
}

// Request describes one end-to-end run.
type Request struct {
	Path string
	// Sheet names the sheet explicitly; empty means PR selection.
	Sheet string
	// Bounds overrides detected bounds when set.
	Bounds *Bounds
	// Region is an A1 area such as "'Sales PR'!A4:F120" whose first row is the
	// header. It replaces Bounds, and its sheet, when named, selects the sheet.
	Region string
	// Add lists recognized columns to append.
	Add []string
	// Inspect lists the designated columns for classification; empty skips classification.
	Inspect []string
	// Output is the destination; empty means DefaultOutputPath(Path).
	Output string
}

// Result summarizes a completed run.
type Result struct {
	SessionID   string
	Output      string
	Sheet       string
	Bounds      Bounds
	Columns     []string
	Rows        int
	Diagnostics []Diagnostic
	Duration    time.Duration
}

// Run executes the whole pipeline for one file. Structural failures abort the run and
// are returned as they are; nothing is written in that case.
func (p *Processor) Run(req Request) (*Result, error) {
	start := time.Now()
	s, err := p.prepare(req)
	if err != nil {
		return nil, err
	}

	out := req.Output
	if out == "" {
		out = DefaultOutputPath(req.Path)
	}
	if err := p.Save(s, out); err != nil {
		return nil, err
	}

	return &Result{
		SessionID:   s.ID,
		Output:      out,
		Sheet:       s.SheetName,
		Bounds:      s.Bounds,
		Columns:     append([]string(nil), s.Table.Columns...),
		Rows:        len(s.Table.Rows),
		Diagnostics: s.Diagnostics,
		Duration:    time.Since(start),
	}, nil
}

// prepare runs every stage of req up to, but not including, the write.
func (p *Processor) prepare(req Request) (*Session, error) {
	req, err := req.withRegion()
	if err != nil {
		return nil, &StageError{Stage: "trim", Sheet: req.Sheet, Err: err}
	}
	var s *Session
	if req.Sheet != "" {
		s, err = p.LoadSheet(req.Path, req.Sheet)
	} else {
		s, err = p.Load(req.Path)
	}
	if err != nil {
		var te *TrimError
		if s == nil || req.Bounds == nil || !errors.As(err, &te) {
			return nil, err
		}
	}
	if req.Bounds != nil {
		if err := p.Reframe(s, *req.Bounds); err != nil {
			return nil, err
		}
	}

	add := req.Add
	if len(req.Inspect) > 0 && !containsFold(add, ColumnLedgerHead) {
		add = append([]string{ColumnLedgerHead}, add...)
	}
	if len(add) > 0 {
		if err := p.AddColumns(s, add); err != nil {
			return nil, err
		}
	}
	if len(req.Inspect) > 0 {
		if err := p.Classify(s, req.Inspect); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// withRegion folds Region into Sheet and Bounds.
func (req Request) withRegion() (Request, error) {
	if strings.TrimSpace(req.Region) == "" {
		return req, nil
	}
	area, err := ParseAreaRef(req.Region)
	if err != nil {
		return req, fmt.Errorf("region: %v: %w", err, ErrInvalidBounds)
	}
	if sheet := area.First.Sheet; sheet != "" {
		if req.Sheet != "" && req.Sheet != sheet {
			return req, fmt.Errorf("region %q is not on sheet %q: %w", req.Region, req.Sheet, ErrInvalidBounds)
		}
		req.Sheet = sheet
	}
	b := area.Bounds()
	req.Bounds = &b
	return req, nil
}

// DefaultOutputPath returns "<dir>/<name>_processed.xlsx" for an input path.
func DefaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_processed.xlsx"
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}
