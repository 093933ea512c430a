package xlledger

import (
	"log/slog"
)

// Validate checks a request without writing anything. It returns the row diagnostics a
// Run would report. A non-nil error is the structural failure that would abort the
// Run, including a destination that cannot be written.
func Validate(req Request, opts ...Option) ([]Diagnostic, error) {
	return NewProcessor(opts...).Validate(req)
}

// Validate runs every stage of req in memory and checks the output destination.
func (p *Processor) Validate(req Request) ([]Diagnostic, error) {
	out := req.Output
	if out == "" {
		out = DefaultOutputPath(req.Path)
	}
	if err := CheckDestination(out); err != nil {
		return nil, &StageError{Stage: "write", Err: err}
	}

	s, err := p.prepare(req)
	if err != nil {
		return nil, err
	}
	p.opts.logger.Info("request validated",
		slog.String("session", s.ID),
		slog.String("sheet", s.SheetName),
		slog.Int("rows", len(s.Table.Rows)),
		slog.Int("diagnostics", len(s.Diagnostics)))
	return s.Diagnostics, nil
}
