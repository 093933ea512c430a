package xlledger

import (
	"io"
	"log/slog"
	"time"

	"github.com/tiendc/go-deepcopy"
)

// Recorder receives pipeline measurements. The HTTP server backs it with Prometheus.
type Recorder interface {
	ObserveStage(stage string, elapsed time.Duration, err error)
	ObserveDiagnostics(counts map[string]int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveStage(string, time.Duration, error) {}
func (nopRecorder) ObserveDiagnostics(map[string]int)         {}

// Options holds configuration for the Processor.
type Options struct {
	matcher           SheetMatcher
	fallbackToFirst   bool
	trimPolicy        TrimPolicy
	rule              Rule
	labels            map[string]string
	unclassified      string
	blankUnclassified bool
	xlsCharset        string
	write             WriteOptions
	logger            *slog.Logger
	recorder          Recorder
}

func defaultOptions() *Options {
	return &Options{
		matcher:      DefaultSheetMatcher(),
		trimPolicy:   DefaultTrimPolicy(),
		rule:         FirstNonZero{},
		unclassified: DefaultUnclassified,
		xlsCharset:   "utf-8",
		write:        DefaultWriteOptions(),
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		recorder:     nopRecorder{},
	}
}

// Option configures the Processor.
type Option func(*Options)

// WithSheetMatcher sets how PR sheets are recognized (default: "PR", case-insensitive).
func WithSheetMatcher(m SheetMatcher) Option {
	return func(o *Options) { o.matcher = m }
}

// WithFallbackToFirstSheet loads the first sheet, with a warning, when no sheet matches.
func WithFallbackToFirstSheet(fallback bool) Option {
	return func(o *Options) { o.fallbackToFirst = fallback }
}

// WithTrimPolicy replaces the header/footer detection policy. The policy is copied.
func WithTrimPolicy(p TrimPolicy) Option {
	return func(o *Options) {
		var cp TrimPolicy
		if err := deepcopy.Copy(&cp, &p); err != nil {
			cp = p
		}
		o.trimPolicy = cp
	}
}

// WithRule sets the classification rule (default: FirstNonZero).
func WithRule(r Rule) Option {
	return func(o *Options) {
		if r != nil {
			o.rule = r
		}
	}
}

// WithLabels maps designated columns to ledger labels. The map is copied.
func WithLabels(labels map[string]string) Option {
	return func(o *Options) {
		var cp map[string]string
		if err := deepcopy.Copy(&cp, &labels); err != nil {
			cp = make(map[string]string, len(labels))
			for k, v := range labels {
				cp[k] = v
			}
		}
		o.labels = cp
	}
}

// WithUnclassified sets the text written for unclassified rows. An empty string leaves them blank.
func WithUnclassified(sentinel string) Option {
	return func(o *Options) {
		o.unclassified = sentinel
		o.blankUnclassified = sentinel == ""
	}
}

// WithXLSCharset sets the code page of legacy .xls files (default: "utf-8").
func WithXLSCharset(charset string) Option {
	return func(o *Options) { o.xlsCharset = charset }
}

// WithWriteOptions controls the output workbook layout.
func WithWriteOptions(w WriteOptions) Option {
	return func(o *Options) { o.write = w }
}

// WithLogger sets the logger for pipeline events (default: discard).
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder receives stage timings and diagnostic counts.
func WithRecorder(r Recorder) Option {
	return func(o *Options) {
		if r != nil {
			o.recorder = r
		}
	}
}
