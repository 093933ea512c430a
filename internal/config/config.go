// Package config loads xlledger settings from defaults, an optional YAML file and
// XLLEDGER_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/javajack/xlledger"
)

// EnvPrefix is the prefix of environment overrides, e.g. XLLEDGER_SHEET_IDENTIFIER.
const EnvPrefix = "XLLEDGER"

// Config is the full application configuration.
type Config struct {
	Sheet       SheetConfig    `yaml:"sheet" envconfig:"SHEET"`
	Trim        TrimConfig     `yaml:"trim" envconfig:"TRIM"`
	Columns     ColumnsConfig  `yaml:"columns" envconfig:"COLUMNS"`
	Classify    ClassifyConfig `yaml:"classify" envconfig:"CLASSIFY"`
	Output      OutputConfig   `yaml:"output" envconfig:"OUTPUT"`
	PreviewRows int            `yaml:"preview_rows" envconfig:"PREVIEW_ROWS" validate:"min=1,max=1000"`
	Logging     LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Server      ServerConfig   `yaml:"server" envconfig:"SERVER"`
}

// SheetConfig controls PR sheet selection and workbook reading.
type SheetConfig struct {
	Identifier      string `yaml:"identifier" envconfig:"IDENTIFIER" validate:"required"`
	CaseSensitive   bool   `yaml:"case_sensitive" envconfig:"CASE_SENSITIVE"`
	FallbackToFirst bool   `yaml:"fallback_to_first" envconfig:"FALLBACK_TO_FIRST"`
	XLSCharset      string `yaml:"xls_charset" envconfig:"XLS_CHARSET" validate:"required"`
}

// TrimConfig mirrors xlledger.TrimPolicy.
type TrimConfig struct {
	HeaderScanRows       int      `yaml:"header_scan_rows" envconfig:"HEADER_SCAN_ROWS"`
	MinHeaderCells       int      `yaml:"min_header_cells" envconfig:"MIN_HEADER_CELLS" validate:"min=1"`
	HeaderKeywords       []string `yaml:"header_keywords" envconfig:"HEADER_KEYWORDS"`
	KeyHeaderKeywords    []string `yaml:"key_header_keywords" envconfig:"KEY_HEADER_KEYWORDS"`
	KeyWeight            int      `yaml:"key_weight" envconfig:"KEY_WEIGHT" validate:"min=1"`
	MinKeywordScore      int      `yaml:"min_keyword_score" envconfig:"MIN_KEYWORD_SCORE" validate:"min=1"`
	FooterKeywords       []string `yaml:"footer_keywords" envconfig:"FOOTER_KEYWORDS"`
	MaxFooterRows        int      `yaml:"max_footer_rows" envconfig:"MAX_FOOTER_ROWS"`
	MaxSparseFooterCells int      `yaml:"max_sparse_footer_cells" envconfig:"MAX_SPARSE_FOOTER_CELLS"`
}

// ColumnsConfig holds the default column choices of a run.
type ColumnsConfig struct {
	// Add lists recognized columns appended by default.
	Add []string `yaml:"add" envconfig:"ADD"`
	// Inspect lists the designated columns classification looks at by default.
	Inspect []string `yaml:"inspect" envconfig:"INSPECT"`
	// Labels maps a designated column to the ledger label written for it.
	Labels map[string]string `yaml:"labels" envconfig:"LABELS"`
}

// ClassifyConfig selects the classification rule.
type ClassifyConfig struct {
	Rule              string `yaml:"rule" envconfig:"RULE" validate:"oneof=first-non-zero join-all largest expr"`
	Expression        string `yaml:"expression" envconfig:"EXPRESSION" validate:"required_if=Rule expr"`
	Unclassified      string `yaml:"unclassified" envconfig:"UNCLASSIFIED"`
	BlankUnclassified bool   `yaml:"blank_unclassified" envconfig:"BLANK_UNCLASSIFIED"`
}

// OutputConfig controls the written workbook.
type OutputConfig struct {
	BoldHeader bool `yaml:"bold_header" envconfig:"BOLD_HEADER"`
	AutoWidth  bool `yaml:"auto_width" envconfig:"AUTO_WIDTH"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
}

// ServerConfig controls `xlledger serve`.
type ServerConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	// BaseDir confines request paths when set.
	BaseDir string `yaml:"base_dir" envconfig:"BASE_DIR"`
}

// Default returns the built-in configuration.
func Default() *Config {
	p := xlledger.DefaultTrimPolicy()
	return &Config{
		Sheet: SheetConfig{
			Identifier: xlledger.DefaultSheetIdentifier,
			XLSCharset: "utf-8",
		},
		Trim: TrimConfig{
			HeaderScanRows:       p.HeaderScanRows,
			MinHeaderCells:       p.MinHeaderCells,
			HeaderKeywords:       p.HeaderKeywords,
			KeyHeaderKeywords:    p.KeyHeaderKeywords,
			KeyWeight:            p.KeyWeight,
			MinKeywordScore:      p.MinKeywordScore,
			FooterKeywords:       p.FooterKeywords,
			MaxFooterRows:        p.MaxFooterRows,
			MaxSparseFooterCells: p.MaxSparseFooterCells,
		},
		Columns: ColumnsConfig{
			Add: []string{xlledger.ColumnLedgerHead},
		},
		Classify: ClassifyConfig{
			Rule:         "first-non-zero",
			Unclassified: xlledger.DefaultUnclassified,
		},
		Output:      OutputConfig{BoldHeader: true, AutoWidth: true},
		PreviewRows: xlledger.DefaultPreviewRows,
		Logging:     LoggingConfig{Level: "info", Format: "json"},
		Server: ServerConfig{
			Addr:            "127.0.0.1:8765",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    2 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Load builds the configuration. path may be empty; a named file that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and that the classification rule resolves.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	if _, err := xlledger.RuleByName(c.Classify.Rule, c.Classify.Expression); err != nil {
		return err
	}
	if len(c.Columns.Add) > 0 {
		if _, err := xlledger.LookupColumns(c.Columns.Add); err != nil {
			return fmt.Errorf("columns.add: %w", err)
		}
	}
	return nil
}

// TrimPolicy converts the trim section into a policy.
func (c *Config) TrimPolicy() xlledger.TrimPolicy {
	return xlledger.TrimPolicy{
		HeaderScanRows:       c.Trim.HeaderScanRows,
		MinHeaderCells:       c.Trim.MinHeaderCells,
		HeaderKeywords:       c.Trim.HeaderKeywords,
		KeyHeaderKeywords:    c.Trim.KeyHeaderKeywords,
		KeyWeight:            c.Trim.KeyWeight,
		MinKeywordScore:      c.Trim.MinKeywordScore,
		FooterKeywords:       c.Trim.FooterKeywords,
		MaxFooterRows:        c.Trim.MaxFooterRows,
		MaxSparseFooterCells: c.Trim.MaxSparseFooterCells,
	}
}

// Options maps the configuration to processor options.
func (c *Config) Options() ([]xlledger.Option, error) {
	rule, err := xlledger.RuleByName(c.Classify.Rule, c.Classify.Expression)
	if err != nil {
		return nil, err
	}
	unclassified := c.Classify.Unclassified
	if c.Classify.BlankUnclassified {
		unclassified = ""
	} else if unclassified == "" {
		unclassified = xlledger.DefaultUnclassified
	}
	return []xlledger.Option{
		xlledger.WithSheetMatcher(xlledger.SheetMatcher{
			Identifier:    c.Sheet.Identifier,
			CaseSensitive: c.Sheet.CaseSensitive,
		}),
		xlledger.WithFallbackToFirstSheet(c.Sheet.FallbackToFirst),
		xlledger.WithXLSCharset(c.Sheet.XLSCharset),
		xlledger.WithTrimPolicy(c.TrimPolicy()),
		xlledger.WithRule(rule),
		xlledger.WithLabels(c.Columns.Labels),
		xlledger.WithUnclassified(unclassified),
		xlledger.WithWriteOptions(xlledger.WriteOptions{
			BoldHeader: c.Output.BoldHeader,
			AutoWidth:  c.Output.AutoWidth,
		}),
	}, nil
}
