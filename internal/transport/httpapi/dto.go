package httpapi

import (
	"github.com/javajack/xlledger"
)

// Row numbers on the wire are 1-based sheet rows; data_end is the last data row.

type boundsDTO struct {
	HeaderRow int `json:"header_row" validate:"min=1"`
	DataStart int `json:"data_start" validate:"gtfield=HeaderRow"`
	DataEnd   int `json:"data_end" validate:"min=0"`
}

func newBoundsDTO(b xlledger.Bounds) boundsDTO {
	return boundsDTO{HeaderRow: b.HeaderRow + 1, DataStart: b.DataStart + 1, DataEnd: b.DataEnd}
}

func (b boundsDTO) bounds() xlledger.Bounds {
	return xlledger.Bounds{HeaderRow: b.HeaderRow - 1, DataStart: b.DataStart - 1, DataEnd: b.DataEnd}
}

type previewRequest struct {
	Path  string `json:"path" validate:"required"`
	Sheet string `json:"sheet"`
	Rows  int    `json:"rows" validate:"min=0,max=1000"`
}

type previewResponse struct {
	Session string     `json:"session"`
	Sheet   string     `json:"sheet"`
	Sheets  []string   `json:"sheets"`
	Bounds  boundsDTO  `json:"bounds"`
	Columns []string   `json:"columns"`
	Total   int        `json:"total_rows"`
	Rows    [][]string `json:"rows"`
}

type processRequest struct {
	Path       string     `json:"path" validate:"required"`
	Sheet      string     `json:"sheet"`
	Bounds     *boundsDTO `json:"bounds" validate:"excluded_with=Region"`
	Region     string     `json:"region"`
	Add        []string   `json:"add" validate:"dive,required"`
	Inspect    []string   `json:"inspect" validate:"dive,required"`
	Rule       string     `json:"rule" validate:"omitempty,oneof=first-non-zero join-all largest expr"`
	Expression string     `json:"expression" validate:"required_if=Rule expr"`
	Output     string     `json:"output" validate:"required"`
}

type diagnosticDTO struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Row      int    `json:"row"`
	Cell     string `json:"cell"`
	Message  string `json:"message"`
}

func newDiagnostics(diags []xlledger.Diagnostic) []diagnosticDTO {
	out := make([]diagnosticDTO, len(diags))
	for i, d := range diags {
		out[i] = diagnosticDTO{
			Severity: d.Severity.String(),
			Code:     d.Code,
			Row:      d.Row + 1,
			Cell:     d.Ref.String(),
			Message:  d.Message,
		}
	}
	return out
}

type processResponse struct {
	Session     string          `json:"session"`
	Output      string          `json:"output"`
	Sheet       string          `json:"sheet"`
	Bounds      boundsDTO       `json:"bounds"`
	Columns     []string        `json:"columns"`
	Rows        int             `json:"rows"`
	Diagnostics []diagnosticDTO `json:"diagnostics"`
	DurationMS  int64           `json:"duration_ms"`
}

type sheetsResponse struct {
	Path   string               `json:"path"`
	Sheets []xlledger.SheetInfo `json:"sheets"`
}

// problem is an RFC 7807 error body extended with a pipeline error code.
type problem struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Code       string `json:"code"`
	Candidates []int  `json:"candidates,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}
