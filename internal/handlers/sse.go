package handlers

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"ab-analyzer/internal/presentation"
	"ab-analyzer/internal/services"
	"github.com/starfederation/datastar-go/datastar"
)

var metricColumns = []struct {
	Key   string
	Title string
}{
	{"users", "Users"},
	{"add_to_cart_rate", "Add to Cart"},
	{"transaction_rate", "Conversion"},
	{"transactions", "Transactions"},
	{"revenue", "Revenue"},
	{"aov", "AOV"},
	{"rpu", "RPU"},
}

var resultsTableTemplate = template.Must(template.New("resultsTable").Parse(`
<div id="results-content">
<table class="modern-table">
<thead><tr><th>Variation</th>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range .Rows}}<tr{{if .IsControl}} class="control-row"{{end}}>
<td>{{.Variation}}{{if .IsControl}} <span class="category-badge">control</span>{{end}}</td>
{{range .Cells}}<td><strong>{{.Formatted}}</strong>{{if .Uplift}}<span class="uplift">{{.Uplift}}</span>{{end}}{{if .Confidence}}<span class="confidence">{{.Confidence}}</span>{{end}}</td>{{end}}
</tr>{{end}}
</tbody>
</table>
</div>`))

type SSEHandlers struct {
	coordinator *services.Coordinator
	logger      *slog.Logger
}

func NewSSEHandlers(coordinator *services.Coordinator, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		coordinator: coordinator,
		logger:      logger,
	}
}

type tableRowView struct {
	Variation string
	IsControl bool
	Cells     []tableCellView
}

type tableCellView struct {
	Formatted  string
	Uplift     string
	Confidence string
}

type tableView struct {
	Columns []string
	Rows    []tableRowView
}

func buildTableView(rows []presentation.TableRow) tableView {
	view := tableView{Rows: make([]tableRowView, 0, len(rows))}
	for _, col := range metricColumns {
		view.Columns = append(view.Columns, col.Title)
	}

	for _, row := range rows {
		rv := tableRowView{Variation: row.Variation, IsControl: row.IsControl}
		for _, col := range metricColumns {
			cell := row.Metrics[col.Key]
			cv := tableCellView{Formatted: cell.Formatted}
			if cell.Uplift != nil {
				cv.Uplift = formatSigned(*cell.Uplift)
			}
			if cell.Confidence != nil {
				cv.Confidence = formatConfidence(*cell.Confidence)
			}
			rv.Cells = append(rv.Cells, cv)
		}
		view.Rows = append(view.Rows, rv)
	}
	return view
}

func (h *SSEHandlers) renderResultsTable(rows []presentation.TableRow) (string, error) {
	var buf strings.Builder
	err := resultsTableTemplate.Execute(&buf, buildTableView(rows))
	return buf.String(), err
}

func (h *SSEHandlers) HandleResultsTable(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	snap, ok := h.coordinator.Current()
	if !ok {
		sse.PatchElements(`<div id="results-content">No analysis available yet. Upload data to begin.</div>`)
		flush(w)
		return
	}

	html, err := h.renderResultsTable(presentation.TableRows(snap))
	if err != nil {
		h.logger.Error("render results table", "error", err)
		return
	}

	sse.PatchElements(html)
	flush(w)
}

func (h *SSEHandlers) HandleRadialSeries(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	snap, ok := h.coordinator.Current()
	if !ok {
		sse.PatchElements(`<div id="radar-content">No analysis available yet.</div>`)
		flush(w)
		return
	}

	jsonData, err := json.Marshal(map[string]any{
		"radarData": presentation.Series(snap),
	})
	if err != nil {
		h.logger.Error("marshal radar data", "error", err)
		return
	}
	sse.PatchSignals(jsonData)

	sse.PatchElements(`<div id="radar-content">Revenue radar data loaded</div>`)
	flush(w)
}

func (h *SSEHandlers) HandleOutliers(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	snap, ok := h.coordinator.Current()
	if !ok {
		sse.PatchElements(`<div id="outliers-content">No analysis available yet.</div>`)
		flush(w)
		return
	}

	jsonData, err := json.Marshal(map[string]any{
		"outlierData": snap.Outliers,
	})
	if err != nil {
		h.logger.Error("marshal outlier data", "error", err)
		return
	}
	sse.PatchSignals(jsonData)

	sse.PatchElements(`<div id="outliers-content">Outlier data loaded</div>`)
	flush(w)
}

func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	snap, ok := h.coordinator.Current()
	if !ok {
		sse.PatchElements(`<div id="results-content">No analysis available yet. Upload data to begin.</div>`)
		flush(w)
		return
	}

	html, err := h.renderResultsTable(presentation.TableRows(snap))
	if err != nil {
		h.logger.Error("render results table", "error", err)
		return
	}
	sse.PatchElements(html)

	// Send all chart signals in one call
	allSignals, err := json.Marshal(map[string]any{
		"radarData":   presentation.Series(snap),
		"outlierData": snap.Outliers,
		"summaries":   snap.Summaries,
	})
	if err != nil {
		h.logger.Error("marshal refresh signals", "error", err)
		return
	}
	sse.PatchSignals(allSignals)

	flush(w)
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func formatSigned(v float64) string {
	s := strconv.FormatFloat(v, 'f', 1, 64)
	if v > 0 {
		return "+" + s + "%"
	}
	return s + "%"
}

func formatConfidence(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "% conf."
}
