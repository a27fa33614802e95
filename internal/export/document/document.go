// Package document assembles report trees into HTML.
//
// Two layouts share one block dispatch: a table-based layout that survives
// mail clients (AssembleHTML) and a print layout with a cover page and page
// breaks that feeds the PDF renderer (AssemblePrint). The output is built as
// a node tree and serialized once, so all escaping happens in one place.
package document

import (
	"time"

	"golang.org/x/net/html"

	"github.com/reportgate/reportgate/internal/export/chart"
	"github.com/reportgate/reportgate/internal/model"
)

// Options controls assembly
type Options struct {
	// Charts maps chart block ids to rendered images. A missing entry means
	// the chart failed to render.
	Charts map[uint]*chart.RenderResult
	// SkipCharts omits chart blocks entirely
	SkipCharts bool
	// SkipImages keeps chart blocks but does not embed their images
	SkipImages bool
	// Disclaimer is printed at the end of the document
	Disclaimer string
	// GeneratedAt is shown in the document header; zero means now
	GeneratedAt time.Time
}

func (o Options) generatedAt() time.Time {
	if o.GeneratedAt.IsZero() {
		return time.Now()
	}
	return o.GeneratedAt
}

const dateDisplayLayout = "January 2, 2006"

const fontStack = `-apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif`

// reportHeading returns the title shown for a report
func reportHeading(report *model.Report) string {
	if report.Title != "" {
		return report.Title
	}
	if report.ReportTypeName != "" {
		return report.ReportTypeName
	}
	return "Report"
}

// head builds the <head> element
func head(title, css string) *html.Node {
	return el("head", nil,
		el("meta", attrs("charset", "utf-8")),
		el("meta", attrs("name", "viewport", "content", "width=device-width, initial-scale=1")),
		el("title", nil, text(title)),
		el("style", nil, text(css)),
	)
}
