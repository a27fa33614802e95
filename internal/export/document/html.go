package document

import (
	"golang.org/x/net/html"

	"github.com/reportgate/reportgate/internal/model"
)

// contentWidth is the width of the mail layout in pixels
const contentWidth = "700"

const mailCSS = `body { margin: 0; padding: 0; background: #f3f4f6; }
table { border-collapse: collapse; }
img { border: 0; outline: none; text-decoration: none; }`

// AssembleHTML renders a report as a standalone, mail-safe HTML document.
// Sections without blocks are left out.
func AssembleHTML(report *model.Report, opts Options) (string, error) {
	r := &blockRenderer{opts: opts}
	title := reportHeading(report)

	inner := el("table", withAttrs(style(
		"width: "+contentWidth+"px",
		"max-width: 100%",
		"background: #ffffff",
		"font-family: "+fontStack,
	), "width", contentWidth, "cellpadding", "0", "cellspacing", "0", "border", "0", "role", "presentation", "align", "center"))

	appendChildren(inner, row(mailHeader(report, title, opts)))

	for _, section := range orderedSections(report) {
		if len(section.Blocks) == 0 {
			continue
		}
		blocks := r.renderBlocks(section.Blocks)
		if len(blocks) == 0 {
			continue
		}
		cell := []*html.Node{
			el("h2", style(
				"margin: 0 0 16px 0",
				"font-size: 20px",
				"color: #111827",
				"border-bottom: 2px solid #e5e7eb",
				"padding-bottom: 8px",
			), text(section.Title)),
		}
		appendChildren(inner, row(append(cell, blocks...)...))
	}

	if opts.Disclaimer != "" {
		appendChildren(inner, row(el("p", style(
			"margin: 0",
			"font-size: 11px",
			"color: #9ca3af",
			"line-height: 1.4",
		), text(opts.Disclaimer))))
	}

	outer := el("table", withAttrs(style("width: 100%", "background: #f3f4f6"),
		"width", "100%", "cellpadding", "0", "cellspacing", "0", "border", "0", "role", "presentation"),
		el("tr", nil, el("td", withAttrs(style("padding: 24px 0"), "align", "center"), inner)),
	)

	root := el("html", attrs("lang", "en"),
		head(title, mailCSS),
		el("body", nil, outer),
	)
	return render(newDocument(root))
}

// row wraps content in a padded table row of the mail layout
func row(children ...*html.Node) *html.Node {
	return el("tr", nil, el("td", style("padding: 24px 32px"), children...))
}

func mailHeader(report *model.Report, title string, opts Options) *html.Node {
	header := el("div", withAttrs(nil, "class", "report-header"))
	if report.ReportTypeName != "" {
		appendChildren(header, el("div", style(
			"font-size: 12px",
			"letter-spacing: 1px",
			"text-transform: uppercase",
			"color: #2563eb",
			"margin-bottom: 6px",
		), text(report.ReportTypeName)))
	}
	appendChildren(header, el("h1", style(
		"margin: 0 0 8px 0",
		"font-size: 26px",
		"color: #111827",
	), text(title)))
	if report.Description != "" {
		appendChildren(header, el("p", style("margin: 0 0 8px 0", "color: #4b5563", "font-size: 14px"), lines(report.Description)...))
	}
	appendChildren(header, el("p", style("margin: 0", "color: #9ca3af", "font-size: 12px"),
		text("Generated "+opts.generatedAt().Format(dateDisplayLayout))))
	return header
}
