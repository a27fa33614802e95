package document

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/reportgate/reportgate/internal/model"
)

// blocksPerPage is how many blocks fit between manual page breaks
const blocksPerPage = 3

// Theme is the cover page palette
type Theme struct {
	Name      string
	Primary   string
	Secondary string
	Accent    string
}

// coverThemes is matched in order against the report type name, then the title
var coverThemes = []struct {
	phrases []string
	theme   Theme
}{
	{[]string{"daily", "diario", "morning"}, Theme{Name: "daily", Primary: "#0f766e", Secondary: "#14b8a6", Accent: "#ccfbf1"}},
	{[]string{"weekly", "semanal"}, Theme{Name: "weekly", Primary: "#1d4ed8", Secondary: "#60a5fa", Accent: "#dbeafe"}},
	{[]string{"monthly", "mensual"}, Theme{Name: "monthly", Primary: "#4338ca", Secondary: "#818cf8", Accent: "#e0e7ff"}},
	{[]string{"quarterly", "trimestral"}, Theme{Name: "quarterly", Primary: "#7c3aed", Secondary: "#a78bfa", Accent: "#ede9fe"}},
	{[]string{"annual", "anual", "yearly"}, Theme{Name: "annual", Primary: "#b45309", Secondary: "#f59e0b", Accent: "#fef3c7"}},
	{[]string{"inflation", "inflación", "cpi"}, Theme{Name: "inflation", Primary: "#b91c1c", Secondary: "#f87171", Accent: "#fee2e2"}},
	{[]string{"market", "mercado", "equity"}, Theme{Name: "market", Primary: "#047857", Secondary: "#34d399", Accent: "#d1fae5"}},
}

// BaselineTheme is used when nothing matches
var BaselineTheme = Theme{Name: "baseline", Primary: "#111827", Secondary: "#4b5563", Accent: "#f3f4f6"}

// CoverTheme picks the cover theme by case-insensitive phrase match on the
// report type name, then the title.
func CoverTheme(report *model.Report) Theme {
	for _, candidate := range []string{report.ReportTypeName, report.Title} {
		if theme, ok := matchTheme(candidate); ok {
			return theme
		}
	}
	return BaselineTheme
}

func matchTheme(s string) (Theme, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Theme{}, false
	}
	for _, entry := range coverThemes {
		for _, phrase := range entry.phrases {
			if strings.Contains(s, phrase) {
				return entry.theme, true
			}
		}
	}
	return Theme{}, false
}

const printCSS = `@page { size: A4; }
* { box-sizing: border-box; }
body { margin: 0; font-family: ` + fontStack + `; color: #1f2937; -webkit-print-color-adjust: exact; print-color-adjust: exact; }
.cover { height: 9.8in; display: flex; flex-direction: column; justify-content: center; padding: 0 0.4in; }
.page-break { page-break-after: always; break-after: page; height: 0; }
.section { margin: 0 0 28px 0; }
.section h2 { font-size: 20px; margin: 0 0 16px 0; padding-bottom: 8px; border-bottom: 2px solid #e5e7eb; page-break-after: avoid; break-after: avoid; }
.block { page-break-inside: avoid; break-inside: avoid; }
.chart img { max-width: 100%; }
.disclaimer { font-size: 10px; color: #9ca3af; margin-top: 32px; }`

// AssemblePrint renders a report for print-to-PDF: a themed cover page,
// then every section, with a page break after each third block of a section.
func AssemblePrint(report *model.Report, opts Options) (string, error) {
	r := &blockRenderer{opts: opts}
	title := reportHeading(report)

	body := el("body", nil, coverPage(report, title, CoverTheme(report), opts), pageBreak())

	for _, section := range orderedSections(report) {
		sec := el("div", attrs("class", "section"), el("h2", nil, text(section.Title)))

		blocks := r.renderBlocks(section.Blocks)
		if len(blocks) == 0 {
			appendChildren(sec, emptyState(emptySection))
		}
		for i, b := range blocks {
			appendChildren(sec, b)
			if (i+1)%blocksPerPage == 0 && i != len(blocks)-1 {
				appendChildren(sec, pageBreak())
			}
		}
		appendChildren(body, sec)
	}

	if opts.Disclaimer != "" {
		appendChildren(body, el("p", attrs("class", "disclaimer"), text(opts.Disclaimer)))
	}

	root := el("html", attrs("lang", "en"), head(title, printCSS), body)
	return render(newDocument(root))
}

func pageBreak() *html.Node {
	return el("div", attrs("class", "page-break"))
}

func coverPage(report *model.Report, title string, theme Theme, opts Options) *html.Node {
	cover := el("div", withAttrs(style(
		"background: linear-gradient(135deg, "+theme.Primary+" 0%, "+theme.Secondary+" 100%)",
		"color: #ffffff",
	), "class", "cover cover-"+theme.Name, "data-theme", theme.Name))

	if report.ReportTypeName != "" {
		appendChildren(cover, el("div", style(
			"font-size: 14px",
			"letter-spacing: 2px",
			"text-transform: uppercase",
			"color: "+theme.Accent,
			"margin-bottom: 12px",
		), text(report.ReportTypeName)))
	}
	appendChildren(cover, el("h1", style("font-size: 40px", "line-height: 1.2", "margin: 0 0 16px 0"), text(title)))
	if report.Description != "" {
		appendChildren(cover, el("p", style("font-size: 16px", "margin: 0 0 24px 0", "opacity: 0.9"), lines(report.Description)...))
	}
	appendChildren(cover, el("div", style("font-size: 13px", "color: "+theme.Accent),
		text(opts.generatedAt().Format(dateDisplayLayout))))
	return cover
}
