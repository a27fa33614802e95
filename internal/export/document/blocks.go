package document

import (
	stderrors "errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/reportgate/reportgate/internal/export/chart"
	"github.com/reportgate/reportgate/internal/model"
	"github.com/reportgate/reportgate/pkg/logger"
)

// Placeholder texts shown in place of a chart image
const (
	ChartDataUnavailable = "Chart data not available"
	ChartRenderFailed    = "Chart generation failed"
	ChartImageOmitted    = "Chart image not included in this export"
)

// Empty-state texts
const (
	emptyTable   = "No table data available"
	emptyBullets = "No items"
	emptySection = "This section has no content"
)

// maxBulletLevel caps indentation depth
const maxBulletLevel = 6

// noteStyle is the border and background of a note
type noteStyle struct {
	Border     string
	Background string
	Title      string
}

var noteStyles = map[string]noteStyle{
	model.NoteTypeInfo:    {Border: "#3b82f6", Background: "#eff6ff", Title: "#1e40af"},
	model.NoteTypeWarning: {Border: "#f59e0b", Background: "#fffbeb", Title: "#92400e"},
	model.NoteTypeError:   {Border: "#ef4444", Background: "#fef2f2", Title: "#991b1b"},
	model.NoteTypeSuccess: {Border: "#10b981", Background: "#ecfdf5", Title: "#065f46"},
	model.NoteTypeNeutral: {Border: "#9ca3af", Background: "#f9fafb", Title: "#374151"},
}

// noteStyleFor returns the style for a note type; unknown types look like info
func noteStyleFor(noteType string) noteStyle {
	if s, ok := noteStyles[noteType]; ok {
		return s
	}
	return noteStyles[model.NoteTypeInfo]
}

// blockRenderer turns one block into nodes. Both layouts share it.
type blockRenderer struct {
	opts Options
}

// render dispatches on the block type. A nil node means the block is omitted.
func (r *blockRenderer) render(block *model.ReportBlock) *html.Node {
	content, err := block.Decode()
	if err != nil {
		if stderrors.Is(err, model.ErrUnknownBlockType) {
			return comment(fmt.Sprintf("unsupported block type: %s", block.Type))
		}
		logger.Warn("Skipping block with invalid content",
			zap.Uint("block_id", block.ID),
			zap.String("type", string(block.Type)),
			zap.Error(err),
		)
		return comment(fmt.Sprintf("invalid %s block %d", block.Type, block.ID))
	}

	var body *html.Node
	switch c := content.(type) {
	case *model.TextContent:
		body = r.textBlock(c)
	case *model.ChartContent:
		if r.opts.SkipCharts {
			return nil
		}
		body = r.chartBlock(block.ID, c)
	case *model.TableContent:
		body = r.tableBlock(c)
	case *model.BulletsContent:
		body = r.bulletsBlock(c)
	case *model.NotesContent:
		body = r.notesBlock(c)
	default:
		return comment(fmt.Sprintf("unsupported block type: %s", block.Type))
	}

	return el("div", withAttrs(style("margin: 0 0 20px 0"),
		"class", "block block-"+string(block.Type),
		"data-block-id", strconv.FormatUint(uint64(block.ID), 10),
	), body)
}

func (r *blockRenderer) textBlock(c *model.TextContent) *html.Node {
	s := c.PlainText
	if s == "" {
		s = ExtractText(c.RichText)
	}
	return el("div", style(
		"padding: 14px 18px",
		"background: #f8fafc",
		"border-left: 4px solid #2563eb",
		"border-radius: 4px",
		"color: #1f2937",
		"font-size: 14px",
		"line-height: 1.6",
	), lines(s)...)
}

func (r *blockRenderer) chartBlock(blockID uint, c *model.ChartContent) *html.Node {
	container := el("div", withAttrs(style(
		"padding: 12px",
		"border: 1px solid #e5e7eb",
		"border-radius: 6px",
		"background: #ffffff",
		"text-align: center",
	), "class", "chart"))

	if c.ChartTitle != "" {
		appendChildren(container, el("div", style(
			"font-weight: 600",
			"font-size: 15px",
			"color: #111827",
			"margin-bottom: 8px",
		), text(c.ChartTitle)))
	}

	if !c.HasData() {
		appendChildren(container, placeholder(ChartDataUnavailable))
		return container
	}

	result := r.opts.Charts[blockID]
	if result == nil {
		appendChildren(container, placeholder(ChartRenderFailed))
		return container
	}

	if r.opts.SkipImages {
		appendChildren(container, placeholder(ChartImageOmitted))
		return container
	}

	alt := c.ChartTitle
	if alt == "" {
		alt = "Chart"
	}
	appendChildren(container, el("img", withAttrs(style(
		"display: block",
		"max-width: 100%",
		"height: auto",
		"margin: 0 auto",
	), "src", imageSource(result), "alt", alt)))
	return container
}

// imageSource prefers the storage URL and falls back to a local file URL
func imageSource(result *chart.RenderResult) string {
	if result.StorageURL != "" {
		return result.StorageURL
	}
	path := result.FilePath
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "file://" + filepath.ToSlash(path)
}

func placeholder(msg string) *html.Node {
	return el("p", withAttrs(style(
		"margin: 12px 0",
		"font-style: italic",
		"color: #6b7280",
	), "class", "chart-placeholder"), el("em", nil, text(msg)))
}

func emptyState(msg string) *html.Node {
	return el("div", withAttrs(style(
		"padding: 12px",
		"border: 1px dashed #d1d5db",
		"border-radius: 4px",
		"color: #9ca3af",
		"font-style: italic",
		"text-align: center",
	), "class", "empty-state"), text(msg))
}

func (r *blockRenderer) tableBlock(c *model.TableContent) *html.Node {
	if len(c.Headers) == 0 || len(c.Rows) == 0 {
		return emptyState(emptyTable)
	}

	cellStyle := []string{"padding: 8px 10px", "border: 1px solid #e5e7eb", "font-size: 13px"}

	headRow := el("tr", nil)
	for _, h := range c.Headers {
		appendChildren(headRow, el("th", style(append(cellStyle,
			"background: #f3f4f6",
			"text-align: left",
			"font-weight: 600",
		)...), text(h)))
	}

	tbody := el("tbody", nil)
	for i, row := range c.Rows {
		tr := el("tr", nil)
		if i%2 == 1 {
			tr.Attr = style("background: #f9fafb")
		}
		for _, cell := range row {
			appendChildren(tr, el("td", style(cellStyle...), text(cell)))
		}
		appendChildren(tbody, tr)
	}

	table := el("table", withAttrs(style(
		"width: 100%",
		"border-collapse: collapse",
	), "cellpadding", "0", "cellspacing", "0", "role", "table"))
	if c.Caption != "" {
		appendChildren(table, el("caption", style(
			"caption-side: top",
			"text-align: left",
			"font-weight: 600",
			"padding-bottom: 6px",
		), text(c.Caption)))
	}
	appendChildren(table, el("thead", nil, headRow), tbody)
	return table
}

func (r *blockRenderer) bulletsBlock(c *model.BulletsContent) *html.Node {
	if len(c.Items) == 0 {
		return emptyState(emptyBullets)
	}

	list := el("ul", style("list-style: none", "margin: 0", "padding: 0"))
	for _, item := range c.Items {
		level := item.Level
		if level < 0 {
			level = 0
		}
		if level > maxBulletLevel {
			level = maxBulletLevel
		}
		marker := "•"
		if level%2 == 1 {
			marker = "◦"
		}
		appendChildren(list, el("li", withAttrs(style(
			fmt.Sprintf("margin: 0 0 6px %dpx", level*24),
			"font-size: 14px",
			"line-height: 1.5",
			"color: #1f2937",
		), "data-level", strconv.Itoa(level)),
			el("span", style("display: inline-block", "width: 16px", "color: #2563eb"), text(marker)),
			text(item.Text),
		))
	}
	return list
}

func (r *blockRenderer) notesBlock(c *model.NotesContent) *html.Node {
	s := noteStyleFor(c.NoteType)
	note := el("div", withAttrs(style(
		"padding: 12px 16px",
		"border: 1px solid "+s.Border,
		"border-left-width: 4px",
		"background: "+s.Background,
		"border-radius: 4px",
		"font-size: 14px",
		"line-height: 1.5",
		"color: #1f2937",
	), "class", "note"))
	if c.Title != "" {
		appendChildren(note, el("div", style("font-weight: 600", "margin-bottom: 4px", "color: "+s.Title), text(c.Title)))
	}
	appendChildren(note, el("div", nil, lines(c.Text)...))
	return note
}

// orderedSections returns sections sorted by OrderIndex with their blocks sorted too
func orderedSections(report *model.Report) []model.ReportSection {
	sections := make([]model.ReportSection, len(report.Sections))
	copy(sections, report.Sections)
	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].OrderIndex < sections[j].OrderIndex
	})
	for i := range sections {
		blocks := make([]model.ReportBlock, len(sections[i].Blocks))
		copy(blocks, sections[i].Blocks)
		sort.SliceStable(blocks, func(a, b int) bool {
			return blocks[a].OrderIndex < blocks[b].OrderIndex
		})
		sections[i].Blocks = blocks
	}
	return sections
}

// renderBlocks renders a section's blocks, dropping omitted ones
func (r *blockRenderer) renderBlocks(blocks []model.ReportBlock) []*html.Node {
	out := make([]*html.Node, 0, len(blocks))
	for i := range blocks {
		if n := r.render(&blocks[i]); n != nil {
			out = append(out, n)
		}
	}
	return out
}
