package model

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
)

// ErrUnknownBlockType is returned when a block carries a type tag with no content shape
var ErrUnknownBlockType = errors.New("unknown block type")

// BlockContent is the closed set of typed block payloads.
// Implementations: *TextContent, *ChartContent, *TableContent, *BulletsContent, *NotesContent.
type BlockContent interface {
	BlockType() BlockType
}

// TextContent is a paragraph of plain or rich text
type TextContent struct {
	PlainText string `json:"plainText,omitempty"`
	// RichText is editor HTML; only its text is exported
	RichText string `json:"richText,omitempty"`
}

// BlockType implements BlockContent
func (*TextContent) BlockType() BlockType { return BlockTypeText }

// DateRange bounds an indicator series, dates formatted as YYYY-MM-DD
type DateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// DataPoint is one dated observation embedded in chart content
type DataPoint struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// IndicatorConfig describes one indicator plotted by a chart
type IndicatorConfig struct {
	IndicatorID uint       `json:"indicatorId"`
	Name        string     `json:"name,omitempty"`
	ChartType   string     `json:"chartType,omitempty"`
	DateRange   *DateRange `json:"dateRange,omitempty"`
	// Points, when present, are used as-is instead of fetching the series
	Points []DataPoint `json:"points,omitempty"`
}

// SelectedIndicator is the legacy indicator reference shape
type SelectedIndicator struct {
	ID   uint   `json:"id"`
	Name string `json:"name,omitempty"`
}

// ChartStyle carries axis, legend and stacking options
type ChartStyle struct {
	ShowLegend     *bool  `json:"showLegend,omitempty"`
	LegendPosition string `json:"legendPosition,omitempty"`
	Stacked        bool   `json:"stacked,omitempty"`
	BeginAtZero    bool   `json:"beginAtZero,omitempty"`
	XAxisLabel     string `json:"xAxisLabel,omitempty"`
	YAxisLabel     string `json:"yAxisLabel,omitempty"`
	ShowGrid       *bool  `json:"showGrid,omitempty"`
}

// Dataset is one plotted series. Nil entries in Data are gaps.
type Dataset struct {
	Label           string     `json:"label"`
	Data            []*float64 `json:"data"`
	BorderColor     string     `json:"borderColor,omitempty"`
	BackgroundColor string     `json:"backgroundColor,omitempty"`
	Type            string     `json:"type,omitempty"`
	IndicatorID     uint       `json:"indicatorId,omitempty"`
	// Synthetic marks placeholder data substituted for a failed fetch
	Synthetic bool `json:"synthetic,omitempty"`
}

// ChartData is the labels plus one dataset per indicator
type ChartData struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// ChartContent is a chart block payload
type ChartContent struct {
	ChartTitle       string            `json:"chartTitle,omitempty"`
	ChartType        string            `json:"chartType,omitempty"`
	ChartConfig      ChartStyle        `json:"chartConfig"`
	ChartData        *ChartData        `json:"chartData,omitempty"`
	IndicatorConfigs []IndicatorConfig `json:"indicatorConfigs,omitempty"`

	// Legacy shape: a flat indicator list sharing one date range
	SelectedIndicators []SelectedIndicator `json:"selectedIndicators,omitempty"`
	DateRange          *DateRange          `json:"dateRange,omitempty"`
}

// BlockType implements BlockContent
func (*ChartContent) BlockType() BlockType { return BlockTypeChart }

// HasData reports whether there is at least one dataset to plot
func (c *ChartContent) HasData() bool {
	return c.ChartData != nil && len(c.ChartData.Datasets) > 0
}

// ResolveIndicators returns the indicators to plot. IndicatorConfigs wins;
// the legacy list inherits the chart-level type and date range.
func (c *ChartContent) ResolveIndicators() []IndicatorConfig {
	if len(c.IndicatorConfigs) > 0 {
		return c.IndicatorConfigs
	}
	out := make([]IndicatorConfig, 0, len(c.SelectedIndicators))
	for _, sel := range c.SelectedIndicators {
		out = append(out, IndicatorConfig{
			IndicatorID: sel.ID,
			Name:        sel.Name,
			ChartType:   c.ChartType,
			DateRange:   c.DateRange,
		})
	}
	return out
}

// TableContent is a header row plus data rows
type TableContent struct {
	Caption string     `json:"caption,omitempty"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// BlockType implements BlockContent
func (*TableContent) BlockType() BlockType { return BlockTypeTable }

// BulletItem is one bullet; Level 0 is the outermost
type BulletItem struct {
	Text  string `json:"text"`
	Level int    `json:"level"`
}

// BulletsContent is a nested bullet list
type BulletsContent struct {
	Items []BulletItem `json:"items"`
}

// BlockType implements BlockContent
func (*BulletsContent) BlockType() BlockType { return BlockTypeBullets }

// Note types understood by the assemblers
const (
	NoteTypeInfo    = "info"
	NoteTypeWarning = "warning"
	NoteTypeError   = "error"
	NoteTypeSuccess = "success"
	NoteTypeNeutral = "neutral"
)

// NotesContent is a highlighted note
type NotesContent struct {
	Title    string `json:"title,omitempty"`
	Text     string `json:"text"`
	NoteType string `json:"noteType,omitempty"`
}

// BlockType implements BlockContent
func (*NotesContent) BlockType() BlockType { return BlockTypeNotes }

// DecodeBlockContent narrows raw JSON to the content shape named by t.
// An empty payload decodes to the zero value of that shape.
func DecodeBlockContent(t BlockType, raw []byte) (BlockContent, error) {
	var content BlockContent
	switch t {
	case BlockTypeText:
		content = &TextContent{}
	case BlockTypeChart:
		content = &ChartContent{}
	case BlockTypeTable:
		content = &TableContent{}
	case BlockTypeBullets:
		content = &BulletsContent{}
	case BlockTypeNotes:
		content = &NotesContent{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBlockType, t)
	}

	if len(raw) == 0 || string(raw) == "null" {
		return content, nil
	}
	if err := json.Unmarshal(raw, content); err != nil {
		return nil, fmt.Errorf("decode %s content: %w", t, err)
	}
	return content, nil
}

// EncodeBlockContent serializes content for storage in ReportBlock.Content
func EncodeBlockContent(content BlockContent) (datatypes.JSON, error) {
	data, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("encode %s content: %w", content.BlockType(), err)
	}
	return datatypes.JSON(data), nil
}
