package model

import (
	"time"

	"gorm.io/datatypes"
)

// BlockType is the type tag of a report content block
type BlockType string

const (
	BlockTypeText    BlockType = "TEXT"
	BlockTypeChart   BlockType = "CHART"
	BlockTypeTable   BlockType = "TABLE"
	BlockTypeBullets BlockType = "BULLETS"
	BlockTypeNotes   BlockType = "NOTES"
)

// Report is a financial report authored as ordered sections of typed blocks
type Report struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title string `gorm:"size:512;not null" json:"title"`
	// ReportTypeName is the human phrase of the report type (e.g. "Weekly Market Review"), may be empty
	ReportTypeName string `gorm:"size:255" json:"report_type_name,omitempty"`
	Description    string `gorm:"type:text" json:"description,omitempty"`

	Sections []ReportSection `gorm:"foreignKey:ReportID" json:"sections,omitempty"`
}

// ReportSection is one chapter of a report
type ReportSection struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ReportID   uint   `gorm:"not null;index" json:"report_id"`
	Title      string `gorm:"size:512" json:"title"`
	OrderIndex int    `gorm:"not null;default:0" json:"order_index"`
	IsEnabled  bool   `gorm:"not null" json:"is_enabled"`

	Blocks []ReportBlock `gorm:"foreignKey:SectionID" json:"blocks,omitempty"`
}

// ReportBlock is a typed content block; Content holds the JSON payload for Type
type ReportBlock struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SectionID  uint           `gorm:"not null;index" json:"section_id"`
	Type       BlockType      `gorm:"size:20;not null" json:"type"`
	OrderIndex int            `gorm:"not null;default:0" json:"order_index"`
	IsEnabled  bool           `gorm:"not null" json:"is_enabled"`
	Content    datatypes.JSON `json:"content"`
}

// Decode narrows the raw payload to its typed content
func (b *ReportBlock) Decode() (BlockContent, error) {
	return DecodeBlockContent(b.Type, b.Content)
}

// Indicator is a named economic/financial time series
type Indicator struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name string `gorm:"size:255;not null" json:"name"`
	Unit string `gorm:"size:50" json:"unit,omitempty"`
}

// IndicatorValue is one observation of an indicator
type IndicatorValue struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	IndicatorID uint      `gorm:"not null;index:idx_indicator_date,priority:1" json:"indicator_id"`
	Date        time.Time `gorm:"not null;index:idx_indicator_date,priority:2" json:"date"`
	Value       float64   `json:"value"`
}
