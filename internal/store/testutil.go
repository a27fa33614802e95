package store

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/reportgate/reportgate/internal/database"
	"github.com/reportgate/reportgate/internal/model"
)

// SetupTestDB creates a temporary SQLite database for testing.
// It returns a Store instance and a cleanup function.
// The cleanup function should be called with defer in tests.
func SetupTestDB(t *testing.T) (Store, func()) {
	t.Helper()

	// Reset database state to allow re-initialization
	database.ResetForTesting()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	if err := database.InitWithPath(dbPath); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	cleanup := func() {
		database.Close()
		database.ResetForTesting()
	}

	return NewStore(database.Get()), cleanup
}

// TestBlock describes a block for CreateTestReport. Content is marshaled to JSON.
type TestBlock struct {
	Type     model.BlockType
	Content  interface{}
	Disabled bool
}

// TestSection describes a section for CreateTestReport
type TestSection struct {
	Title    string
	Disabled bool
	Blocks   []TestBlock
}

// CreateTestReport creates a report tree whose order indexes follow slice order.
func CreateTestReport(t *testing.T, s Store, title string, sections ...TestSection) *model.Report {
	t.Helper()

	report := &model.Report{Title: title}
	for i, sec := range sections {
		section := model.ReportSection{
			Title:      sec.Title,
			OrderIndex: i,
			IsEnabled:  !sec.Disabled,
		}
		for j, blk := range sec.Blocks {
			raw, err := json.Marshal(blk.Content)
			if err != nil {
				t.Fatalf("Failed to marshal block content: %v", err)
			}
			section.Blocks = append(section.Blocks, model.ReportBlock{
				Type:       blk.Type,
				OrderIndex: j,
				IsEnabled:  !blk.Disabled,
				Content:    datatypes.JSON(raw),
			})
		}
		report.Sections = append(report.Sections, section)
	}

	if err := s.Report().Create(report); err != nil {
		t.Fatalf("Failed to create test report: %v", err)
	}
	return report
}

// CreateTestIndicator creates an indicator with one value per date (YYYY-MM-DD).
func CreateTestIndicator(t *testing.T, s Store, name string, points map[string]float64) *model.Indicator {
	t.Helper()

	indicator := &model.Indicator{Name: name}
	if err := s.Report().CreateIndicator(indicator); err != nil {
		t.Fatalf("Failed to create test indicator: %v", err)
	}

	values := make([]model.IndicatorValue, 0, len(points))
	for date, v := range points {
		d, err := time.Parse(DateLayout, date)
		if err != nil {
			t.Fatalf("Invalid test date %q: %v", date, err)
		}
		values = append(values, model.IndicatorValue{IndicatorID: indicator.ID, Date: d, Value: v})
	}
	if err := s.Report().AddIndicatorValues(values); err != nil {
		t.Fatalf("Failed to add indicator values: %v", err)
	}
	return indicator
}
