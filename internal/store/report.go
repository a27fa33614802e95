package store

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/reportgate/reportgate/internal/model"
)

// DateLayout is the layout of DateRange bounds
const DateLayout = "2006-01-02"

// ReportStore is the read model for report trees and indicator series.
// Report authoring itself lives elsewhere; Create exists for seeding and tests.
type ReportStore interface {
	Create(report *model.Report) error
	GetByID(id uint) (*model.Report, error)

	// GetReportTree loads a report with only enabled sections and blocks,
	// both in ascending OrderIndex.
	GetReportTree(id uint) (*model.Report, error)

	// UpdateBlockContent replaces one block's content payload
	UpdateBlockContent(blockID uint, content datatypes.JSON) error

	CreateIndicator(indicator *model.Indicator) error
	AddIndicatorValues(values []model.IndicatorValue) error

	// GetIndicatorSeries returns observations of an indicator ordered by date.
	// A nil range or empty bound is open-ended.
	GetIndicatorSeries(indicatorID uint, rng *model.DateRange) ([]model.IndicatorValue, error)
}

// reportStore implements ReportStore using GORM.
type reportStore struct {
	db *gorm.DB
}

func newReportStore(db *gorm.DB) ReportStore {
	return &reportStore{db: db}
}

func (s *reportStore) Create(report *model.Report) error {
	return s.db.Create(report).Error
}

func (s *reportStore) GetByID(id uint) (*model.Report, error) {
	var report model.Report
	if err := s.db.First(&report, id).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *reportStore) GetReportTree(id uint) (*model.Report, error) {
	var report model.Report
	err := s.db.
		Preload("Sections", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_enabled = ?", true).Order("order_index ASC, id ASC")
		}).
		Preload("Sections.Blocks", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_enabled = ?", true).Order("order_index ASC, id ASC")
		}).
		First(&report, id).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *reportStore) UpdateBlockContent(blockID uint, content datatypes.JSON) error {
	result := s.db.Model(&model.ReportBlock{}).Where("id = ?", blockID).Update("content", content)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *reportStore) CreateIndicator(indicator *model.Indicator) error {
	return s.db.Create(indicator).Error
}

func (s *reportStore) AddIndicatorValues(values []model.IndicatorValue) error {
	if len(values) == 0 {
		return nil
	}
	return s.db.CreateInBatches(values, 100).Error
}

func (s *reportStore) GetIndicatorSeries(indicatorID uint, rng *model.DateRange) ([]model.IndicatorValue, error) {
	var indicator model.Indicator
	if err := s.db.Select("id").First(&indicator, indicatorID).Error; err != nil {
		return nil, err
	}

	query := s.db.Where("indicator_id = ?", indicatorID)
	if rng != nil {
		if rng.Start != "" {
			start, err := time.Parse(DateLayout, rng.Start)
			if err != nil {
				return nil, fmt.Errorf("invalid range start %q: %w", rng.Start, err)
			}
			query = query.Where("date >= ?", start)
		}
		if rng.End != "" {
			end, err := time.Parse(DateLayout, rng.End)
			if err != nil {
				return nil, fmt.Errorf("invalid range end %q: %w", rng.End, err)
			}
			// End is inclusive of the whole day
			query = query.Where("date < ?", end.AddDate(0, 0, 1))
		}
	}

	var values []model.IndicatorValue
	err := query.Order("date ASC").Find(&values).Error
	return values, err
}
