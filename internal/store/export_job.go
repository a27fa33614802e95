package store

import (
	"time"

	"gorm.io/gorm"

	"github.com/reportgate/reportgate/internal/model"
)

// ExportJobStore defines operations for ExportJob records.
type ExportJobStore interface {
	Create(job *model.ExportJob) error
	GetByID(id uint) (*model.ExportJob, error)

	// Update applies a column patch, e.g. {"status": ..., "file_path": ...}
	Update(id uint, updates map[string]interface{}) error

	// ListByReport returns a report's jobs, newest first
	ListByReport(reportID uint) ([]model.ExportJob, error)
	Delete(id uint) error

	// ListExpiredCompleted returns completed jobs whose ExpiresAt is at or before now
	ListExpiredCompleted(now time.Time) ([]model.ExportJob, error)
}

// exportJobStore implements ExportJobStore using GORM.
type exportJobStore struct {
	db *gorm.DB
}

func newExportJobStore(db *gorm.DB) ExportJobStore {
	return &exportJobStore{db: db}
}

func (s *exportJobStore) Create(job *model.ExportJob) error {
	return s.db.Create(job).Error
}

func (s *exportJobStore) GetByID(id uint) (*model.ExportJob, error) {
	var job model.ExportJob
	if err := s.db.First(&job, id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *exportJobStore) Update(id uint, updates map[string]interface{}) error {
	result := s.db.Model(&model.ExportJob{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *exportJobStore) ListByReport(reportID uint) ([]model.ExportJob, error) {
	var jobs []model.ExportJob
	err := s.db.Where("report_id = ?", reportID).
		Order("created_at DESC, id DESC").
		Find(&jobs).Error
	return jobs, err
}

func (s *exportJobStore) Delete(id uint) error {
	return s.db.Delete(&model.ExportJob{}, id).Error
}

func (s *exportJobStore) ListExpiredCompleted(now time.Time) ([]model.ExportJob, error) {
	var jobs []model.ExportJob
	err := s.db.Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?",
		model.ExportStatusCompleted, now.UTC()).
		Order("expires_at ASC").
		Find(&jobs).Error
	return jobs, err
}
