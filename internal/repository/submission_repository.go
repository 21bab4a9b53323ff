package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"tour-service/internal/models"
)

var ErrSubmissionNotFound = errors.New("submission not found")

// SubmissionRepository persists submission metadata.
type SubmissionRepository interface {
	Create(ctx context.Context, sub *models.Submission) error
	// Save inserts sub or replaces the entry with the same file name.
	Save(ctx context.Context, sub *models.Submission) error
	Get(ctx context.Context, fileName string) (*models.Submission, error)
	List(ctx context.Context) ([]models.Submission, error)
	Delete(ctx context.Context, fileName string) error
}

// GormSubmissionRepository keeps submissions in postgres.
type GormSubmissionRepository struct {
	db *gorm.DB
}

func NewGormSubmissionRepository(db *gorm.DB) *GormSubmissionRepository {
	return &GormSubmissionRepository{db: db}
}

func (r *GormSubmissionRepository) Create(ctx context.Context, sub *models.Submission) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *GormSubmissionRepository) Save(ctx context.Context, sub *models.Submission) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

func (r *GormSubmissionRepository) Get(ctx context.Context, fileName string) (*models.Submission, error) {
	var sub models.Submission
	err := r.db.WithContext(ctx).First(&sub, "file_name = ?", fileName).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// List returns submissions oldest first, matching the log order.
func (r *GormSubmissionRepository) List(ctx context.Context) ([]models.Submission, error) {
	var subs []models.Submission
	err := r.db.WithContext(ctx).Order("submitted_at asc").Find(&subs).Error
	return subs, err
}

func (r *GormSubmissionRepository) Delete(ctx context.Context, fileName string) error {
	return r.db.WithContext(ctx).Delete(&models.Submission{}, "file_name = ?", fileName).Error
}
