package awards

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/lms-engagements/pkg/db/models"
	"github.com/angelmondragon/lms-engagements/pkg/enums"
	"gorm.io/gorm"
)

// Repository exposes persistence helpers for award handlers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetTemplate(ctx context.Context, id int64) (*models.EngagementTemplate, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	HasActiveEnrollment(ctx context.Context, userID, postID int64) (bool, error)
	AwardRecordExists(ctx context.Context, userID, relatedPostID, templateID int64) (bool, error)
	CreateAwardRecord(ctx context.Context, record *models.AwardRecord) error
	DeleteAwardRecord(ctx context.Context, id int64) error
	CreateUserEngagement(ctx context.Context, awarded *models.UserEngagement) error
	GetUserEngagement(ctx context.Context, id int64) (*models.UserEngagement, error)
	ListUserEngagementsByTemplate(ctx context.Context, templateID int64) ([]models.UserEngagement, error)
	UpdateUserEngagementContent(ctx context.Context, id int64, title, content string, syncedAt time.Time) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an awards repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) GetTemplate(ctx context.Context, id int64) (*models.EngagementTemplate, error) {
	var tmpl models.EngagementTemplate
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&tmpl).Error; err != nil {
		return nil, err
	}
	return &tmpl, nil
}

func (r *repositoryImpl) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repositoryImpl) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *repositoryImpl) HasActiveEnrollment(ctx context.Context, userID, postID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("user_id = ? AND post_id = ? AND status = ?", userID, postID, enums.EnrollmentStatusEnrolled).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repositoryImpl) AwardRecordExists(ctx context.Context, userID, relatedPostID, templateID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AwardRecord{}).
		Where("user_id = ? AND related_post_id = ? AND template_id = ?", userID, relatedPostID, templateID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repositoryImpl) CreateAwardRecord(ctx context.Context, record *models.AwardRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repositoryImpl) DeleteAwardRecord(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&models.AwardRecord{}, id).Error
}

func (r *repositoryImpl) CreateUserEngagement(ctx context.Context, awarded *models.UserEngagement) error {
	return r.db.WithContext(ctx).Create(awarded).Error
}

func (r *repositoryImpl) GetUserEngagement(ctx context.Context, id int64) (*models.UserEngagement, error) {
	var awarded models.UserEngagement
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&awarded).Error; err != nil {
		return nil, err
	}
	return &awarded, nil
}

func (r *repositoryImpl) ListUserEngagementsByTemplate(ctx context.Context, templateID int64) ([]models.UserEngagement, error) {
	var rows []models.UserEngagement
	if err := r.db.WithContext(ctx).Where("template_id = ?", templateID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) UpdateUserEngagementContent(ctx context.Context, id int64, title, content string, syncedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.UserEngagement{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"title":     title,
			"content":   content,
			"synced_at": syncedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
