package engagements

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/lms-engagements/pkg/db/models"
	"github.com/angelmondragon/lms-engagements/pkg/enums"
	pkgerrors "github.com/angelmondragon/lms-engagements/pkg/errors"
	"github.com/angelmondragon/lms-engagements/pkg/pagination"
)

// Repository persists engagement definitions.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an engagement repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByTrigger returns published definitions listening for any of the
// triggers. A definition scoped to a post only matches that post; an
// unscoped one matches every event.
func (r *Repository) FindByTrigger(ctx context.Context, triggers []enums.TriggerType, relatedPostID *int64) ([]models.Engagement, error) {
	if len(triggers) == 0 {
		return nil, nil
	}
	query := r.db.WithContext(ctx).
		Where("status = ?", enums.EngagementStatusPublish).
		Where("trigger_type IN ?", triggers)
	if relatedPostID != nil {
		query = query.Where("(trigger_post_id IS NULL OR trigger_post_id = ?)", *relatedPostID)
	} else {
		query = query.Where("trigger_post_id IS NULL")
	}

	var rows []models.Engagement
	if err := query.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Create inserts a new definition.
func (r *Repository) Create(ctx context.Context, engagement *models.Engagement) error {
	return r.db.WithContext(ctx).Create(engagement).Error
}

// Update persists every editable column of the definition.
func (r *Repository) Update(ctx context.Context, engagement *models.Engagement) error {
	res := r.db.WithContext(ctx).
		Model(&models.Engagement{}).
		Where("id = ?", engagement.ID).
		Updates(map[string]any{
			"title":           engagement.Title,
			"status":          engagement.Status,
			"trigger_type":    engagement.TriggerType,
			"trigger_post_id": engagement.TriggerPostID,
			"award_type":      engagement.AwardType,
			"template_id":     engagement.TemplateID,
			"delay_days":      engagement.DelayDays,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(engagement.ID)
	}
	return nil
}

// Get loads one definition. A missing row yields a NOT_FOUND error.
func (r *Repository) Get(ctx context.Context, id int64) (*models.Engagement, error) {
	var engagement models.Engagement
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&engagement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load engagement")
	}
	return &engagement, nil
}

// Exists reports whether a definition row is present regardless of status.
func (r *Repository) Exists(ctx context.Context, id int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Engagement{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// List returns a page of definitions, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) (ListPage, error) {
	limit := pagination.NormalizeLimit(filter.Limit)
	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return ListPage{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	query := r.db.WithContext(ctx).Model(&models.Engagement{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	} else {
		query = query.Where("status <> ?", enums.EngagementStatusTrash)
	}
	if filter.TriggerType != "" {
		query = query.Where("trigger_type = ?", filter.TriggerType)
	}
	if filter.AwardType != "" {
		query = query.Where("award_type = ?", filter.AwardType)
	}
	if cursor != nil {
		query = query.Where("id < ?", cursor.ID)
	}

	var rows []models.Engagement
	if err := query.Order("id DESC").Limit(pagination.LimitWithBuffer(filter.Limit)).Find(&rows).Error; err != nil {
		return ListPage{}, err
	}

	page := ListPage{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{ID: page.Items[limit-1].ID})
	}
	return page, nil
}

// SetStatus changes the publication status of a definition.
func (r *Repository) SetStatus(ctx context.Context, id int64, status enums.EngagementStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Engagement{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(id)
	}
	return nil
}

// Delete removes the definition row.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Engagement{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(id)
	}
	return nil
}

// FindPost loads a catalog post, used to resolve purchase triggers.
func (r *Repository) FindPost(ctx context.Context, id int64) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// FindTemplate loads an award template.
func (r *Repository) FindTemplate(ctx context.Context, id int64) (*models.EngagementTemplate, error) {
	var tmpl models.EngagementTemplate
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&tmpl).Error; err != nil {
		return nil, err
	}
	return &tmpl, nil
}

func notFound(id int64) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "engagement not found").WithDetails(map[string]any{"engagement_id": id})
}
