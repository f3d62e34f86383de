package reports

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/quizlabhq/quizlab-backend/pkg/db/models"
	pkgerrors "github.com/quizlabhq/quizlab-backend/pkg/errors"
)

// Repository is the persistence surface for report access links.
type Repository interface {
	CreateLink(ctx context.Context, link *models.ReportAccessLink) error
	FindLinkByHash(ctx context.Context, tokenHash string) (*models.ReportAccessLink, error)
	// ConsumeLink marks the link used only where used_at is currently null.
	// The second concurrent consumer observes zero rows updated and must
	// treat the link as already spent.
	ConsumeLink(ctx context.Context, tokenHash string, now time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a report-access-link repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateLink(ctx context.Context, link *models.ReportAccessLink) error {
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create access link")
	}
	return nil
}

func (r *repository) FindLinkByHash(ctx context.Context, tokenHash string) (*models.ReportAccessLink, error) {
	var link models.ReportAccessLink
	err := r.db.WithContext(ctx).
		Where("token_hash = ?", tokenHash).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "access link not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query access link")
	}
	return &link, nil
}

func (r *repository) ConsumeLink(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ReportAccessLink{}).
		Where("token_hash = ? AND used_at IS NULL AND expires_at > ?", tokenHash, now).
		Update("used_at", now)
	if result.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "consume access link")
	}
	return result.RowsAffected > 0, nil
}
