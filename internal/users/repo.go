package users

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/quizlabhq/quizlab-backend/pkg/db/models"
	pkgerrors "github.com/quizlabhq/quizlab-backend/pkg/errors"
)

// Repository is the persistence surface for anonymous users.
type Repository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	// SetEmailIfEmpty writes email only when the user has none on file.
	// It reports whether a row was updated.
	SetEmailIfEmpty(ctx context.Context, id, email string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a users repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query user")
	}
	return &user, nil
}

func (r *repository) SetEmailIfEmpty(ctx context.Context, id, email string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND (email IS NULL OR email = '')", id).
		Update("email", email)
	if result.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "update user email")
	}
	return result.RowsAffected > 0, nil
}
