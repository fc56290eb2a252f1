package templates

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"cert-studio/studio-backend/pkg/apperr"
)

type Repository interface {
	List(ctx context.Context, owner string) ([]Template, error)
	Get(ctx context.Context, owner string, id uuid.UUID) (*Template, error)
	Create(ctx context.Context, tpl *Template) error
	Update(ctx context.Context, tpl *Template) error
	Delete(ctx context.Context, owner string, id uuid.UUID) error
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// Migrate creates or updates the templates table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Template{})
}

func (r *gormRepository) List(ctx context.Context, owner string) ([]Template, error) {
	var out []Template
	err := r.db.WithContext(ctx).
		Where("owner_email = ?", owner).
		Order("updated_at DESC").
		Find(&out).Error
	return out, err
}

func (r *gormRepository) Get(ctx context.Context, owner string, id uuid.UUID) (*Template, error) {
	var tpl Template
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_email = ?", id, owner).
		First(&tpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: template %s", apperr.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *gormRepository) Create(ctx context.Context, tpl *Template) error {
	return r.db.WithContext(ctx).Create(tpl).Error
}

func (r *gormRepository) Update(ctx context.Context, tpl *Template) error {
	return r.db.WithContext(ctx).Save(tpl).Error
}

func (r *gormRepository) Delete(ctx context.Context, owner string, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND owner_email = ?", id, owner).
		Delete(&Template{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: template %s", apperr.ErrNotFound, id)
	}
	return nil
}
