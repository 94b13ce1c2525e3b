package repository

import (
	"context"

	"github.com/kudulodge/reservation-service/internal/models"
	"gorm.io/gorm"
)

type PackageRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Package, error)
}

type packageRepository struct {
	db *gorm.DB
}

func NewPackageRepository(db *gorm.DB) PackageRepository {
	return &packageRepository{db: db}
}

func (r *packageRepository) FindByID(ctx context.Context, id uint) (*models.Package, error) {
	var pkg models.Package
	if err := r.db.WithContext(ctx).First(&pkg, id).Error; err != nil {
		return nil, err
	}
	return &pkg, nil
}
