package models

import (
	"context"
	"time"

	"github.com/blomoto/garage_backend/config"
	"github.com/blomoto/garage_backend/utils"
)

// Garage is the service provider that issues quotes and invoices. Listing
// details (services, geolocation, photos) live in the catalog service.
type Garage struct {
	ID        int       `gorm:"primary_key" json:"id"`
	OwnerId   int       `gorm:"index;not null" json:"owner_id" binding:"required"`
	Name      string    `gorm:"size:255;not null" json:"name" binding:"required"`
	Email     string    `gorm:"size:255" json:"email"`
	Phone     string    `gorm:"size:50" json:"phone"`
	Address   string    `gorm:"size:255" json:"address"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CreateGarage sets up the provider profile for a garage-role account.
func CreateGarage(ctx context.Context, garage *Garage) (*Garage, error) {
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(garage).Error; err != nil {
		return nil, err
	}
	return garage, nil
}

// GetGarageForOwner resolves the garage operated by the acting user.
func GetGarageForOwner(ctx context.Context, ownerId int) (*Garage, error) {
	garage, err := utils.FetchSingleModelWhere[Garage](ctx, "owner_id = ?", ownerId)
	if err != nil {
		return nil, utils.NewNotFoundError("no garage for user %d", ownerId)
	}
	return garage, nil
}
