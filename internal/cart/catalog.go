package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/owlscommerce/owls-backend/pkg/db/models"
)

// Catalog is the read-only product surface the cart needs.
type Catalog interface {
	Product(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Variant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error)
	Inventory(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error)
}

type gormCatalog struct {
	db *gorm.DB
}

// NewCatalog returns a catalog reader bound to the provided database.
func NewCatalog(db *gorm.DB) Catalog {
	return &gormCatalog{db: db}
}

func (c *gormCatalog) Product(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := c.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *gormCatalog) Variant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	if err := c.db.WithContext(ctx).First(&variant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

func (c *gormCatalog) Inventory(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := c.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}
