package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/owlscommerce/owls-backend/internal/coupons"
	"github.com/owlscommerce/owls-backend/pkg/db/models"
	"github.com/owlscommerce/owls-backend/pkg/enums"
	pkgerrors "github.com/owlscommerce/owls-backend/pkg/errors"
)

func TestGetOrCreateReturnsSameCart(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newService(t, db)
	ctx := context.Background()
	userID := uuid.New()

	first, err := svc.GetOrCreate(ctx, userID)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := svc.GetOrCreate(ctx, userID)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected one cart per user, got %s and %s", first.ID, second.ID)
	}
	if first.Status != enums.CartStatusActive {
		t.Fatalf("expected active cart, got %s", first.Status)
	}
}

func TestGetOrCreateRequiresUser(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newService(t, db)

	_, err := svc.GetOrCreate(context.Background(), uuid.Nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestAddItemFoldsRepeatAdds(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newService(t, db)
	ctx := context.Background()
	userID := uuid.New()

	product := seedProduct(t, db, 50000, 10, nil)

	if _, err := svc.AddItem(ctx, AddItemInput{UserID: userID, ProductID: product.ID, Quantity: 2}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	cart, err := svc.AddItem(ctx, AddItemInput{UserID: userID, ProductID: product.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}

	if len(cart.Items) != 1 {
		t.Fatalf("expected one folded line, got %d", len(cart.Items))
	}
	if cart.Items[0].Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", cart.Items[0].Quantity)
	}
	if !cart.Subtotal.Equal(decimal.NewFromInt(150000)) {
		t.Fatalf("subtotal: %s", cart.Subtotal)
	}
	// 8% of 150000 plus 30000 shipping
	if !cart.TaxAmount.Equal(decimal.NewFromInt(12000)) {
		t.Fatalf("tax: %s", cart.TaxAmount)
	}
	if !cart.Total.Equal(decimal.NewFromInt(192000)) {
		t.Fatalf("total: %s", cart.Total)
	}
}

func TestAddItemVariantOverridesPriceAndInventory(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newService(t, db)
	ctx := context.Background()
	userID := uuid.New()

	product := seedProduct(t, db, 50000, 10, nil)
	variant := seedVariant(t, db, product.ID, 65000, 5)

	cart, err := svc.AddItem(ctx, AddItemInput{
		UserID:    userID,
		ProductID: product.ID,
		VariantID: &variant.ID,
		Quantity:  1,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !cart.Items[0].UnitPrice.Equal(decimal.NewFromInt(65000)) {
		t.Fatalf("expected variant price, got %s", cart.Items[0].UnitPrice)
	}
	if cart.Items[0].InventoryID != variant.InventoryID {
		t.Fatal("expected variant inventory binding")
	}
}

func TestAddItemVariantOfOtherProductRejected(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newService(t, db)

	product := seedProduct(t, db, 50000, 10, nil)
	other := seedProduct(t, db, 40000, 10, nil)
	variant := seedVariant(t, db, other.ID, 45000, 5)

	_, err := svc.AddItem(context.Background(), AddItemInput{
		UserID:    uuid.New(),
		ProductID: product.ID,
		VariantID: &variant.ID,
		Quantity:  1,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddItemInactiveProductRejected(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newService(t, db)

	product := seedProduct(t, db, 50000, 10, func(p *models.Product) {
		p.IsActive = false
	})

	_, err := svc.AddItem(context.Background(), AddItemInput{UserID: uuid.New(), ProductID: product.ID, Quantity: 1})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddItemQuantityBounds(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newService(t, db)
	product := seedProduct(t, db, 50000, 100, nil)

	for _, qty := range []int{0, -1, 11} {
		_, err := svc.AddItem(context.Background(), AddItemInput{UserID: uuid.New(), ProductID: product.ID, Quantity: qty})
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("qty %d: expected validation error, got %v", qty, err)
		}
	}
}

func TestAddItemAdvisoryStockCheck(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newService(t, db)
	product := seedProduct(t, db, 50000, 1, nil)

	_, err := svc.AddItem(context.Background(), AddItemInput{UserID: uuid.New(), ProductID: product.ID, Quantity: 2})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
}

func TestUpdateItemQuantity(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	product := seedProduct(t, db, 50000, 10, nil)

	cart, err := svc.AddItem(ctx, AddItemInput{UserID: userID, ProductID: product.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	updated, err := svc.UpdateItemQuantity(ctx, userID, cart.Items[0].ID, 4)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Items[0].Quantity != 4 {
		t.Fatalf("expected quantity 4, got %d", updated.Items[0].Quantity)
	}
	if !updated.Subtotal.Equal(decimal.NewFromInt(200000)) {
		t.Fatalf("subtotal not recalculated: %s", updated.Subtotal)
	}

	_, err = svc.UpdateItemQuantity(ctx, userID, uuid.New(), 2)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for unknown item, got %v", err)
	}
}

func TestRemoveItemZeroesTotals(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	product := seedProduct(t, db, 50000, 10, nil)

	cart, err := svc.AddItem(ctx, AddItemInput{UserID: userID, ProductID: product.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	emptied, err := svc.RemoveItem(ctx, userID, cart.Items[0].ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(emptied.Items) != 0 {
		t.Fatalf("expected empty cart, got %d items", len(emptied.Items))
	}
	if !emptied.Total.IsZero() || !emptied.ShippingFee.IsZero() {
		t.Fatalf("expected zero totals, got total=%s shipping=%s", emptied.Total, emptied.ShippingFee)
	}
}

func TestApplyCouponRecalculatesTotals(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newService(t, db)
	ctx := context.Background()
	userID := uuid.New()

	prodA := seedProduct(t, db, 50000, 10, nil)
	prodB := seedProduct(t, db, 80000, 10, nil)
	coupon := seedCoupon(t, db, func(c *models.Coupon) {
		c.Code = "WELCOME10"
		capped := decimal.NewFromInt(15000)
		c.MaxDiscountAmount = &capped
	})
	refreshRules(t, svc)

	if _, err := svc.AddItem(ctx, AddItemInput{UserID: userID, ProductID: prodA.ID, Quantity: 2}); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if _, err := svc.AddItem(ctx, AddItemInput{UserID: userID, ProductID: prodB.ID, Quantity: 1}); err != nil {
		t.Fatalf("add b: %v", err)
	}

	cart, err := svc.ApplyCoupon(ctx, userID, coupon.Code)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	// 180000 subtotal, 18000 capped to 15000, 8% tax on 165000, 30000 shipping
	if !cart.DiscountAmount.Equal(decimal.NewFromInt(15000)) {
		t.Fatalf("discount: %s", cart.DiscountAmount)
	}
	if !cart.TaxAmount.Equal(decimal.NewFromInt(13200)) {
		t.Fatalf("tax: %s", cart.TaxAmount)
	}
	if !cart.Total.Equal(decimal.NewFromInt(208200)) {
		t.Fatalf("total: %s", cart.Total)
	}
	if cart.CouponID == nil || *cart.CouponID != coupon.ID {
		t.Fatal("expected coupon attached")
	}
}

func TestApplyFreeShippingCouponWaivesFeeKeepsTaxBase(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newService(t, db)
	ctx := context.Background()
	userID := uuid.New()

	prod := seedProduct(t, db, 180000, 10, nil)
	coupon := seedCoupon(t, db, func(c *models.Coupon) {
		c.Code = "FREESHIP"
		c.DiscountType = enums.DiscountTypeFreeShipping
		c.DiscountValue = decimal.Zero
	})
	refreshRules(t, svc)

	if _, err := svc.AddItem(ctx, AddItemInput{UserID: userID, ProductID: prod.ID, Quantity: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}

	cart, err := svc.ApplyCoupon(ctx, userID, coupon.Code)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	// the waiver zeroes the fee line; the goods discount stays zero so the
	// 8% tax still applies to the full 180000 subtotal
	if !cart.DiscountAmount.IsZero() {
		t.Fatalf("discount: %s", cart.DiscountAmount)
	}
	if !cart.ShippingFee.IsZero() {
		t.Fatalf("shipping: %s", cart.ShippingFee)
	}
	if !cart.TaxAmount.Equal(decimal.NewFromInt(14400)) {
		t.Fatalf("tax: %s", cart.TaxAmount)
	}
	if !cart.Total.Equal(decimal.NewFromInt(194400)) {
		t.Fatalf("total: %s", cart.Total)
	}
}

func TestApplyCouponEmptyCart(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newService(t, db)
	ctx := context.Background()
	userID := uuid.New()

	if _, err := svc.GetOrCreate(ctx, userID); err != nil {
		t.Fatalf("create cart: %v", err)
	}
	seedCoupon(t, db, func(c *models.Coupon) { c.Code = "EMPTY1" })
	refreshRules(t, svc)

	_, err := svc.ApplyCoupon(ctx, userID, "EMPTY1")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApplyCouponUnknownCode(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	product := seedProduct(t, db, 50000, 10, nil)

	if _, err := svc.AddItem(ctx, AddItemInput{UserID: userID, ProductID: product.ID, Quantity: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}

	_, err := svc.ApplyCoupon(ctx, userID, "NOSUCHCODE")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeCouponInvalid {
		t.Fatalf("expected coupon invalid, got %v", err)
	}
}

func TestApplyCouponSnapshotLagFallsBackToTable(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	product := seedProduct(t, db, 50000, 10, nil)

	refreshRules(t, svc)
	// created after the snapshot was taken
	coupon := seedCoupon(t, db, func(c *models.Coupon) { c.Code = "FRESH1" })

	if _, err := svc.AddItem(ctx, AddItemInput{UserID: userID, ProductID: product.ID, Quantity: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}

	cart, err := svc.ApplyCoupon(ctx, userID, coupon.Code)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cart.CouponID == nil || *cart.CouponID != coupon.ID {
		t.Fatal("expected fresh coupon attached via table fallback")
	}
}

func TestApplyCouponPerUserLimit(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	product := seedProduct(t, db, 50000, 10, nil)

	coupon := seedCoupon(t, db, func(c *models.Coupon) {
		c.Code = "ONCE1"
		c.PerUserLimit = 1
	})
	refreshRules(t, svc)

	usage := models.CouponUsage{
		ID:              uuid.New(),
		CouponID:        coupon.ID,
		UserID:          userID,
		OrderID:         uuid.New(),
		DiscountApplied: decimal.NewFromInt(5000),
	}
	if err := db.Create(&usage).Error; err != nil {
		t.Fatalf("seed usage: %v", err)
	}

	if _, err := svc.AddItem(ctx, AddItemInput{UserID: userID, ProductID: product.ID, Quantity: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}

	_, err := svc.ApplyCoupon(ctx, userID, coupon.Code)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeCouponInvalid {
		t.Fatalf("expected coupon invalid, got %v", err)
	}
}

func TestRemoveCouponClearsDiscount(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	product := seedProduct(t, db, 100000, 10, nil)

	coupon := seedCoupon(t, db, func(c *models.Coupon) { c.Code = "DROPME" })
	refreshRules(t, svc)

	if _, err := svc.AddItem(ctx, AddItemInput{UserID: userID, ProductID: product.ID, Quantity: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.ApplyCoupon(ctx, userID, coupon.Code); err != nil {
		t.Fatalf("apply: %v", err)
	}

	cart, err := svc.RemoveCoupon(ctx, userID)
	if err != nil {
		t.Fatalf("remove coupon: %v", err)
	}
	if cart.CouponID != nil {
		t.Fatal("expected coupon detached")
	}
	if !cart.DiscountAmount.IsZero() {
		t.Fatalf("expected zero discount, got %s", cart.DiscountAmount)
	}
}

func TestClearTxConvertsCart(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	product := seedProduct(t, db, 50000, 10, nil)

	cart, err := svc.AddItem(ctx, AddItemInput{UserID: userID, ProductID: product.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.ClearTx(ctx, tx, cart.ID)
	}); err != nil {
		t.Fatalf("clear: %v", err)
	}

	var reloaded models.Cart
	if err := db.Preload("Items").First(&reloaded, "id = ?", cart.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != enums.CartStatusConverted {
		t.Fatalf("expected converted, got %s", reloaded.Status)
	}
	if len(reloaded.Items) != 0 {
		t.Fatalf("expected items cleared, got %d", len(reloaded.Items))
	}
	if !reloaded.Total.IsZero() {
		t.Fatalf("expected zero total, got %s", reloaded.Total)
	}

	// converted cart no longer counts as active
	if _, err := svc.UpdateItemQuantity(ctx, userID, uuid.New(), 1); err == nil {
		t.Fatal("expected no active cart after conversion")
	}
}

func TestLockActiveTxLoadsItems(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	product := seedProduct(t, db, 50000, 10, nil)

	if _, err := svc.AddItem(ctx, AddItemInput{UserID: userID, ProductID: product.ID, Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		cart, err := svc.LockActiveTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		if len(cart.Items) != 1 || cart.Items[0].Quantity != 2 {
			t.Fatalf("unexpected items %+v", cart.Items)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.LockActiveTx(ctx, tx, uuid.New())
		return err
	})
	if err == nil {
		t.Fatal("expected record not found for unknown user")
	}
}

// --- helpers ---

type gormTx struct {
	db *gorm.DB
}

func (g gormTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

func newService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	couponRepo := coupons.NewRepository(db)
	svc, err := NewService(
		NewRepository(db),
		NewCatalog(db),
		couponRepo,
		coupons.NewRules(couponRepo),
		gormTx{db: db},
		Options{
			TaxRate:         decimal.RequireFromString("0.08"),
			ShippingFee:     decimal.NewFromInt(30000),
			MaxItemQuantity: 10,
		},
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func refreshRules(t *testing.T, svc *Service) {
	t.Helper()
	if err := svc.rules.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh rules: %v", err)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	ddl := []string{`
CREATE TABLE carts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  coupon_id TEXT,
  subtotal NUMERIC NOT NULL DEFAULT 0,
  discount_amount NUMERIC NOT NULL DEFAULT 0,
  tax_amount NUMERIC NOT NULL DEFAULT 0,
  shipping_fee NUMERIC NOT NULL DEFAULT 0,
  total NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  variant_id TEXT,
  inventory_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE products (
  id TEXT PRIMARY KEY,
  vendor_id TEXT NOT NULL,
  inventory_id TEXT NOT NULL,
  name TEXT NOT NULL,
  sku TEXT NOT NULL,
  category TEXT,
  price NUMERIC NOT NULL,
  commission_rate NUMERIC NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE product_variants (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  inventory_id TEXT NOT NULL,
  name TEXT NOT NULL,
  sku TEXT NOT NULL,
  price NUMERIC NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE inventory_items (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  variant_id TEXT,
  stock_quantity INTEGER NOT NULL DEFAULT 0,
  tracks_inventory INTEGER NOT NULL DEFAULT 1,
  allow_backorder INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME
);`, `
CREATE TABLE coupons (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  description TEXT,
  discount_type TEXT NOT NULL,
  discount_value NUMERIC NOT NULL,
  max_discount_amount NUMERIC,
  min_order_amount NUMERIC NOT NULL DEFAULT 0,
  usage_limit INTEGER,
  times_used INTEGER NOT NULL DEFAULT 0,
  per_user_limit INTEGER NOT NULL DEFAULT 1,
  valid_from DATETIME NOT NULL,
  valid_until DATETIME,
  is_active INTEGER NOT NULL DEFAULT 1,
  applicable_categories TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE coupon_usages (
  id TEXT PRIMARY KEY,
  coupon_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  order_id TEXT NOT NULL,
  discount_applied NUMERIC NOT NULL,
  created_at DATETIME
);`}
	for _, stmt := range ddl {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, price int64, stock int, mutate func(*models.Product)) *models.Product {
	t.Helper()
	inv := models.InventoryItem{
		ID:              uuid.New(),
		ProductID:       uuid.New(),
		StockQuantity:   stock,
		TracksInventory: true,
	}
	if err := db.Create(&inv).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	product := &models.Product{
		ID:             inv.ProductID,
		VendorID:       uuid.New(),
		InventoryID:    inv.ID,
		Name:           "Product " + uuid.NewString()[:8],
		SKU:            "SKU-" + uuid.NewString()[:8],
		Price:          decimal.NewFromInt(price),
		CommissionRate: decimal.RequireFromString("0.10"),
		IsActive:       true,
	}
	if mutate != nil {
		mutate(product)
	}
	// GORM omits zero-valued fields carrying default:true tags on Create and
	// writes the database default back into the struct, so remember the
	// requested flag and force it with raw SQL after the insert.
	active := product.IsActive
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if err := db.Exec("UPDATE products SET is_active = ? WHERE id = ?", active, product.ID).Error; err != nil {
		t.Fatalf("seed product flags: %v", err)
	}
	product.IsActive = active
	return product
}

func seedVariant(t *testing.T, db *gorm.DB, productID uuid.UUID, price int64, stock int) *models.ProductVariant {
	t.Helper()
	variantID := uuid.New()
	inv := models.InventoryItem{
		ID:              uuid.New(),
		ProductID:       productID,
		VariantID:       &variantID,
		StockQuantity:   stock,
		TracksInventory: true,
	}
	if err := db.Create(&inv).Error; err != nil {
		t.Fatalf("seed variant inventory: %v", err)
	}
	variant := &models.ProductVariant{
		ID:          variantID,
		ProductID:   productID,
		InventoryID: inv.ID,
		Name:        "Size L",
		SKU:         "SKU-V-" + uuid.NewString()[:8],
		Price:       decimal.NewFromInt(price),
		IsActive:    true,
	}
	if err := db.Create(variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	return variant
}

func seedCoupon(t *testing.T, db *gorm.DB, mutate func(*models.Coupon)) *models.Coupon {
	t.Helper()
	now := time.Now().UTC()
	until := now.Add(24 * time.Hour)
	coupon := &models.Coupon{
		ID:             uuid.New(),
		Code:           "SAVE" + uuid.NewString()[:8],
		DiscountType:   enums.DiscountTypePercentage,
		DiscountValue:  decimal.NewFromInt(10),
		MinOrderAmount: decimal.Zero,
		PerUserLimit:   1,
		ValidFrom:      now.Add(-time.Hour),
		ValidUntil:     &until,
		IsActive:       true,
	}
	if mutate != nil {
		mutate(coupon)
	}
	if err := db.Create(coupon).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
	return coupon
}
