package store

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// DiscountKind distinguishes code-activated coupons from staff-assigned discounts.
type DiscountKind string

const (
	DiscountKindCoupon DiscountKind = "COUPON"
	DiscountKindManual DiscountKind = "MANUAL"
)

// DiscountMode determines how a discount value is interpreted.
type DiscountMode string

const (
	DiscountModePercentage DiscountMode = "PERCENTAGE"
	DiscountModeFixed      DiscountMode = "FIXED"
)

// CartItemSource records how a line item entered the cart.
type CartItemSource string

const (
	CartItemSourceDirect   CartItemSource = "DIRECT"
	CartItemSourceTemplate CartItemSource = "TEMPLATE"
)

// TemplateStatus is the lifecycle state of an order template.
type TemplateStatus string

const (
	TemplateStatusDraft     TemplateStatus = "DRAFT"
	TemplateStatusActive    TemplateStatus = "ACTIVE"
	TemplateStatusCompleted TemplateStatus = "COMPLETED"
	TemplateStatusCancelled TemplateStatus = "CANCELLED"
)

// TemplateItemStatus is the lifecycle state of a template line item.
type TemplateItemStatus string

const (
	TemplateItemStatusActive     TemplateItemStatus = "ACTIVE"
	TemplateItemStatusCancelled  TemplateItemStatus = "CANCELLED"
	TemplateItemStatusInCart     TemplateItemStatus = "IN_CART"
	TemplateItemStatusDelivering TemplateItemStatus = "DELIVERING"
	TemplateItemStatusDelivered  TemplateItemStatus = "DELIVERED"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusFailed    OrderStatus = "FAILED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRefunded  OrderStatus = "REFUNDED"
)

// PaymentStatus is the lifecycle state of a payment attempt.
type PaymentStatus string

const (
	PaymentStatusInitiated PaymentStatus = "INITIATED"
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusSuccess   PaymentStatus = "SUCCESS"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

// Terminal reports whether the payment can no longer change state through webhooks.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed || s == PaymentStatusRefunded
}

// Discount models a coupon or manual discount definition.
type Discount struct {
	ID          pgtype.UUID
	Kind        DiscountKind
	Mode        DiscountMode
	Value       decimal.Decimal
	CouponCode  pgtype.Text
	ExpiresAt   pgtype.Timestamptz
	IsActive    bool
	CreatedBy   pgtype.UUID
	CreatorRole string
	CreatedAt   pgtype.Timestamptz
}

// ManualDiscountAssignment links a MANUAL discount to one user, optionally scoped to a template.
type ManualDiscountAssignment struct {
	ID         pgtype.UUID
	DiscountID pgtype.UUID
	UserID     pgtype.UUID
	TemplateID pgtype.UUID
	CreatedAt  pgtype.Timestamptz
}

// Cart is the single active cart owned by a user.
type Cart struct {
	ID              pgtype.UUID
	UserID          pgtype.UUID
	AppliedCouponID pgtype.UUID
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
}

// CartItem is one priced line inside a cart.
type CartItem struct {
	ID                   pgtype.UUID
	CartID               pgtype.UUID
	ProductID            pgtype.UUID
	VariantID            pgtype.UUID
	Title                string
	Qty                  int32
	UnitPrice            decimal.Decimal
	ManualDiscountAmount decimal.Decimal
	CouponDiscountAmount decimal.Decimal
	Source               CartItemSource
	TemplateID           pgtype.UUID
	TemplateItemID       pgtype.UUID
	CreatedAt            pgtype.Timestamptz
	UpdatedAt            pgtype.Timestamptz
}

// OrderTemplate is a staff-assisted draft order.
type OrderTemplate struct {
	ID        pgtype.UUID
	UserID    pgtype.UUID
	CreatedBy pgtype.UUID
	Status    TemplateStatus
	TotalCost decimal.Decimal
	Notes     pgtype.Text
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
	DeletedAt pgtype.Timestamptz
}

// OrderTemplateItem is one line inside an order template.
type OrderTemplateItem struct {
	ID            pgtype.UUID
	TemplateID    pgtype.UUID
	ProductID     pgtype.UUID
	VariantID     pgtype.UUID
	Title         string
	Qty           int32
	UnitPrice     decimal.Decimal
	Status        TemplateItemStatus
	MovedToCartAt pgtype.Timestamptz
	MovedCartID   pgtype.UUID
	CreatedAt     pgtype.Timestamptz
}

// Order is the immutable snapshot produced by checkout.
type Order struct {
	ID                pgtype.UUID
	UserID            pgtype.UUID
	Number            string
	Status            OrderStatus
	TotalAmount       decimal.Decimal
	DiscountAmount    decimal.Decimal
	TaxAmount         decimal.Decimal
	ShippingAmount    decimal.Decimal
	GrandTotal        decimal.Decimal
	ShippingAddressID pgtype.UUID
	BillingAddressID  pgtype.UUID
	Notes             pgtype.Text
	CreatedAt         pgtype.Timestamptz
}

// OrderItem is an immutable copy of a cart line at checkout time.
type OrderItem struct {
	ID             pgtype.UUID
	OrderID        pgtype.UUID
	ProductID      pgtype.UUID
	VariantID      pgtype.UUID
	Title          string
	Qty            int32
	UnitPrice      decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalPrice     decimal.Decimal
}

// OrderStatusHistory records one order status transition.
type OrderStatusHistory struct {
	ID         pgtype.UUID
	OrderID    pgtype.UUID
	FromStatus pgtype.Text
	ToStatus   OrderStatus
	Note       pgtype.Text
	CreatedAt  pgtype.Timestamptz
}

// Payment tracks a gateway payment attempt for an order.
type Payment struct {
	ID              pgtype.UUID
	OrderID         pgtype.UUID
	Status          PaymentStatus
	Amount          decimal.Decimal
	GatewayTxnID    string
	RequestPayload  []byte
	ResponsePayload []byte
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
}

// PaymentEvent is an append-only audit record of one webhook delivery.
type PaymentEvent struct {
	ID        pgtype.UUID
	PaymentID pgtype.UUID
	Status    PaymentStatus
	Payload   []byte
	CreatedAt pgtype.Timestamptz
}

// Segment groups products and categories for discount scoping.
type Segment struct {
	ID   pgtype.UUID
	Name string
}

// Variant is the priced sellable unit of a product.
type Variant struct {
	ID        pgtype.UUID
	ProductID pgtype.UUID
	Title     string
	Price     decimal.Decimal
	Stock     int32
}

// DomainEvent is a persisted fact emitted by a service after commit.
type DomainEvent struct {
	ID          pgtype.UUID
	Topic       string
	AggregateID pgtype.UUID
	Payload     []byte
	OccurredAt  pgtype.Timestamptz
}
