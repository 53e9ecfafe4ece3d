package models

import "time"

// Order statuses in lifecycle order. Cancelled is reachable from any pre-terminal status.
const (
	OrderStatusPendingConfirmation = "pending_confirmation"
	OrderStatusPending             = "pending"
	OrderStatusConfirmed           = "confirmed"
	OrderStatusPreparing           = "preparing"
	OrderStatusReady               = "ready"
	OrderStatusOutForDelivery      = "out_for_delivery"
	OrderStatusDelivered           = "delivered"
	OrderStatusCompleted           = "completed"
	OrderStatusCancelled           = "cancelled"
)

const (
	PaymentCOD = "cod"
	PaymentUPI = "upi"
)

const (
	PaymentStatusUnpaid              = "unpaid"
	PaymentStatusVerificationPending = "verification_pending"
	PaymentStatusVerified            = "verified"
	PaymentStatusRejected            = "rejected"
)

// OrderItem snapshots name and unit price so later menu edits do not change the order.
type OrderItem struct {
	ItemRef  string `json:"itemRef" bson:"itemRef"`
	Name     string `json:"name" bson:"name"`
	Quantity int    `json:"quantity" bson:"quantity"`
	Price    int64  `json:"price" bson:"price"`
}

// LineTotal is price × quantity.
func (i OrderItem) LineTotal() int64 {
	return i.Price * int64(i.Quantity)
}

// Order is the persisted order document.
type Order struct {
	ID               string      `json:"orderId" bson:"_id"`
	CustomerPhone    string      `json:"customerPhone" bson:"customerPhone"`
	CustomerName     string      `json:"customerName" bson:"customerName"`
	Items            []OrderItem `json:"items" bson:"items"`
	Subtotal         int64       `json:"subtotal" bson:"subtotal"`
	DeliveryFee      int64       `json:"deliveryFee" bson:"deliveryFee"`
	Total            int64       `json:"total" bson:"total"`
	DistanceKm       float64     `json:"distanceKm" bson:"distanceKm"`
	DeliveryAddress  string      `json:"deliveryAddress" bson:"deliveryAddress"`
	CustomerLocation *GeoPoint   `json:"customerLocation,omitempty" bson:"customerLocation,omitempty"`
	Status           string      `json:"status" bson:"status"`
	PaymentMethod    string      `json:"paymentMethod" bson:"paymentMethod"`
	PaymentStatus    string      `json:"paymentStatus" bson:"paymentStatus"`
	CreatedAt        time.Time   `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt" bson:"updatedAt"`
}

// ShortID is the customer-facing order reference.
func (o *Order) ShortID() string {
	if len(o.ID) > 8 {
		return o.ID[:8]
	}
	return o.ID
}

// OrderFilter narrows admin order listings. Zero values mean "any".
type OrderFilter struct {
	Status        string
	CustomerPhone string
	Limit         int
}

// PaymentProof is an unverified payment claim: a UTR number and/or a stored screenshot.
type PaymentProof struct {
	ID          string    `json:"id" bson:"_id"`
	OrderID     string    `json:"orderId" bson:"orderId"`
	Phone       string    `json:"phone" bson:"phone"`
	UTR         string    `json:"utr,omitempty" bson:"utr,omitempty"`
	MediaKey    string    `json:"mediaKey,omitempty" bson:"mediaKey,omitempty"`
	ContentType string    `json:"contentType,omitempty" bson:"contentType,omitempty"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

// OutboundMessage is a logged system message sent to a customer.
type OutboundMessage struct {
	Phone     string    `bson:"phone"`
	OrderID   string    `bson:"orderId,omitempty"`
	Status    string    `bson:"status,omitempty"`
	Content   string    `bson:"content"`
	CreatedAt time.Time `bson:"createdAt"`
}
