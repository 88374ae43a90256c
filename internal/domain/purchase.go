// Package domain defines the persistence models for purchase requests, their
// audit trail, and the notification outbox. These types are mapped with GORM
// and form the core data layer of the purchase backend.
package domain

import "time"

// Status is the lifecycle state of a purchase request.
type Status string

const (
	StatusNew        Status = "NEW"
	StatusInProgress Status = "IN_PROGRESS"
	StatusBought     Status = "BOUGHT"
	StatusCanceled   Status = "CANCELED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusBought, StatusCanceled:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusBought || s == StatusCanceled
}

// Priority marks how urgently a purchase should be handled.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p == PriorityNormal || p == PriorityUrgent
}

// Purchase is a request from a requester to buy something. Status is only
// mutated by the purchase state machine; rows are never deleted.
//
// Fields:
//   - ID: autoincrement primary key.
//   - RequesterID: Telegram user id of the requester (also its private chat id).
//   - Description: free text entered during intake.
//   - PhotoRef: optional opaque reference into the external photo store.
//   - Priority: "normal" or "urgent".
//   - Status: NEW, IN_PROGRESS, BOUGHT or CANCELED.
//   - Taken*/Bought*/Archived*: actor id and time of the matching transition.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Purchase struct {
	ID          int64      `json:"id"                    gorm:"primaryKey;autoIncrement"`
	RequesterID int64      `json:"requester_id"          gorm:"not null;index:idx_purchases_requester"`
	Description string     `json:"description"           gorm:"type:text;not null"`
	PhotoRef    *string    `json:"photo_ref,omitempty"   gorm:"type:varchar(255)"`
	Priority    Priority   `json:"priority"              gorm:"type:varchar(16);not null;default:'normal';check:priority IN ('normal','urgent')"`
	Status      Status     `json:"status"                gorm:"type:varchar(16);not null;default:'NEW';index:idx_purchases_status;check:status IN ('NEW','IN_PROGRESS','BOUGHT','CANCELED')"`
	TakenAt     *time.Time `json:"taken_at,omitempty"`
	TakenBy     *int64     `json:"taken_by,omitempty"`
	BoughtAt    *time.Time `json:"bought_at,omitempty"`
	BoughtBy    *int64     `json:"bought_by,omitempty"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
	ArchivedBy  *int64     `json:"archived_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"            gorm:"index:idx_purchases_updated"`
}

// TableName returns the database table name for Purchase.
func (Purchase) TableName() string { return "purchases" }

// EventType classifies entries of the purchase audit trail.
type EventType string

const (
	EventTaken    EventType = "taken"
	EventBought   EventType = "bought"
	EventCanceled EventType = "canceled"
	EventComment  EventType = "comment"
)

// PurchaseEvent is an append-only audit record. Every state-changing
// transition writes exactly one event in the same transaction as the status
// update; comments are written on demand.
type PurchaseEvent struct {
	ID         int64     `json:"id"                 gorm:"primaryKey;autoIncrement"`
	PurchaseID int64     `json:"purchase_id"        gorm:"not null;index:idx_purchase_events_purchase"`
	ActorID    *int64    `json:"actor_id,omitempty"`
	Type       EventType `json:"type"               gorm:"type:varchar(16);not null;check:type IN ('taken','bought','canceled','comment')"`
	Text       *string   `json:"text,omitempty"     gorm:"type:text"`
	Payload    *string   `json:"payload,omitempty"  gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"         gorm:"index:idx_purchase_events_created"`

	// Purchase is the owning request. Events are never removed on their own.
	Purchase Purchase `json:"-" gorm:"foreignKey:PurchaseID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for PurchaseEvent.
func (PurchaseEvent) TableName() string { return "purchase_events" }

// TransitionPayload is the JSON body stored on transition events.
type TransitionPayload struct {
	From Status `json:"from"`
	To   Status `json:"to"`
}
