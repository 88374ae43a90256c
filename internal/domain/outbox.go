package domain

import "time"

// KindPurchaseChatNotify asks the deliverer to (re)render a purchase in the
// shared chat and notify its requester.
const KindPurchaseChatNotify = "purchase_chat_notify"

// OutboxStatus is the delivery state of an outbox entry.
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSent    OutboxStatus = "sent"
	OutboxFailed  OutboxStatus = "failed"
)

// Valid reports whether s is a known outbox status.
func (s OutboxStatus) Valid() bool {
	return s == OutboxPending || s == OutboxSent || s == OutboxFailed
}

// MaxLastErrorLen caps the stored LastError text.
const MaxLastErrorLen = 2000

// OutboxEntry is a durable notification job. Entries are inserted in the
// same transaction as the fact they announce and afterwards mutated only by
// the delivery worker. Rows are never deleted.
//
// Invariants:
//   - Attempts never decreases.
//   - Status "sent" implies NextRetryAt is nil.
//   - Status "failed" is terminal.
type OutboxEntry struct {
	ID          int64        `json:"id"                      gorm:"primaryKey;autoIncrement"`
	Kind        string       `json:"kind"                    gorm:"type:varchar(64);not null;index:idx_outbox_kind"`
	Payload     string       `json:"payload"                 gorm:"type:text;not null"`
	Status      OutboxStatus `json:"status"                  gorm:"type:varchar(16);not null;default:'pending';index:idx_outbox_status;index:idx_outbox_due,priority:1;check:status IN ('pending','sent','failed')"`
	Attempts    int          `json:"attempts"                gorm:"not null;default:0"`
	NextRetryAt *time.Time   `json:"next_retry_at,omitempty" gorm:"index:idx_outbox_next_retry;index:idx_outbox_due,priority:2"`
	LastError   *string      `json:"last_error,omitempty"    gorm:"type:text"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// TableName returns the database table name for OutboxEntry.
func (OutboxEntry) TableName() string { return "notification_outbox" }

// NotifyPayload is the JSON body of a purchase_chat_notify entry.
type NotifyPayload struct {
	PurchaseID int64 `json:"purchase_id"`
}

// ChatLink remembers which shared-chat message renders a purchase so later
// notifications edit it in place instead of posting a new one.
type ChatLink struct {
	PurchaseID int64     `json:"purchase_id" gorm:"primaryKey;autoIncrement:false"`
	ChatID     int64     `json:"chat_id"     gorm:"not null"`
	MessageID  int       `json:"message_id"  gorm:"not null"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for ChatLink.
func (ChatLink) TableName() string { return "purchase_chat_links" }
