package models

import (
	"time"

	"github.com/google/uuid"
)

// ReportAccessLink stores the peppered digest of a one-time report access
// token. The link is spendable exactly once: used_at is set by a conditional
// update where it is currently null.
type ReportAccessLink struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	Email     string     `gorm:"column:email;not null;index"`
	TokenHash string     `gorm:"column:token_hash;not null;uniqueIndex"`
	ExpiresAt time.Time  `gorm:"column:expires_at;not null"`
	UsedAt    *time.Time `gorm:"column:used_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}
