package models

import "time"

// User is the anonymous visitor identity the quiz front end assigns. There is
// no account system; the id is an opaque client-generated value and the email
// is denormalized from the first paid order we see for it.
type User struct {
	ID        string     `gorm:"column:id;type:text;primaryKey"`
	Email     *string    `gorm:"column:email;index"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	LastSeen  *time.Time `gorm:"column:last_seen_at"`
}
