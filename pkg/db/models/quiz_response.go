package models

import (
	"time"

	"github.com/google/uuid"
)

// QuizResponse is the completed quiz result an order pays to unlock.
type QuizResponse struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      string     `gorm:"column:user_id;type:text;not null;index"`
	Archetype   string     `gorm:"column:archetype;not null"`
	Answers     []byte     `gorm:"column:answers;type:jsonb"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
