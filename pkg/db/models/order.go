package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quizlabhq/quizlab-backend/pkg/enums"
)

// Order represents a single purchase attempt for a quiz report.
//
// Status writes go through the conditional update in the orders repository;
// paid is terminal for the success branch. The raw report access token is
// never stored, only its peppered digest.
type Order struct {
	ID                    uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Status                enums.OrderStatus `gorm:"column:status;type:text;not null;default:'created'"`
	Amount                decimal.Decimal   `gorm:"column:amount;type:numeric(10,2);not null"`
	Currency              string            `gorm:"column:currency;type:text;not null;default:'USD'"`
	QuizResponseID        uuid.UUID         `gorm:"column:quiz_response_id;type:uuid;not null"`
	ProviderOrderID       *string           `gorm:"column:provider_order_id;index"`
	ProviderSessionID     string            `gorm:"column:provider_session_id;not null;index"`
	ReportAccessTokenHash *string           `gorm:"column:report_access_token_hash"`
	Email                 string            `gorm:"column:email;not null;index"`
	UserID                string            `gorm:"column:user_id;not null;index"`
	ReportFileKey         *string           `gorm:"column:report_file_key"`
	CreatedAt             time.Time         `gorm:"column:created_at;autoCreateTime"`
	PaidAt                *time.Time        `gorm:"column:paid_at"`
	UpdatedAt             time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
