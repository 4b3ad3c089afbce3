package models

import (
	"time"
)

// Promotion промокод на скидку; применяется к поездке по коду
type Promotion struct {
	ID              uint       `json:"id"`
	Code            string     `json:"code"`
	DiscountPercent float64    `json:"discount_percent"`
	Active          bool       `json:"active"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}
