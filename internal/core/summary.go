package core

import "github.com/google/uuid"

// CategoryTotal represents an amount aggregated by category.
type CategoryTotal struct {
	CategoryID uuid.UUID `json:"category_id"`
	Name       string    `json:"name"`
	Emoji      string    `json:"emoji"`
	Amount     int64     `json:"amount"`
}

// MonthSummary is a compact summary for a specific year+month.
type MonthSummary struct {
	Year       int             `json:"year"`
	Month      int             `json:"month"` // 1-12
	Total      int64           `json:"total"`
	ByCategory []CategoryTotal `json:"by_category"`
}
