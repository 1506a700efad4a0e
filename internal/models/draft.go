package models

import "github.com/shopspring/decimal"

// RecordDraft carries the user-entered values of a create or update, in
// internal terms. The gateway translates it to the remote column bag.
type RecordDraft struct {
	Icon        string          `json:"icon"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Location    string          `json:"location"`
	Amount      decimal.Decimal `json:"amount"`
	// Timestamp is the record's date column as epoch millis.
	Timestamp   int64    `json:"timestamp"`
	PhotoTokens []string `json:"photo_tokens,omitempty"`
}
