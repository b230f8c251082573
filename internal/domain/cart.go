package domain

import "time"

// Cart is the shopping cart owned by a user. A cart exists exactly when its
// owner is active.
type Cart struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
