package domain

import "time"

// Subscriber is a newsletter recipient. Delivery only targets confirmed
// subscribers.
type Subscriber struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Confirmed bool      `json:"confirmed"`
	CreatedAt time.Time `json:"created_at"`
}
