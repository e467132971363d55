package models

import "time"

// Context is a user-owned knowledge collection. Documents and chat history
// belong to exactly one context; deleting a context cascades to both.
type Context struct {
	ID          string    `json:"id" badgerhold:"key"` // ctx_{uuid}
	UserID      string    `json:"user_id" badgerhold:"index"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
