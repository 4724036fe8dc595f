package storage

import (
	"time"

	"github.com/google/uuid"

	"towing-contact/api/services/contact"
)

// Session is one page view's form. It lives only in memory and is dropped
// after it has been idle longer than the store's TTL.
type Session struct {
	ID        uuid.UUID     `json:"id"`
	Form      *contact.Form `json:"-"`
	CreatedAt time.Time     `json:"createdAt"`
	LastSeen  time.Time     `json:"lastSeen"`
}
