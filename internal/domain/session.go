package domain

import "time"

// Session is an authenticated session record. The token itself is the lookup
// key and never appears in serialized session data; expiry is a rolling
// window over LastActivity.
type Session struct {
	Token        string    `json:"-" gorm:"primaryKey;size:64"`
	Identity     Identity  `json:"user_id" gorm:"serializer:json;type:text;not null"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Expired reports whether the session's inactivity window has elapsed.
func (s *Session) Expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivity) > timeout
}
