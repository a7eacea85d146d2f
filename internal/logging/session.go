package logging

import "github.com/google/uuid"

// NewSessionID returns a fresh identifier for one open database session.
// Every log line written while the session is open carries it.
func NewSessionID() string {
	return uuid.NewString()
}
