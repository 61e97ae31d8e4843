package domain

import "time"

// User is the read projection of a platform user. The console never mutates it.
type User struct {
	ID         int64      `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	Credits    int64      `json:"credits"`
	IsVerified bool       `json:"is_verified"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

// Candidate is a user shown in the grant target picker.
type Candidate struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Balance int64  `json:"balance"`
}

// AsCandidate projects u for the target picker.
func (u User) AsCandidate() Candidate {
	return Candidate{ID: u.ID, Name: u.Name, Email: u.Email, Balance: u.Credits}
}
