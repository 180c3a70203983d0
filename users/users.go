// Package users holds the peripheral user model hydrated after a successful
// authentication. The authentication protocol itself never depends on it.
package users

import (
	"time"

	"github.com/google/uuid"
)

// User is a directory entry for an authenticated principal, shaped after the
// provider's profile payload.
type User struct {
	ID                string    `json:"id"`
	DisplayName       string    `json:"display_name,omitempty"`
	GivenName         string    `json:"given_name,omitempty"`
	Surname           string    `json:"surname,omitempty"`
	Mail              string    `json:"mail,omitempty"`
	JobTitle          string    `json:"job_title,omitempty"`
	OfficeLocation    string    `json:"office_location,omitempty"`
	PreferredLanguage string    `json:"preferred_language,omitempty"`
	PrincipalName     string    `json:"user_principal_name,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Factory constructs a user for an identity key the store has not seen.
// Construction must always succeed.
type Factory func(id string) *User

// NewUser is the default user factory. An empty id gets a generated one so
// hydration from partial provider data still yields a keyed entry.
func NewUser(id string) *User {
	if id == "" {
		id = uuid.NewString()
	}
	return &User{ID: id, CreatedAt: time.Now()}
}
