package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserForLogin carries the credential columns needed to check a password.
type UserForLogin struct {
	ID        string
	Name      string
	Email     string
	Pwd       string
	PwdSalt   uuid.UUID
	TokenSalt uuid.UUID
}

// Credentials is the password_auth row of a user.
type Credentials struct {
	UserID    string
	Pwd       string
	PwdSalt   uuid.UUID
	TokenSalt uuid.UUID
}
