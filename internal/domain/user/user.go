package user

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	Email          string
	FullName       string
	HashedPassword string
	IsActive       bool
	IsSuperuser    bool
	CreatedAt      time.Time
}

type CreateUserInput struct {
	Email          string
	FullName       string
	HashedPassword string
}
