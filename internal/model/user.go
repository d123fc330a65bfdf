package model

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID          uuid.UUID
	DisplayName string
	Age         int
	City        string
	Karma       int
	CreatedAt   time.Time
}
