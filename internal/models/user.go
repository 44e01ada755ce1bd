package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Subject   string    `json:"-"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}
