package graphql

import (
	"time"

	"github.com/ButyrinIA/bookblog/internal/models"
)

// User - пользователь без хеша пароля и почты.
type User struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	CreatedAt  time.Time `json:"createdAt"`
	Subscribed *bool     `json:"subscribed,omitempty"`
}

// AuthPayload - ответ register и login
type AuthPayload struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

func toUser(u *models.User) *User {
	return &User{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt}
}
