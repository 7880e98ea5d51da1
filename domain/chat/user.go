package chat

import "time"

const DefaultAvatar = "https://via.placeholder.com/150"

type User struct {
	ID           UserID
	Username     string
	PasswordHash string
	Avatar       string
	CreatedAt    time.Time
}
