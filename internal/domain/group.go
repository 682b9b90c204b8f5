package domain

import "time"

// Group represents a Telegram chat registered with the bot.
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Link        string    `json:"link"`
	Description string    `json:"description"`
	ChatID      int64     `json:"chat_id"`
	CreatedAt   time.Time `json:"creation_time"`
	Admin       string    `json:"group_admin"`
	Active      bool      `json:"active"`
}
