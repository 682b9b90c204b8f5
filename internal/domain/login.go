package domain

import "time"

// DateKeyLayout formats the calendar date that keys a daily log-on.
const DateKeyLayout = "20060102"

// Login is a user's status for one calendar day.
type Login struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	UserID    int64     `json:"user_id"`
	Date      string    `json:"date"`
	Topic     string    `json:"topic"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DateKey returns the YYYYMMDD key for t in loc. A nil loc keeps t's location.
func DateKey(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(DateKeyLayout)
}
