package database

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID             string    `bun:"id,pk"`
	Email          string    `bun:"email,notnull,unique"`
	FullName       string    `bun:"full_name,notnull"`
	HashedPassword string    `bun:"hashed_password,notnull"`
	Salt           string    `bun:"salt,notnull"`
	RefreshToken   string    `bun:"refresh_token,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type APIKey struct {
	bun.BaseModel `bun:"table:api_keys,alias:k"`

	ID        string    `bun:"id,pk"`
	Key       string    `bun:"key,notnull,unique"`
	Email     string    `bun:"email,notnull,unique"`
	ValidFrom time.Time `bun:"valid_from,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type KilledToken struct {
	bun.BaseModel `bun:"table:killed_tokens,alias:kt"`

	Token     string    `bun:"token,pk"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type Event struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	ID          string    `bun:"id,pk"`
	Title       string    `bun:"title,notnull"`
	Description *string   `bun:"description"`
	FromMs      int64     `bun:"from_ms,notnull"`
	ToMs        int64     `bun:"to_ms,notnull"`
	Host        string    `bun:"host,notnull"`
	PhotoKeys   []string  `bun:"photo_keys,array"`
	AttendeeIDs []string  `bun:"attendee_ids,array"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type Attendee struct {
	bun.BaseModel `bun:"table:attendees,alias:a"`

	UserID    string    `bun:"user_id,pk"`
	EventID   string    `bun:"event_id,pk"`
	Email     string    `bun:"email,notnull"`
	FullName  string    `bun:"full_name,notnull"`
	IsGoing   bool      `bun:"is_going,notnull"`
	RemindAt  int64     `bun:"remind_at,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type Task struct {
	bun.BaseModel `bun:"table:tasks,alias:t"`

	ID          string    `bun:"id,pk"`
	Title       string    `bun:"title,notnull"`
	Description *string   `bun:"description"`
	UserID      string    `bun:"user_id,notnull"`
	TimeMs      int64     `bun:"time_ms,notnull"`
	RemindAt    int64     `bun:"remind_at,notnull"`
	IsDone      bool      `bun:"is_done,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type Reminder struct {
	bun.BaseModel `bun:"table:reminders,alias:r"`

	ID          string    `bun:"id,pk"`
	Title       string    `bun:"title,notnull"`
	Description *string   `bun:"description"`
	UserID      string    `bun:"user_id,notnull"`
	TimeMs      int64     `bun:"time_ms,notnull"`
	RemindAt    int64     `bun:"remind_at,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
