package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

const (
	PermissionRead      = "read"
	PermissionReadWrite = "read-write"

	DefaultColor    = "#0E61B9"
	DefaultTimezone = "UTC"
)

type User struct {
	ID           string
	Username     string
	Email        *string
	PasswordHash string
	CreatedAt    time.Time
}

type Calendar struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	Color       string
	Timezone    string
	CTag        string
	SyncToken   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Object struct {
	ID         string
	CalendarID string
	UID        string
	ETag       string // stored with surrounding quotes, e.g. `"uuid"`
	ICalData   string
	Component  string
	DTStart    *string
	DTEnd      *string
	Summary    *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ObjectFields carries the indexed fields extracted from an iCalendar body.
type ObjectFields struct {
	Component string
	DTStart   *string
	DTEnd     *string
	Summary   *string
}

type Share struct {
	ID         string
	CalendarID string
	UserID     string
	Permission string
	CreatedAt  time.Time
}

type SharedCalendar struct {
	Calendar   *Calendar
	Permission string
}

type SyncChange struct {
	ID         int64
	CalendarID string
	ObjectUID  string
	ChangeType string // created | modified | deleted
	SyncToken  string
	CreatedAt  time.Time
}

type Token struct {
	ID        string
	UserID    string
	TokenHash string
	Name      string
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// Store is the shared persistence surface for both protocol frontends.
// Mutations to calendar contents rotate the calendar's ctag and sync_token
// and append a sync_changes row carrying the new token, atomically.
type Store interface {
	Close()

	// Users
	CreateUser(ctx context.Context, username string, email *string, passwordHash string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	UpdatePasswordHash(ctx context.Context, username, passwordHash string) error

	// Calendars
	CreateCalendar(ctx context.Context, ownerID, name, description, color, timezone string) (*Calendar, error)
	CreateCalendarWithID(ctx context.Context, id, ownerID, name, description, color, timezone string) (*Calendar, error)
	GetCalendar(ctx context.Context, id string) (*Calendar, error)
	ListCalendarsVisibleTo(ctx context.Context, userID string) ([]*Calendar, error)
	UpdateCalendarProps(ctx context.Context, id string, name, description, color *string) (*Calendar, error)
	DeleteCalendar(ctx context.Context, id string) error

	// Objects
	PutObject(ctx context.Context, calendarID, uid, icalData string, fields ObjectFields) (obj *Object, isNew bool, err error)
	GetObject(ctx context.Context, calendarID, uid string) (*Object, error)
	ListObjects(ctx context.Context, calendarID string) ([]*Object, error)
	ListObjectsInRange(ctx context.Context, calendarID, start, end string) ([]*Object, error)
	GetObjectsByUIDs(ctx context.Context, calendarID string, uids []string) ([]*Object, error)
	DeleteObject(ctx context.Context, calendarID, uid string) error

	// ChangesSince returns the change rows recorded after the row that first
	// carried token, in id order. found is false when the token is unknown to
	// this calendar; the caller then falls back to a full initial sync.
	ChangesSince(ctx context.Context, calendarID, token string) (changes []SyncChange, found bool, err error)

	// Shares
	CreateShare(ctx context.Context, calendarID, userID, permission string) (*Share, error)
	DeleteShare(ctx context.Context, calendarID, userID string) error
	ListSharedCalendars(ctx context.Context, userID string) ([]SharedCalendar, error)
	// Permission resolves effective access: owners get read-write, shared
	// users get their share's permission, everyone else gets ErrNotFound.
	Permission(ctx context.Context, calendarID, userID string) (string, error)

	// MCP tokens
	CreateToken(ctx context.Context, userID, tokenHash, name string) (*Token, error)
	ListTokens(ctx context.Context, userID string) ([]*Token, error)
	ListActiveTokens(ctx context.Context) ([]*Token, error)
	DeleteToken(ctx context.Context, id string) error
}

// NewID returns a time-sortable UUID v7 for primary keys.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewSyncToken returns a fresh per-mutation sync token.
func NewSyncToken() string {
	return fmt.Sprintf("sync-%s", uuid.Must(uuid.NewV7()))
}

// NewETag returns a fresh object ETag with embedded quotes, so that header
// comparison and echoing need no re-quoting.
func NewETag() string {
	return fmt.Sprintf("%q", uuid.New().String())
}
