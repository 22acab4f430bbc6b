package model

import "time"

// UserGroup is the authorization tier of a user account.
type UserGroup string

const (
	GroupAdmin  UserGroup = "Admin"
	GroupUser   UserGroup = "User"
	GroupBanned UserGroup = "Banned"
	GroupGuest  UserGroup = "Guest"
)

// User is a registered player or administrator. Usernames and emails are
// compared case-insensitively; soft-deleted users are tombstoned rather
// than removed so the identifiers can never be recycled.
type User struct {
	ID             int64
	Username       string
	DisplayName    string
	Email          string
	Group          UserGroup
	HashedPassword string
	DeletedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsDeleted reports whether the user has been tombstoned.
func (u User) IsDeleted() bool {
	return u.DeletedAt != nil
}
