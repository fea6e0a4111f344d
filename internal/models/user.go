package models

import "time"

// Role gates access to administrative operations.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User represents a row in the PostgreSQL users table.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // never serialize
	Role         Role      `json:"role"`
	Avatar       *string   `json:"avatar"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the user carries the ADMIN role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Public returns a copy of u with the password hash stripped.
func (u *User) Public() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.PasswordHash = ""
	return &c
}

// LoginRequest is the JSON body for POST /api/auth/login.
// Email is the legacy field name; it may hold an email or a username.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email,omitempty"`
	Password   string `json:"password"`
}

// LoginIdentifier returns Identifier, falling back to the legacy Email field.
func (r LoginRequest) LoginIdentifier() string {
	if r.Identifier != "" {
		return r.Identifier
	}
	return r.Email
}

// AuthResponse is returned by a successful login.
type AuthResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// MeResponse is returned by GET /api/auth/me.
type MeResponse struct {
	User *User `json:"user"`
}

// CreateUserRequest is the JSON body for POST /api/users.
type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// UpdateUserRequest is the JSON body for PUT /api/users/{id}.
// An empty Password leaves the stored hash untouched.
type UpdateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	Role     Role   `json:"role"`
}

// UploadedFile describes one stored media object.
type UploadedFile struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	MimeType string `json:"mimetype"`
	Size     int64  `json:"size"`
}

// AuthEvent is one entry of the authentication audit trail stored in MongoDB.
type AuthEvent struct {
	Kind       string    `json:"kind"        bson:"kind"`
	UserID     string    `json:"userId"      bson:"user_id,omitempty"`
	Identifier string    `json:"identifier"  bson:"identifier,omitempty"`
	RemoteAddr string    `json:"remoteAddr"  bson:"remote_addr,omitempty"`
	At         time.Time `json:"at"          bson:"at"`
}

const (
	EventLogin       = "login"
	EventLoginFailed = "login_failed"
	EventLogout      = "logout"
)
