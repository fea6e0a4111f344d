// Package users implements administrative user management and media upload.
package users

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/axvier/blog/internal/models"
	"github.com/axvier/blog/internal/store"
)

// UploadsPrefix is the public URL prefix of every stored object.
const UploadsPrefix = "/uploads/"

const (
	MsgUserNotFound = "User not found"
	MsgTaken        = "Email atau username sudah digunakan"
	MsgBadImage     = "Only JPEG, PNG and WebP images are allowed"
	MsgNoFile       = "No file uploaded"
)

var (
	ErrNotFound = store.ErrNotFound

	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{3,50}$`)
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	avatarTypes = map[string]bool{
		"image/jpeg": true,
		"image/png":  true,
		"image/webp": true,
	}
)

// ValidationError carries a user-facing message for a rejected input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error { return &ValidationError{Message: msg} }

// UserStore defines the persistence the service needs.
type UserStore interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	UserTaken(ctx context.Context, email, username, excludeID string) (bool, error)
	UpdateUser(ctx context.Context, id, email, username string, role models.Role, passwordHash string) (*models.User, error)
	DeleteUser(ctx context.Context, id string) (*models.User, error)
	SetAvatar(ctx context.Context, id string, avatar *string) (*models.User, error)
}

// FileStore defines the object storage the service needs.
type FileStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, string, error)
	Remove(ctx context.Context, key string) error
}

// Upload is one file received from a multipart form.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Service holds the user management rules.
type Service struct {
	users UserStore
	files FileStore
	cost  int
	now   func() time.Time
	log   zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithClock overrides the clock used to name uploaded objects.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(users UserStore, files FileStore, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		users: users,
		files: files,
		cost:  store.BcryptCost,
		now:   time.Now,
		log:   log.With().Str("component", "users").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validate(username, email, password string, role models.Role, passwordRequired bool) error {
	if !usernameRe.MatchString(username) {
		return invalid("Username must be 3-50 characters of letters, digits or underscore")
	}
	if len(email) > 255 || !emailRe.MatchString(email) {
		return invalid("Invalid email address")
	}
	if password != "" || passwordRequired {
		if n := utf8.RuneCountInString(password); n < 6 || n > 32 {
			return invalid("Password must be between 6 and 32 characters")
		}
	}
	if !role.Valid() {
		return invalid("Role must be ADMIN or USER")
	}
	return nil
}

func (s *Service) List(ctx context.Context) ([]models.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.Public(), nil
}

// Create validates req, hashes the password and stores a new user. Email and
// username are stored lower-cased; an empty role means USER.
func (s *Service) Create(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if req.Role == "" {
		req.Role = models.RoleUser
	}
	if err := validate(username, email, req.Password, req.Role, true); err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, email, username, ""); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.users.CreateUser(ctx, &models.User{
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		Role:         req.Role,
	})
	if errors.Is(err, store.ErrConflict) {
		return nil, invalid(MsgTaken)
	}
	if err != nil {
		return nil, err
	}
	return u.Public(), nil
}

// Update overwrites username, email and role of user id. An empty password
// keeps the current one.
func (s *Service) Update(ctx context.Context, id string, req models.UpdateUserRequest) (*models.User, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate(username, email, req.Password, req.Role, false); err != nil {
		return nil, err
	}
	if _, err := s.users.GetUserByID(ctx, id); err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, email, username, id); err != nil {
		return nil, err
	}

	var hash string
	if req.Password != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		hash = string(b)
	}
	u, err := s.users.UpdateUser(ctx, id, email, username, req.Role, hash)
	if errors.Is(err, store.ErrConflict) {
		return nil, invalid(MsgTaken)
	}
	if err != nil {
		return nil, err
	}
	return u.Public(), nil
}

func (s *Service) ensureFree(ctx context.Context, email, username, excludeID string) error {
	taken, err := s.users.UserTaken(ctx, email, username, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return invalid(MsgTaken)
	}
	return nil
}

// Delete removes the user together with their posts. The stored avatar is
// removed best-effort.
func (s *Service) Delete(ctx context.Context, id string) (*models.User, error) {
	u, err := s.users.DeleteUser(ctx, id)
	if err != nil {
		return nil, err
	}
	s.removeObject(ctx, u.Avatar)
	return u.Public(), nil
}

// Avatar returns the avatar path of a user, nil when unset.
func (s *Service) Avatar(ctx context.Context, userID string) (*string, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.Avatar, nil
}

// SetAvatar stores an image as the user's avatar, replacing any previous one.
func (s *Service) SetAvatar(ctx context.Context, userID string, up Upload) (*models.User, error) {
	if !avatarTypes[up.ContentType] {
		return nil, invalid(MsgBadImage)
	}
	prev, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("avatars/%d-%s", s.now().UnixMilli(), cleanName(up.Filename))
	if err := s.files.Upload(ctx, key, up.Data, up.ContentType); err != nil {
		return nil, err
	}
	p := UploadsPrefix + key
	u, err := s.users.SetAvatar(ctx, userID, &p)
	if err != nil {
		s.removeObject(ctx, &p)
		return nil, err
	}
	s.removeObject(ctx, prev.Avatar)
	return u.Public(), nil
}

// RemoveAvatar deletes the stored image and clears the avatar column.
func (s *Service) RemoveAvatar(ctx context.Context, userID string) error {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := s.users.SetAvatar(ctx, userID, nil); err != nil {
		return err
	}
	s.removeObject(ctx, u.Avatar)
	return nil
}

// StoreFiles stores arbitrary uploads under the uploads prefix.
func (s *Service) StoreFiles(ctx context.Context, ups []Upload) ([]models.UploadedFile, error) {
	if len(ups) == 0 {
		return nil, invalid(MsgNoFile)
	}
	out := make([]models.UploadedFile, 0, len(ups))
	for _, up := range ups {
		name := fmt.Sprintf("%d-%s-%s", s.now().UnixMilli(), uuid.NewString()[:8], cleanName(up.Filename))
		if err := s.files.Upload(ctx, name, up.Data, up.ContentType); err != nil {
			return nil, err
		}
		out = append(out, models.UploadedFile{
			Filename: name,
			Path:     UploadsPrefix + name,
			MimeType: up.ContentType,
			Size:     int64(len(up.Data)),
		})
	}
	return out, nil
}

// Open returns the bytes and content type of a stored object by its key
// relative to the uploads prefix.
func (s *Service) Open(ctx context.Context, key string) ([]byte, string, error) {
	key = strings.TrimPrefix(path.Clean("/"+key), "/")
	if key == "" {
		return nil, "", ErrNotFound
	}
	return s.files.Download(ctx, key)
}

func (s *Service) removeObject(ctx context.Context, p *string) {
	if p == nil || !strings.HasPrefix(*p, UploadsPrefix) {
		return
	}
	key := strings.TrimPrefix(*p, UploadsPrefix)
	if err := s.files.Remove(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("remove object failed")
	}
}

// cleanName keeps the base name of an uploaded file with spaces replaced.
func cleanName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	return strings.ReplaceAll(name, " ", "-")
}
