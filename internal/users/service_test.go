package users

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/axvier/blog/internal/models"
	"github.com/axvier/blog/internal/store"
)

type mockUserStore struct {
	mock.Mock
}

func (m *mockUserStore) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *mockUserStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *mockUserStore) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	args := m.Called(ctx, u)
	out, _ := args.Get(0).(*models.User)
	return out, args.Error(1)
}

func (m *mockUserStore) UserTaken(ctx context.Context, email, username, excludeID string) (bool, error) {
	args := m.Called(ctx, email, username, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserStore) UpdateUser(ctx context.Context, id, email, username string, role models.Role, passwordHash string) (*models.User, error) {
	args := m.Called(ctx, id, email, username, role, passwordHash)
	out, _ := args.Get(0).(*models.User)
	return out, args.Error(1)
}

func (m *mockUserStore) DeleteUser(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	out, _ := args.Get(0).(*models.User)
	return out, args.Error(1)
}

func (m *mockUserStore) SetAvatar(ctx context.Context, id string, avatar *string) (*models.User, error) {
	args := m.Called(ctx, id, avatar)
	out, _ := args.Get(0).(*models.User)
	return out, args.Error(1)
}

type memFiles struct {
	objects map[string][]byte
	types   map[string]string
	removed []string
}

func newMemFiles() *memFiles {
	return &memFiles{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *memFiles) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	f.objects[key] = data
	f.types[key] = contentType
	return nil
}

func (f *memFiles) Download(ctx context.Context, key string) ([]byte, string, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, "", store.ErrNotFound
	}
	return data, f.types[key], nil
}

func (f *memFiles) Remove(ctx context.Context, key string) error {
	f.removed = append(f.removed, key)
	delete(f.objects, key)
	return nil
}

var fixedNow = time.UnixMilli(1700000000123)

func newTestService(users UserStore, files FileStore) *Service {
	return NewService(users, files, zerolog.Nop(),
		WithBcryptCost(bcrypt.MinCost),
		WithClock(func() time.Time { return fixedNow }))
}

func TestCreate_Validation(t *testing.T) {
	valid := models.CreateUserRequest{Username: "writer", Email: "w@blog.dev", Password: "secret1", Role: models.RoleUser}

	tests := []struct {
		name   string
		modify func(*models.CreateUserRequest)
		want   string
	}{
		{"short username", func(r *models.CreateUserRequest) { r.Username = "ab" }, "Username must be 3-50 characters of letters, digits or underscore"},
		{"bad username chars", func(r *models.CreateUserRequest) { r.Username = "bad name" }, "Username must be 3-50 characters of letters, digits or underscore"},
		{"bad email", func(r *models.CreateUserRequest) { r.Email = "nope" }, "Invalid email address"},
		{"long email", func(r *models.CreateUserRequest) { r.Email = strings.Repeat("a", 250) + "@b.com" }, "Invalid email address"},
		{"short password", func(r *models.CreateUserRequest) { r.Password = "12345" }, "Password must be between 6 and 32 characters"},
		{"long password", func(r *models.CreateUserRequest) { r.Password = strings.Repeat("p", 33) }, "Password must be between 6 and 32 characters"},
		{"missing password", func(r *models.CreateUserRequest) { r.Password = "" }, "Password must be between 6 and 32 characters"},
		{"bad role", func(r *models.CreateUserRequest) { r.Role = "ROOT" }, "Role must be ADMIN or USER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.modify(&req)
			_, err := newTestService(new(mockUserStore), newMemFiles()).Create(context.Background(), req)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			require.Equal(t, tt.want, ve.Message)
		})
	}
}

func TestCreate(t *testing.T) {
	users := new(mockUserStore)
	users.On("UserTaken", mock.Anything, "w@blog.dev", "writer", "").Return(false, nil)
	users.On("CreateUser", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
		return u.Email == "w@blog.dev" && u.Username == "writer" && u.Role == models.RoleUser &&
			bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret1")) == nil
	})).Return(&models.User{ID: "u1", Username: "writer", PasswordHash: "hash"}, nil)

	u, err := newTestService(users, newMemFiles()).Create(context.Background(), models.CreateUserRequest{
		Username: "Writer", Email: " W@Blog.dev ", Password: "secret1",
	})
	require.NoError(t, err)
	require.Equal(t, "u1", u.ID)
	require.Empty(t, u.PasswordHash)
	users.AssertExpectations(t)
}

func TestCreate_Taken(t *testing.T) {
	users := new(mockUserStore)
	users.On("UserTaken", mock.Anything, "admin@admin.com", "admin", "").Return(true, nil)

	_, err := newTestService(users, newMemFiles()).Create(context.Background(), models.CreateUserRequest{
		Username: "admin", Email: "admin@admin.com", Password: "admin123", Role: models.RoleAdmin,
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, MsgTaken, ve.Message)
	users.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

func TestUpdate_KeepsPasswordWhenEmpty(t *testing.T) {
	users := new(mockUserStore)
	users.On("GetUserByID", mock.Anything, "u1").Return(&models.User{ID: "u1"}, nil)
	users.On("UserTaken", mock.Anything, "new@blog.dev", "renamed", "u1").Return(false, nil)
	users.On("UpdateUser", mock.Anything, "u1", "new@blog.dev", "renamed", models.RoleAdmin, "").
		Return(&models.User{ID: "u1", Username: "renamed"}, nil)

	u, err := newTestService(users, newMemFiles()).Update(context.Background(), "u1", models.UpdateUserRequest{
		Username: "renamed", Email: "new@blog.dev", Role: models.RoleAdmin,
	})
	require.NoError(t, err)
	require.Equal(t, "renamed", u.Username)
	users.AssertExpectations(t)
}

func TestUpdate_Missing(t *testing.T) {
	users := new(mockUserStore)
	users.On("GetUserByID", mock.Anything, "gone").Return(nil, store.ErrNotFound)

	_, err := newTestService(users, newMemFiles()).Update(context.Background(), "gone", models.UpdateUserRequest{
		Username: "someone", Email: "s@blog.dev", Role: models.RoleUser,
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_RemovesAvatar(t *testing.T) {
	avatar := "/uploads/avatars/1-me.png"
	users := new(mockUserStore)
	users.On("DeleteUser", mock.Anything, "u1").Return(&models.User{ID: "u1", Avatar: &avatar}, nil)
	files := newMemFiles()

	_, err := newTestService(users, files).Delete(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"avatars/1-me.png"}, files.removed)
}

func TestSetAvatar(t *testing.T) {
	old := "/uploads/avatars/1-old.png"
	want := "/uploads/avatars/1700000000123-my-face.png"
	users := new(mockUserStore)
	users.On("GetUserByID", mock.Anything, "u1").Return(&models.User{ID: "u1", Avatar: &old}, nil)
	users.On("SetAvatar", mock.Anything, "u1", mock.MatchedBy(func(p *string) bool {
		return p != nil && *p == want
	})).Return(&models.User{ID: "u1", Avatar: &want}, nil)
	files := newMemFiles()
	svc := newTestService(users, files)

	_, err := svc.SetAvatar(context.Background(), "u1", Upload{Filename: "doc.pdf", ContentType: "application/pdf"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, MsgBadImage, ve.Message)

	u, err := svc.SetAvatar(context.Background(), "u1", Upload{
		Filename: "my face.png", ContentType: "image/png", Data: []byte("png"),
	})
	require.NoError(t, err)
	require.Equal(t, want, *u.Avatar)
	require.Contains(t, files.objects, "avatars/1700000000123-my-face.png")
	require.Equal(t, []string{"avatars/1-old.png"}, files.removed)
}

func TestStoreFilesAndOpen(t *testing.T) {
	files := newMemFiles()
	svc := newTestService(new(mockUserStore), files)

	_, err := svc.StoreFiles(context.Background(), nil)
	require.Error(t, err)

	out, err := svc.StoreFiles(context.Background(), []Upload{
		{Filename: "a.txt", ContentType: "text/plain", Data: []byte("hello")},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.True(t, strings.HasPrefix(out[0].Path, UploadsPrefix+"1700000000123-"))
	require.True(t, strings.HasSuffix(out[0].Path, "-a.txt"))
	require.Equal(t, int64(5), out[0].Size)

	data, ct, err := svc.Open(context.Background(), strings.TrimPrefix(out[0].Path, UploadsPrefix))
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
	require.Equal(t, "text/plain", ct)

	_, _, err = svc.Open(context.Background(), "../../etc/passwd")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestHandler_SetAvatar(t *testing.T) {
	want := "/uploads/avatars/1700000000123-me.jpg"
	users := new(mockUserStore)
	users.On("GetUserByID", mock.Anything, "u1").Return(&models.User{ID: "u1"}, nil)
	users.On("SetAvatar", mock.Anything, "u1", mock.Anything).Return(&models.User{ID: "u1", Avatar: &want}, nil)
	h := NewHandler(newTestService(users, newMemFiles()), zerolog.Nop())

	r := chi.NewRouter()
	r.Post("/api/users/avatar/{userId}", h.SetAvatar)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="avatar"; filename="me.jpg"`)
	hdr.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	part.Write([]byte("jpeg"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/users/avatar/u1", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"success":true`)
	require.Contains(t, rec.Body.String(), want)
}

func writeFiles(t *testing.T, files ...[2]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("note", "ignored"))
	for _, f := range files {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="`+f[0]+`"; filename="`+f[1]+`"`)
		hdr.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		part.Write([]byte(f[1]))
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestHandler_SetAvatarTakesFirstFileInOrder(t *testing.T) {
	for i := 0; i < 20; i++ {
		users := new(mockUserStore)
		users.On("GetUserByID", mock.Anything, "u1").Return(&models.User{ID: "u1"}, nil)
		users.On("SetAvatar", mock.Anything, "u1", mock.MatchedBy(func(p *string) bool {
			return p != nil && strings.HasSuffix(*p, "-a.png")
		})).Return(&models.User{ID: "u1"}, nil)
		h := NewHandler(newTestService(users, newMemFiles()), zerolog.Nop())

		body, ct := writeFiles(t, [2]string{"f1", "a.png"}, [2]string{"f2", "b.png"},
			[2]string{"f3", "c.png"}, [2]string{"f4", "d.png"})
		r := chi.NewRouter()
		r.Post("/api/users/avatar/{userId}", h.SetAvatar)
		req := httptest.NewRequest(http.MethodPost, "/api/users/avatar/u1", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		users.AssertExpectations(t)
	}
}

func TestHandler_SetAvatarPrefersAvatarField(t *testing.T) {
	users := new(mockUserStore)
	users.On("GetUserByID", mock.Anything, "u1").Return(&models.User{ID: "u1"}, nil)
	users.On("SetAvatar", mock.Anything, "u1", mock.MatchedBy(func(p *string) bool {
		return p != nil && strings.HasSuffix(*p, "-c.png")
	})).Return(&models.User{ID: "u1"}, nil)
	h := NewHandler(newTestService(users, newMemFiles()), zerolog.Nop())

	r := chi.NewRouter()
	r.Post("/api/users/avatar/{userId}", h.SetAvatar)
	body, ct := writeFiles(t, [2]string{"f1", "a.png"}, [2]string{"avatar", "c.png"})
	req := httptest.NewRequest(http.MethodPost, "/api/users/avatar/u1", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	users.AssertExpectations(t)
}

func TestHandler_UploadFilesKeepsOrder(t *testing.T) {
	h := NewHandler(newTestService(new(mockUserStore), newMemFiles()), zerolog.Nop())

	body, ct := writeFiles(t, [2]string{"x", "a.png"}, [2]string{"y", "b.png"},
		[2]string{"z", "c.png"}, [2]string{"w", "d.png"})
	req := httptest.NewRequest(http.MethodPost, "/api/users/avatar", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.UploadFiles(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Files []models.UploadedFile `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Files, 4)
	for i, name := range []string{"a.png", "b.png", "c.png", "d.png"} {
		require.True(t, strings.HasSuffix(resp.Files[i].Path, "-"+name), resp.Files[i].Path)
	}
}

func TestHandler_GetMissingUser(t *testing.T) {
	users := new(mockUserStore)
	users.On("GetUserByID", mock.Anything, "gone").Return(nil, store.ErrNotFound)
	h := NewHandler(newTestService(users, newMemFiles()), zerolog.Nop())

	r := chi.NewRouter()
	r.Get("/api/users/{id}", h.Get)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/gone", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"message":"User not found"}`, rec.Body.String())
}
