package users

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/axvier/blog/internal/httpx"
	"github.com/axvier/blog/internal/models"
)

// MaxUploadBytes bounds a multipart request body.
const MaxUploadBytes = 10 << 20

// Handler holds user management and media HTTP handlers.
type Handler struct {
	svc *Service
	log zerolog.Logger
}

func NewHandler(svc *Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log.With().Str("component", "users_handler").Logger()}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		httpx.Error(w, http.StatusBadRequest, ve.Message)
	case errors.Is(err, ErrNotFound):
		httpx.Error(w, http.StatusNotFound, MsgUserNotFound)
	default:
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("user request failed")
		httpx.Error(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, u)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateUserRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "User deleted successfully", "user": u})
}

// UploadFiles stores every file of a multipart form.
func (h *Handler) UploadFiles(w http.ResponseWriter, r *http.Request) {
	ups, err := readUploads(w, r, false)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	files, err := h.svc.StoreFiles(r.Context(), ups)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "files": files})
}

// SetAvatar stores the first file of a multipart form as the user's avatar.
func (h *Handler) SetAvatar(w http.ResponseWriter, r *http.Request) {
	ups, err := readUploads(w, r, true)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(ups) == 0 {
		httpx.Error(w, http.StatusBadRequest, MsgNoFile)
		return
	}
	u, err := h.svc.SetAvatar(r.Context(), chi.URLParam(r, "userId"), ups[0])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "user": u})
}

func (h *Handler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	avatar, err := h.svc.Avatar(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, avatar)
}

func (h *Handler) DeleteAvatar(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveAvatar(r.Context(), chi.URLParam(r, "userId")); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ServeUpload streams a stored object. It is mounted under /uploads/*.
func (h *Handler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := h.svc.Open(r.Context(), chi.URLParam(r, "*"))
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("serve upload failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(data)
}

var errBadForm = errors.New("invalid multipart form")

// readUploads reads the file parts of a multipart body in the order they
// were sent. With firstOnly it returns the first part named "avatar", or
// the first file of any name when there is none.
func readUploads(w http.ResponseWriter, r *http.Request, firstOnly bool) ([]Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, errBadForm
	}

	var ups []Upload
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errBadForm
		}
		if part.FileName() == "" {
			part.Close()
			continue
		}
		up, err := readPart(part)
		if err != nil {
			return nil, err
		}
		if firstOnly && part.FormName() == "avatar" {
			return []Upload{up}, nil
		}
		ups = append(ups, up)
	}

	if firstOnly && len(ups) > 1 {
		ups = ups[:1]
	}
	return ups, nil
}

func readPart(part *multipart.Part) (Upload, error) {
	defer part.Close()
	data, err := io.ReadAll(part)
	if err != nil {
		return Upload{}, errBadForm
	}
	return Upload{
		Filename:    part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
