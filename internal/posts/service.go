// Package posts implements blog post listing, search and CRUD.
package posts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/axvier/blog/internal/models"
	"github.com/axvier/blog/internal/store"
)

const (
	DefaultPage  = 1
	DefaultLimit = 8
	MaxLimit     = 100
	SearchLimit  = 5
)

var (
	// ErrNotFound is returned when the post does not exist.
	ErrNotFound = store.ErrNotFound

	// ErrAuthorNotFound is returned when a new post names a missing author.
	ErrAuthorNotFound = errors.New("Author not found")
)

// ValidationError carries a user-facing message for a rejected input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error { return &ValidationError{Message: msg} }

// PostStore defines the persistence the service needs.
type PostStore interface {
	ListPosts(ctx context.Context, q store.PostQuery) ([]models.Post, error)
	CountPosts(ctx context.Context, publishedOnly bool) (int64, error)
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	CreatePost(ctx context.Context, p *models.Post) (*models.Post, error)
	UpdatePost(ctx context.Context, id int64, req models.UpdatePostRequest) (*models.Post, error)
	DeletePost(ctx context.Context, id int64) error
	SearchPosts(ctx context.Context, q string, limit int) ([]models.Post, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// SearchCache caches search results; a miss is reported as store.ErrNotFound.
type SearchCache interface {
	Get(ctx context.Context, q string) (*models.SearchResult, error)
	Set(ctx context.Context, q string, res *models.SearchResult) error
	Invalidate(ctx context.Context) error
}

// Service holds the post business rules.
type Service struct {
	store PostStore
	cache SearchCache
	log   zerolog.Logger
}

// NewService builds a Service. cache may be nil.
func NewService(s PostStore, cache SearchCache, log zerolog.Logger) *Service {
	return &Service{store: s, cache: cache, log: log.With().Str("component", "posts").Logger()}
}

// ParsePage reads page and limit query values, falling back to the defaults
// on anything that is not a positive integer.
func ParsePage(pageStr, limitStr string) (page, limit int) {
	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		page = DefaultPage
	}
	limit, err = strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return clampPage(page, limit), limit
}

// clampPage keeps (page-1)*limit within a 32-bit offset.
func clampPage(page, limit int) int {
	if limit < 1 {
		return page
	}
	if maxPage := math.MaxInt32/limit + 1; page > maxPage {
		return maxPage
	}
	return page
}

// TotalPages is ceil(total / limit).
func TotalPages(total int64, limit int) int64 {
	if limit <= 0 {
		return 0
	}
	l := int64(limit)
	return (total + l - 1) / l
}

// All returns every post, newest first.
func (s *Service) All(ctx context.Context) ([]models.Post, error) {
	posts, err := s.store.ListPosts(ctx, store.PostQuery{})
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts, nil
}

// Page returns one page of posts, optionally published only.
func (s *Service) Page(ctx context.Context, publishedOnly bool, page, limit int) (*models.PostPage, error) {
	page = clampPage(page, limit)
	total, err := s.store.CountPosts(ctx, publishedOnly)
	if err != nil {
		return nil, err
	}
	posts, err := s.store.ListPosts(ctx, store.PostQuery{
		PublishedOnly: publishedOnly,
		Offset:        (page - 1) * limit,
		Limit:         limit,
	})
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return &models.PostPage{
		Posts: posts,
		Pagination: models.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: TotalPages(total, limit),
		},
	}, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Post, error) {
	return s.store.GetPost(ctx, id)
}

// Search returns up to SearchLimit published posts matching q. A blank query
// returns an empty result without touching the store.
func (s *Service) Search(ctx context.Context, q string) (*models.SearchResult, error) {
	if strings.TrimSpace(q) == "" {
		return &models.SearchResult{Query: q, Total: 0, Posts: []models.Post{}}, nil
	}

	if s.cache != nil {
		res, err := s.cache.Get(ctx, q)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Warn().Err(err).Msg("search cache read failed")
		}
	}

	posts, err := s.store.SearchPosts(ctx, q, SearchLimit)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		posts[i].Author.Email = ""
	}
	if posts == nil {
		posts = []models.Post{}
	}
	res := &models.SearchResult{Query: q, Total: len(posts), Posts: posts}

	if s.cache != nil {
		if err := s.cache.Set(ctx, q, res); err != nil {
			s.log.Warn().Err(err).Msg("search cache write failed")
		}
	}
	return res, nil
}

func validateTitle(title string) error {
	n := utf8.RuneCountInString(title)
	if strings.TrimSpace(title) == "" || n < 3 || n > 255 {
		return invalid("Title must be between 3 and 255 characters")
	}
	return nil
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" || utf8.RuneCountInString(content) < 10 {
		return invalid("Content must be at least 10 characters")
	}
	return nil
}

// Create validates req and stores a new post.
func (s *Service) Create(ctx context.Context, req models.CreatePostRequest) (*models.Post, error) {
	if err := validateTitle(req.Title); err != nil {
		return nil, err
	}
	if err := validateContent(req.Content); err != nil {
		return nil, err
	}
	if req.Published == nil {
		return nil, invalid("Published must be a boolean")
	}
	if req.AuthorID == "" {
		return nil, invalid("Author ID is required")
	}

	if _, err := s.store.GetUserByID(ctx, req.AuthorID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAuthorNotFound
		}
		return nil, err
	}

	content := strings.TrimSpace(req.Content)
	post, err := s.store.CreatePost(ctx, &models.Post{
		Title:     strings.TrimSpace(req.Title),
		Content:   &content,
		Published: *req.Published,
		AuthorID:  req.AuthorID,
	})
	if err != nil {
		if errors.Is(err, store.ErrInvalidReference) {
			return nil, ErrAuthorNotFound
		}
		return nil, err
	}
	s.invalidate(ctx)
	return post, nil
}

// Update applies the provided fields of req to post id.
func (s *Service) Update(ctx context.Context, id int64, req models.UpdatePostRequest) (*models.Post, error) {
	if req.Title != nil {
		if err := validateTitle(*req.Title); err != nil {
			return nil, err
		}
		t := strings.TrimSpace(*req.Title)
		req.Title = &t
	}
	if req.Content != nil {
		if err := validateContent(*req.Content); err != nil {
			return nil, err
		}
		c := strings.TrimSpace(*req.Content)
		req.Content = &c
	}

	post, err := s.store.UpdatePost(ctx, id, req)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return post, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeletePost(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("search cache invalidation failed")
	}
}

// ParseID parses a post id path segment.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid post id %q", raw)
	}
	return id, nil
}
