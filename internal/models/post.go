package models

import "time"

// Author is the subset of a user embedded in post responses.
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Post is a single blog post stored in PostgreSQL.
type Post struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   *string   `json:"content"`
	Published bool      `json:"published"`
	AuthorID  string    `json:"authorId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Author    Author    `json:"author"`
}

// CreatePostRequest is the JSON body for POST /api/posts.
// Published is a pointer so a missing field can be told apart from false.
type CreatePostRequest struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Published *bool  `json:"published"`
	AuthorID  string `json:"authorId"`
}

// UpdatePostRequest is the JSON body for PUT /api/posts/{id}.
// Nil fields are left unchanged.
type UpdatePostRequest struct {
	Title     *string `json:"title"`
	Content   *string `json:"content"`
	Published *bool   `json:"published"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

// PostPage is a paginated post listing.
type PostPage struct {
	Posts      []Post     `json:"posts"`
	Pagination Pagination `json:"pagination"`
}

// SearchResult is returned by GET /api/posts/search.
type SearchResult struct {
	Query string `json:"query"`
	Total int    `json:"total"`
	Posts []Post `json:"posts"`
}
