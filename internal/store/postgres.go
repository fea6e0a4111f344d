package store

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/axvier/blog/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresStore handles user and post CRUD against PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies the embedded goose migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// ── Users ────────────────────────────────────────────────────

const userColumns = `id, email, username, password, role, avatar, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &role, &u.Avatar, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, translate(err)
	}
	u.Role = models.Role(role)
	return &u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	created, err := scanUser(s.pool.QueryRow(ctx,
		`INSERT INTO users (email, username, password, role, avatar)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		u.Email, u.Username, u.PasswordHash, string(u.Role), u.Avatar,
	))
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByLogin finds the user whose email or username equals identifier
// exactly.
func (s *PostgresStore) GetUserByLogin(ctx context.Context, identifier string) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 OR username = $1 LIMIT 1`, identifier,
	))
	if err != nil {
		return nil, fmt.Errorf("get user by login: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UserTaken reports whether another user (not excludeID) already holds email
// or username. Pass an empty excludeID to check against every user.
func (s *PostgresStore) UserTaken(ctx context.Context, email, username, excludeID string) (bool, error) {
	var taken bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM users
			WHERE (email = $1 OR username = $2)
			  AND ($3 = '' OR id::text <> $3)
		)`, email, username, excludeID,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check user conflict: %w", err)
	}
	return taken, nil
}

// UpdateUser overwrites email, username and role. passwordHash is only
// written when non-empty.
func (s *PostgresStore) UpdateUser(ctx context.Context, id, email, username string, role models.Role, passwordHash string) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`UPDATE users
		 SET email = $2, username = $3, role = $4,
		     password = COALESCE(NULLIF($5, ''), password),
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, email, username, string(role), passwordHash,
	))
	if err != nil {
		return nil, fmt.Errorf("update user %s: %w", id, err)
	}
	return u, nil
}

// DeleteUser removes the user's posts and then the user in one transaction.
func (s *PostgresStore) DeleteUser(ctx context.Context, id string) (*models.User, error) {
	var deleted *models.User
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM posts WHERE author_id = $1`, id); err != nil {
			return translate(err)
		}
		u, err := scanUser(tx.QueryRow(ctx, `DELETE FROM users WHERE id = $1 RETURNING `+userColumns, id))
		if err != nil {
			return err
		}
		deleted = u
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete user %s: %w", id, err)
	}
	return deleted, nil
}

// SetAvatar stores or clears (nil) the avatar path of a user.
func (s *PostgresStore) SetAvatar(ctx context.Context, id string, avatar *string) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`UPDATE users SET avatar = $2, updated_at = NOW() WHERE id = $1 RETURNING `+userColumns,
		id, avatar,
	))
	if err != nil {
		return nil, fmt.Errorf("set avatar %s: %w", id, err)
	}
	return u, nil
}

// ── Posts ────────────────────────────────────────────────────

const postSelect = `
	SELECT p.id, p.title, p.content, p.published, p.author_id, p.created_at, p.updated_at,
	       u.id, u.username, u.email
	FROM posts p
	JOIN users u ON u.id = p.author_id`

func scanPost(row pgx.Row) (*models.Post, error) {
	var p models.Post
	if err := row.Scan(
		&p.ID, &p.Title, &p.Content, &p.Published, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt,
		&p.Author.ID, &p.Author.Username, &p.Author.Email,
	); err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func collectPosts(rows pgx.Rows) ([]models.Post, error) {
	defer rows.Close()
	var posts []models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

// PostQuery selects a window of posts, newest first. Limit 0 means no limit.
type PostQuery struct {
	PublishedOnly bool
	Offset        int
	Limit         int
}

func (s *PostgresStore) ListPosts(ctx context.Context, q PostQuery) ([]models.Post, error) {
	sql := postSelect
	if q.PublishedOnly {
		sql += ` WHERE p.published`
	}
	sql += ` ORDER BY p.created_at DESC, p.id DESC`
	args := []any{}
	if q.Limit > 0 {
		sql += ` LIMIT $1 OFFSET $2`
		args = append(args, q.Limit, q.Offset)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	posts, err := collectPosts(rows)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

func (s *PostgresStore) CountPosts(ctx context.Context, publishedOnly bool) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM posts WHERE NOT $1 OR published`, publishedOnly,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	p, err := scanPost(s.pool.QueryRow(ctx, postSelect+` WHERE p.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}
	return p, nil
}

// CreatePost inserts a post and returns it with its author.
func (s *PostgresStore) CreatePost(ctx context.Context, p *models.Post) (*models.Post, error) {
	var created *models.Post
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var id int64
		if err := tx.QueryRow(ctx,
			`INSERT INTO posts (title, content, published, author_id)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			p.Title, p.Content, p.Published, p.AuthorID,
		).Scan(&id); err != nil {
			return translate(err)
		}
		c, err := scanPost(tx.QueryRow(ctx, postSelect+` WHERE p.id = $1`, id))
		if err != nil {
			return err
		}
		created = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return created, nil
}

// UpdatePost applies the non-nil fields of req.
func (s *PostgresStore) UpdatePost(ctx context.Context, id int64, req models.UpdatePostRequest) (*models.Post, error) {
	var updated *models.Post
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE posts
			 SET title     = COALESCE($2, title),
			     content   = COALESCE($3, content),
			     published = COALESCE($4, published),
			     updated_at = NOW()
			 WHERE id = $1`,
			id, req.Title, req.Content, req.Published,
		)
		if err != nil {
			return translate(err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		p, err := scanPost(tx.QueryRow(ctx, postSelect+` WHERE p.id = $1`, id))
		if err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update post %d: %w", id, err)
	}
	return updated, nil
}

func (s *PostgresStore) DeletePost(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post %d: %w", id, translate(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete post %d: %w", id, ErrNotFound)
	}
	return nil
}

// SearchPosts returns up to limit published posts whose title or content
// contains q, ignoring case.
func (s *PostgresStore) SearchPosts(ctx context.Context, q string, limit int) ([]models.Post, error) {
	pattern := "%" + escapeLike(q) + "%"
	rows, err := s.pool.Query(ctx,
		postSelect+`
		WHERE p.published AND (p.title ILIKE $1 OR p.content ILIKE $1)
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $2`,
		pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	posts, err := collectPosts(rows)
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	return posts, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
