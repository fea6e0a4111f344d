package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/axvier/blog/internal/models"
)

// BcryptCost is the hashing cost used for every stored password.
const BcryptCost = 10

type seedUser struct {
	email, username, password, avatar string
	role                              models.Role
}

var seedUsers = []seedUser{
	{"admin@admin.com", "admin", "admin123", "/uploads/avatars/admin.jpg", models.RoleAdmin},
	{"user@user.com", "user", "user123", "/uploads/avatars/user.png", models.RoleUser},
}

type seedPost struct {
	title, content string
	published      bool
	author         int // index into seedUsers
}

var seedPosts = []seedPost{
	{"First Post", "This is our first test post", true, 0},
	{"Second Post", "This is our second test post", true, 0},
	{"Draft Post", "This is a draft post", false, 1},
	{"Third Post", "This is our third test post", true, 1},
}

// Seed upserts the demo admin and user accounts and, when the posts table is
// empty, inserts a handful of sample posts.
func (s *PostgresStore) Seed(ctx context.Context) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		ids := make([]string, len(seedUsers))
		for i, su := range seedUsers {
			hash, err := bcrypt.GenerateFromPassword([]byte(su.password), BcryptCost)
			if err != nil {
				return fmt.Errorf("seed hash: %w", err)
			}
			err = tx.QueryRow(ctx,
				`INSERT INTO users (email, username, password, role, avatar)
				 VALUES ($1, $2, $3, $4, $5)
				 ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
				 RETURNING id`,
				su.email, su.username, string(hash), string(su.role), su.avatar,
			).Scan(&ids[i])
			if err != nil {
				return fmt.Errorf("seed user %s: %w", su.email, err)
			}
		}

		var n int64
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n); err != nil {
			return fmt.Errorf("seed count posts: %w", err)
		}
		if n > 0 {
			return nil
		}
		for _, sp := range seedPosts {
			if _, err := tx.Exec(ctx,
				`INSERT INTO posts (title, content, published, author_id) VALUES ($1, $2, $3, $4)`,
				sp.title, sp.content, sp.published, ids[sp.author],
			); err != nil {
				return fmt.Errorf("seed post %q: %w", sp.title, err)
			}
		}
		return nil
	})
}
