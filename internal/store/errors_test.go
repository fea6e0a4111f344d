package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	other := errors.New("connection reset")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), ErrNotFound},
		{"unique", &pgconn.PgError{Code: "23505"}, ErrConflict},
		{"foreign key", &pgconn.PgError{Code: "23503"}, ErrInvalidReference},
		{"bad uuid", &pgconn.PgError{Code: "22P02"}, ErrNotFound},
		{"other pg error", &pgconn.PgError{Code: "40001"}, nil},
		{"other", other, other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.in)
			switch {
			case tt.in == nil:
				require.NoError(t, got)
			case tt.want == nil:
				require.Same(t, tt.in, got)
			default:
				require.ErrorIs(t, got, tt.want)
			}
		})
	}
}

func TestEscapeLike(t *testing.T) {
	require.Equal(t, `100\% \_done\\`, escapeLike(`100% _done\`))
	require.Equal(t, "plain", escapeLike("plain"))
}
