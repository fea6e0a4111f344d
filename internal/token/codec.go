// Package token encodes and decodes the opaque session token handed out at
// login.
//
// The Dummy codec produces "dummy-token-<userID>-<issuedAtMillis>". It carries
// no signature and no expiry: anyone who knows the format can mint a token for
// any user id. Decoding relies on the user id being a five-segment UUID and
// reads segments 3 through 7 by fixed offset. Callers only see the Codec
// interface so a signed format can replace it without touching them.
package token

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	// Prefix is the literal head of every dummy token.
	Prefix = "dummy-token"

	separator = "-"

	// minSegments is two literal segments plus five UUID segments.
	minSegments = 7
)

// ErrMalformed is returned when a token does not have enough segments to
// carry a user id.
var ErrMalformed = errors.New("malformed token")

// Codec turns a user id into an opaque token and back.
type Codec interface {
	Encode(userID string, issuedAt time.Time) string
	Decode(tok string) (string, error)
}

// Dummy is the unsigned "dummy-token" codec.
type Dummy struct{}

// Encode returns "dummy-token-<userID>-<issuedAt in unix millis>".
func (Dummy) Encode(userID string, issuedAt time.Time) string {
	return Prefix + separator + userID + separator + strconv.FormatInt(issuedAt.UnixMilli(), 10)
}

// Decode extracts the user id from segments 3..7 of tok. It never looks at
// the timestamp, so a token does not go stale.
func (Dummy) Decode(tok string) (string, error) {
	parts := strings.Split(tok, separator)
	if len(parts) < minSegments {
		return "", ErrMalformed
	}
	return strings.Join(parts[2:minSegments], separator), nil
}

var _ Codec = Dummy{}
