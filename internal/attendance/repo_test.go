package attendance

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	opErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"privilege", &pgconn.PgError{Code: "42501", Message: "permission denied for table"}, ErrPermissionDenied},
		{"missing member", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"}), ErrNotFound},
		{"bad text", &pgconn.PgError{Code: "22P02"}, ErrInvalid},
		{"check", &pgconn.PgError{Code: "23514"}, ErrInvalid},
		{"dial", opErr, ErrNetwork},
		{"bad conn", driver.ErrBadConn, ErrNetwork},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			assert.ErrorIs(t, got, tc.want)
			assert.ErrorIs(t, got, tc.err, "cause is kept")
		})
	}

	other := &pgconn.PgError{Code: "40001"}
	assert.Same(t, other, Classify(other))
	assert.NoError(t, Classify(nil))
	assert.ErrorIs(t, Classify(context.Canceled), context.Canceled)
}

func TestUniqueViolationIsDetected(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("ensure: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
}
