package resilience

import (
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit transient", NewTransientError(eris.New("anything")), true},
		{"wrapped transient", eris.Wrap(NewTransientError(eris.New("x")), "outer"), true},
		{"sqlite busy", eris.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"sqlite table lock", eris.New("database table is locked"), true},
		{"pgx conn closed", eris.New("conn closed"), true},
		{"pool exhausted", eris.New("too many clients already"), true},
		{"connection reset string", eris.New("read: connection reset by peer"), true},
		{"econnrefused", syscall.ECONNREFUSED, true},
		{"econnreset", syscall.ECONNRESET, true},
		{"constraint violation", eris.New("UNIQUE constraint failed"), false},
		{"plain error", eris.New("something else"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
