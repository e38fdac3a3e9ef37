package lease

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	_ Locker = Nop{}
	_ Locker = (*Local)(nil)
	_ Locker = (*Redis)(nil)
)

func TestLockers_ReleaseAllowsReacquire(t *testing.T) {
	tests := []struct {
		name      string
		locker    Locker
		exclusive bool
	}{
		{"nop", Nop{}, false},
		{"local", NewLocal(), true},
		{"redis", newTestRedis(newFakeRedis()), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			release, err := tt.locker.Acquire(context.Background(), "c-1")
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
			defer cancel()
			other, err := tt.locker.Acquire(ctx, "c-1")
			if tt.exclusive {
				require.ErrorIs(t, err, ErrBusy)
			} else {
				require.NoError(t, err)
				other()
			}

			release()
			release()

			again, err := tt.locker.Acquire(context.Background(), "c-1")
			require.NoError(t, err)
			again()
		})
	}
}
