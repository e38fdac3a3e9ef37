// Package metadata stores small key/value settings of the CLI, such as the
// session token and the current conversation, in the local SQLite file.
package metadata

import "context"

type Repository interface {
	// Get reports ok=false when key is not set.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
