package processor

import (
	"context"

	"catalogmirror/pkg/core"
)

// Cache remembers the last entity snapshot mirrored per entity reference.
// Implementations must be safe for concurrent use and must not retain or
// hand out values shared with the caller.
type Cache interface {
	Get(ctx context.Context, key string) (*core.Entity, bool, error)
	Set(ctx context.Context, key string, entity *core.Entity) error
}
