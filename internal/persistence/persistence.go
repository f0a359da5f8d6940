// Package persistence defines the durable-store contract behind the
// in-memory engine: a Recorder for write-behind persistence of settled
// state plus a Load that rebuilds the engine snapshot at startup.
package persistence

import (
	"context"

	"github.com/sawpanic/rankforum/internal/forum"
)

// Store persists engine state and reloads it.
type Store interface {
	forum.Recorder

	// Load reads the full persisted state. Called once, before serving.
	Load(ctx context.Context) (forum.Snapshot, error)
}
