package ports

import (
	"context"

	"github.com/credano/bifrost/core"
)

// SessionStore persists the session across process restarts so a page
// load can restore identity without re-handshaking.
type SessionStore interface {
	Save(ctx context.Context, session *core.Session) error

	// Load returns the persisted session or core.ErrNoSession.
	Load(ctx context.Context) (*core.Session, error)

	Clear(ctx context.Context) error
}
