package ports

import (
	"context"

	"github.com/credano/bifrost/core"
)

// Wallet is the surface of the external wallet provider consumed by the
// bridge. Signing and address encoding live entirely behind this port;
// the bridge performs no wallet cryptography of its own.
//
// SignPayload may block indefinitely while the user decides, and returns
// core.ErrPopupBlocked or core.ErrSigningDeclined for the two interaction
// failures the state machine distinguishes.
type Wallet interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Connected(ctx context.Context) (bool, error)

	// Address returns the wallet's current address in its native format.
	Address(ctx context.Context) (string, error)

	// CanonicalAddress returns the current address converted to the
	// canonical comparable form. The conversion itself is delegated to
	// the provider; callers still pass the result through
	// core.NormalizeAddress.
	CanonicalAddress(ctx context.Context) (string, error)

	// Assets lists the tokens held by the wallet. Used to detect the
	// identity token carrying the user's access alias.
	Assets(ctx context.Context) ([]core.Asset, error)

	// SignPayload asks the wallet to sign an arbitrary payload.
	SignPayload(ctx context.Context, payload []byte) (string, error)
}
