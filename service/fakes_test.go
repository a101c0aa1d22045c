package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/credano/bifrost/core"
	"github.com/credano/bifrost/ports"
)

// makeToken builds a gateway-style session token; the codec parses it
// unverified so any signing key works.
func makeToken(t *testing.T, userID, addr, alias string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"userId": userID,
		"exp":    exp.Unix(),
		"iat":    time.Now().Unix(),
	}
	if addr != "" {
		claims["cardanoBech32Addr"] = addr
	}
	if alias != "" {
		claims["accessTokenAlias"] = alias
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func identityAsset(alias string) core.Asset {
	return core.Asset{
		Unit:     "policyid." + alias,
		Name:     "222" + alias,
		Quantity: decimal.NewFromInt(1),
	}
}

type fakeWallet struct {
	mu sync.Mutex

	connected    bool
	connectedErr error

	canonical    string
	canonicalErr error

	assets    []core.Asset
	assetsErr error

	signature string
	signErr   error

	signCalls       int
	disconnectCalls int
}

func (w *fakeWallet) Connect(ctx context.Context) error { return nil }

func (w *fakeWallet) Disconnect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.disconnectCalls++
	w.connected = false
	return nil
}

func (w *fakeWallet) Connected(ctx context.Context) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected, w.connectedErr
}

func (w *fakeWallet) Address(ctx context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return "native:" + w.canonical, nil
}

func (w *fakeWallet) CanonicalAddress(ctx context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canonical, w.canonicalErr
}

func (w *fakeWallet) Assets(ctx context.Context) ([]core.Asset, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.assets, w.assetsErr
}

func (w *fakeWallet) SignPayload(ctx context.Context, payload []byte) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.signCalls++
	if w.signErr != nil {
		return "", w.signErr
	}
	return w.signature, nil
}

func (w *fakeWallet) setCanonical(addr string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.canonical = addr
}

func (w *fakeWallet) setSignErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.signErr = err
}

type statusReply struct {
	status *ports.TxStatus
	err    error
}

type fakeGateway struct {
	mu sync.Mutex

	nonce        string
	challengeErr error

	authResult  *ports.AuthResult
	exchangeErr error

	registerErr error
	syncErr     error

	// When set, SyncAlias closes syncStarted and parks until syncRelease
	// closes, to make reconciliation races deterministic in tests.
	syncStarted chan struct{}
	syncRelease chan struct{}

	// statusQueue replies are consumed in order; the last one is sticky.
	statusQueue []statusReply

	challengeCalls int
	exchangeCalls  int
	registerCalls  int
	statusCalls    int
	syncCalls      int
	syncedAliases  []string
}

func (g *fakeGateway) Challenge(ctx context.Context, address string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.challengeCalls++
	if g.challengeErr != nil {
		return "", g.challengeErr
	}
	if g.nonce == "" {
		return "nonce-1", nil
	}
	return g.nonce, nil
}

func (g *fakeGateway) Exchange(ctx context.Context, address, nonce, signature string) (*ports.AuthResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.exchangeCalls++
	if g.exchangeErr != nil {
		return nil, g.exchangeErr
	}
	return g.authResult, nil
}

func (g *fakeGateway) RegisterTransaction(ctx context.Context, txHash string, txType core.TxType, metadata map[string]string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.registerCalls++
	return g.registerErr
}

func (g *fakeGateway) TransactionStatus(ctx context.Context, txHash string) (*ports.TxStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	if len(g.statusQueue) == 0 {
		return nil, core.ErrTxNotFound
	}
	reply := g.statusQueue[0]
	if len(g.statusQueue) > 1 {
		g.statusQueue = g.statusQueue[1:]
	}
	return reply.status, reply.err
}

func (g *fakeGateway) SyncAlias(ctx context.Context, token, alias string) error {
	if g.syncStarted != nil {
		close(g.syncStarted)
		<-g.syncRelease
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.syncCalls++
	g.syncedAliases = append(g.syncedAliases, alias)
	return g.syncErr
}

func (g *fakeGateway) calls() (challenge, exchange, register, status, sync int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.challengeCalls, g.exchangeCalls, g.registerCalls, g.statusCalls, g.syncCalls
}

type fakePurger struct {
	mu    sync.Mutex
	calls int
}

func (p *fakePurger) Purge() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
}

func (p *fakePurger) purgeCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// blockingStore wraps a SessionStore and parks Load until released, to
// make restoration races deterministic in tests.
type blockingStore struct {
	ports.SessionStore
	started chan struct{}
	release chan struct{}
}

func (s *blockingStore) Load(ctx context.Context) (*core.Session, error) {
	close(s.started)
	<-s.release
	return s.SessionStore.Load(ctx)
}
