// Package gateway implements the ports.Gateway interface against the
// platform's REST gateway.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/credano/bifrost/core"
	"github.com/credano/bifrost/ports"
)

const defaultRequestTimeout = 30 * time.Second

// HTTPGateway talks to the remote gateway over HTTP.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGateway creates a gateway client. Pass nil to use a default
// http.Client with a request timeout.
func NewHTTPGateway(baseURL string, client *http.Client) *HTTPGateway {
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &HTTPGateway{baseURL: baseURL, client: client}
}

type challengeRequest struct {
	Address string `json:"address"`
}

type challengeResponse struct {
	Nonce string `json:"nonce"`
}

type exchangeRequest struct {
	Address   string `json:"address"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

type exchangeResponse struct {
	Token string `json:"token"`
	User  struct {
		ID               string `json:"id"`
		AccessTokenAlias string `json:"access_token_alias"`
	} `json:"user"`
}

type registerRequest struct {
	TxHash   string            `json:"tx_hash"`
	TxType   string            `json:"tx_type"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type statusResponse struct {
	State       string `json:"state"`
	RetryCount  int    `json:"retry_count"`
	LastError   string `json:"last_error"`
	ConfirmedAt *int64 `json:"confirmed_at"` // unix seconds, null until confirmed
}

type syncAliasRequest struct {
	Alias string `json:"alias"`
}

// Challenge issues a server-generated nonce for the address to sign.
func (g *HTTPGateway) Challenge(ctx context.Context, address string) (string, error) {
	var resp challengeResponse
	err := g.post(ctx, "/auth/challenge", "", challengeRequest{Address: address}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Nonce == "" {
		return "", errors.New("gateway returned an empty nonce")
	}
	return resp.Nonce, nil
}

// Exchange trades a signed nonce for a session token and user record.
func (g *HTTPGateway) Exchange(ctx context.Context, address, nonce, signature string) (*ports.AuthResult, error) {
	var resp exchangeResponse
	err := g.post(ctx, "/auth/verify", "", exchangeRequest{
		Address:   address,
		Nonce:     nonce,
		Signature: signature,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, errors.New("gateway returned an empty session token")
	}
	return &ports.AuthResult{
		Token:            resp.Token,
		UserID:           resp.User.ID,
		AccessTokenAlias: resp.User.AccessTokenAlias,
	}, nil
}

// RegisterTransaction registers a transaction for server-side tracking.
func (g *HTTPGateway) RegisterTransaction(ctx context.Context, txHash string, txType core.TxType, metadata map[string]string) error {
	return g.post(ctx, "/transactions", "", registerRequest{
		TxHash:   txHash,
		TxType:   string(txType),
		Metadata: metadata,
	}, nil)
}

// TransactionStatus queries a transaction's confirmation state. A 404
// maps to core.ErrTxNotFound: the gateway simply hasn't ingested the
// transaction yet.
func (g *HTTPGateway) TransactionStatus(ctx context.Context, txHash string) (*ports.TxStatus, error) {
	endpoint := fmt.Sprintf("/transactions/%s/status", url.PathEscape(txHash))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build status request")
	}

	httpResp, err := g.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "status request failed")
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusNotFound {
		return nil, core.ErrTxNotFound
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("gateway returned status %d", httpResp.StatusCode)
	}

	var resp statusResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, errors.Wrap(err, "failed to decode status response")
	}

	status := &ports.TxStatus{
		State:      core.TxState(resp.State),
		RetryCount: resp.RetryCount,
		LastError:  resp.LastError,
	}
	if resp.ConfirmedAt != nil {
		status.ConfirmedAt = time.Unix(*resp.ConfirmedAt, 0)
	}
	return status, nil
}

// SyncAlias reconciles a wallet-held alias into the user record via the
// legacy sync endpoint. A 404 maps to core.ErrAliasSyncGone so callers
// can fall back to a local-only update.
func (g *HTTPGateway) SyncAlias(ctx context.Context, token, alias string) error {
	err := g.post(ctx, "/users/access-token/sync", token, syncAliasRequest{Alias: alias}, nil)
	if errors.Is(err, errNotFound) {
		return core.ErrAliasSyncGone
	}
	return err
}

var errNotFound = errors.New("not found")

// post sends a JSON request and decodes a JSON response when out is
// non-nil. A bearer token is attached when provided.
func (g *HTTPGateway) post(ctx context.Context, endpoint, token string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := g.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "request to %s failed", endpoint)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusNotFound {
		return errors.Wrapf(errNotFound, "request to %s", endpoint)
	}
	if httpResp.StatusCode < http.StatusOK || httpResp.StatusCode >= http.StatusMultipleChoices {
		return errors.Errorf("gateway returned status %d for %s", httpResp.StatusCode, endpoint)
	}

	if out != nil {
		if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
			return errors.Wrapf(err, "failed to decode response from %s", endpoint)
		}
	}
	return nil
}
