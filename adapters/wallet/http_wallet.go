// Package wallet implements the ports.Wallet interface against the
// dashboard's wallet-connector RPC. All wallet cryptography, including
// signing and native-to-canonical address conversion, happens on the
// provider's side of this adapter.
package wallet

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/credano/bifrost/core"
)

const defaultRequestTimeout = 5 * time.Minute // signing waits on the user

// HTTPWallet proxies the external wallet provider over HTTP.
type HTTPWallet struct {
	baseURL string
	client  *http.Client
}

// NewHTTPWallet creates a wallet-connector client. Pass nil for a default
// http.Client; the timeout is generous because a sign request blocks on
// user interaction.
func NewHTTPWallet(baseURL string, client *http.Client) *HTTPWallet {
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &HTTPWallet{baseURL: baseURL, client: client}
}

type statusResponse struct {
	Connected bool `json:"connected"`
}

type addressResponse struct {
	Address string `json:"address"`
}

type assetEntry struct {
	Unit     string `json:"unit"`
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
}

type signRequest struct {
	Payload string `json:"payload"` // base64
}

type signResponse struct {
	Signature string `json:"signature"`
	Error     string `json:"error"`
}

func (w *HTTPWallet) Connect(ctx context.Context) error {
	return w.post(ctx, "/wallet/connect", nil, nil)
}

func (w *HTTPWallet) Disconnect(ctx context.Context) error {
	return w.post(ctx, "/wallet/disconnect", nil, nil)
}

func (w *HTTPWallet) Connected(ctx context.Context) (bool, error) {
	var resp statusResponse
	if err := w.get(ctx, "/wallet/status", &resp); err != nil {
		return false, err
	}
	return resp.Connected, nil
}

// Address returns the wallet's current address in its native format.
func (w *HTTPWallet) Address(ctx context.Context) (string, error) {
	var resp addressResponse
	if err := w.get(ctx, "/wallet/address", &resp); err != nil {
		return "", err
	}
	return resp.Address, nil
}

// CanonicalAddress asks the provider for the bech32 form of the current
// address; the conversion itself runs on the provider.
func (w *HTTPWallet) CanonicalAddress(ctx context.Context) (string, error) {
	var resp addressResponse
	if err := w.get(ctx, "/wallet/address?format=canonical", &resp); err != nil {
		return "", err
	}
	return resp.Address, nil
}

// Assets lists the tokens held by the wallet.
func (w *HTTPWallet) Assets(ctx context.Context) ([]core.Asset, error) {
	var entries []assetEntry
	if err := w.get(ctx, "/wallet/assets", &entries); err != nil {
		return nil, err
	}

	assets := make([]core.Asset, 0, len(entries))
	for _, e := range entries {
		quantity, err := decimal.NewFromString(e.Quantity)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid quantity for asset %s", e.Unit)
		}
		assets = append(assets, core.Asset{Unit: e.Unit, Name: e.Name, Quantity: quantity})
	}
	return assets, nil
}

// SignPayload asks the wallet to sign an arbitrary payload. The two
// interaction failures the state machine distinguishes come back as
// core.ErrPopupBlocked and core.ErrSigningDeclined.
func (w *HTTPWallet) SignPayload(ctx context.Context, payload []byte) (string, error) {
	var resp signResponse
	err := w.post(ctx, "/wallet/sign", signRequest{
		Payload: base64.StdEncoding.EncodeToString(payload),
	}, &resp)
	if err != nil {
		return "", err
	}
	switch resp.Error {
	case "":
	case "popup_blocked":
		return "", core.ErrPopupBlocked
	case "user_declined":
		return "", core.ErrSigningDeclined
	default:
		return "", errors.Errorf("wallet provider error: %s", resp.Error)
	}
	if resp.Signature == "" {
		return "", errors.New("wallet provider returned an empty signature")
	}
	return resp.Signature, nil
}

func (w *HTTPWallet) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	return w.do(req, endpoint, out)
}

func (w *HTTPWallet) post(ctx context.Context, endpoint string, in, out any) error {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+endpoint, &body)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	return w.do(req, endpoint, out)
}

func (w *HTTPWallet) do(req *http.Request, endpoint string, out any) error {
	resp, err := w.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "request to %s failed", endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return errors.Errorf("wallet connector returned status %d for %s", resp.StatusCode, endpoint)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrapf(err, "failed to decode response from %s", endpoint)
		}
	}
	return nil
}
