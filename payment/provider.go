package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/blomoto/garage_backend/config"
	"github.com/blomoto/garage_backend/utils"
)

// Provider is the uniform surface over the payment processors. Every
// integration supports exactly two operations: start a transaction and
// authoritatively re-read one.
type Provider interface {
	Name() string
	CreateTransaction(ctx context.Context, req *CreateRequest) (*CreateResult, error)
	RetrieveTransaction(ctx context.Context, externalId string) (*Transaction, error)
}

const (
	ProviderPaygate = "paygate"
	ProviderKkiapay = "kkiapay"
	ProviderFedapay = "fedapay"
)

// httpDoer lets tests substitute the transport.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Registry holds the configured adapters. Adapters for providers with
// missing credentials are still registered; they fail every call with
// ProviderUnavailableError so misconfiguration is a typed error at the call
// site instead of a missing route.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(cfg config.PaymentProviderConfig) *Registry {
	client := &http.Client{Timeout: cfg.HTTPTimeout}
	return &Registry{
		providers: map[string]Provider{
			ProviderPaygate: &paygateProvider{cfg: cfg.Paygate, client: client},
			ProviderKkiapay: &kkiapayProvider{cfg: cfg.Kkiapay, client: client},
			ProviderFedapay: &fedapayProvider{cfg: cfg.Fedapay, client: client},
		},
	}
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(name)]
	if !ok {
		return nil, utils.NewNotFoundError("unknown payment provider %s", name)
	}
	return p, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// doJSON issues a request and decodes the JSON response, returning the raw
// body alongside so callers can keep it for audit. Non-2xx responses and
// transport failures come back as ProviderUnavailableError.
func doJSON(ctx context.Context, client httpDoer, provider, method, url string, headers map[string]string, body io.Reader, out interface{}) (string, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return "", utils.NewProviderUnavailableError(provider, "building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", utils.NewProviderUnavailableError(provider, "request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", utils.NewProviderUnavailableError(provider, "reading response: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return string(raw), utils.NewProviderUnavailableError(provider, "%s %s returned %d: %s", method, url, resp.StatusCode, truncate(string(raw), 500))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return string(raw), utils.NewProviderUnavailableError(provider, "decoding response: %v", err)
		}
	}
	return string(raw), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// NormalizeMetadata converts a decoded JSON metadata object, whose values
// may be numbers or strings depending on the provider, into
// map[string]string for correlation-key parsing.
func NormalizeMetadata(in map[string]interface{}) map[string]string {
	return stringMetadata(in)
}

func stringMetadata(in map[string]interface{}) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = fmt.Sprintf("%.0f", val)
		default:
			out[k] = fmt.Sprintf("%v", val)
		}
	}
	return out
}
