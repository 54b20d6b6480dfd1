package upm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/rubiojr/plup/internal/remote"
)

// TokenState is the lifecycle state of a managed edition access token.
type TokenState string

const (
	TokenNone                        TokenState = "NONE"
	TokenActiveTrial                 TokenState = "ACTIVE_TRIAL"
	TokenInactiveTrial               TokenState = "INACTIVE_TRIAL"
	TokenActiveSubscription          TokenState = "ACTIVE_SUBSCRIPTION"
	TokenActiveSubscriptionCancelled TokenState = "ACTIVE_SUBSCRIPTION_CANCELLED"
	TokenInactiveSubscription        TokenState = "INACTIVE_SUBSCRIPTION"
)

var tokenStates = []TokenState{
	TokenNone,
	TokenActiveTrial,
	TokenInactiveTrial,
	TokenActiveSubscription,
	TokenActiveSubscriptionCancelled,
	TokenInactiveSubscription,
}

// TokenStates lists every known access token state.
func TokenStates() []TokenState {
	return slices.Clone(tokenStates)
}

// ParseTokenState accepts a state name in any case, with dashes or
// underscores.
func ParseTokenState(s string) (TokenState, error) {
	state := TokenState(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if !slices.Contains(tokenStates, state) {
		return "", fmt.Errorf("unknown token state %q", s)
	}
	return state, nil
}

// AccessToken grants a managed edition instance access to a paid plugin.
type AccessToken struct {
	PluginKey string     `json:"pluginKey"`
	Token     string     `json:"token"`
	State     TokenState `json:"state"`
	Valid     bool       `json:"valid"`
}

const accessTokensPath = remote.PluginRegistryPath + "license-tokens"

var accessTokenRequired = []string{"pluginKey", "state", "valid"}

func DecodeAccessToken(raw []byte) (*AccessToken, error) {
	return decode[AccessToken]("access token", raw, accessTokenRequired)
}

func accessTokenPath(key string) string {
	return accessTokensPath + "/" + key
}

// AccessTokens lists the access tokens of the instance.
func (c *Client) AccessTokens(ctx context.Context) ([]AccessToken, error) {
	resp, err := c.send(ctx, http.MethodGet, accessTokensPath, nil, "", nil)
	if err != nil {
		return nil, err
	}
	if err := expect(resp, http.MethodGet, accessTokensPath, "access tokens"); err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if err := json.Unmarshal(resp.Body, &items); err != nil {
		return nil, &remote.MalformedResponseError{Kind: "access token list", Raw: resp.Body, Err: err}
	}
	tokens := make([]AccessToken, 0, len(items))
	for _, raw := range items {
		t, err := DecodeAccessToken(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode access token list: %w", err)
		}
		tokens = append(tokens, *t)
	}
	return tokens, nil
}

func (c *Client) AccessToken(ctx context.Context, key string) (*AccessToken, error) {
	path := accessTokenPath(key)
	resp, err := c.send(ctx, http.MethodGet, path, nil, "", nil)
	if err != nil {
		return nil, err
	}
	if err := expect(resp, http.MethodGet, path, "access token of "+key); err != nil {
		return nil, err
	}
	return DecodeAccessToken(resp.Body)
}

// UpdateAccessToken sets token and state for the plugin. An empty token
// clears the grant while keeping the resource.
func (c *Client) UpdateAccessToken(ctx context.Context, key, token string, state TokenState) (*AccessToken, error) {
	path := accessTokenPath(key)
	body := AccessToken{PluginKey: key, Token: token, State: state}
	resp, err := c.send(ctx, http.MethodPut, path, nil, LicenseContentType, body)
	if err != nil {
		return nil, err
	}
	if err := expect(resp, http.MethodPut, path, "access token of "+key); err != nil {
		return nil, err
	}
	return DecodeAccessToken(resp.Body)
}

// ClearAccessToken removes the grant by submitting an empty token.
func (c *Client) ClearAccessToken(ctx context.Context, key string) (*AccessToken, error) {
	return c.UpdateAccessToken(ctx, key, "", TokenNone)
}

// DeleteAccessToken removes the access token resource of the plugin.
func (c *Client) DeleteAccessToken(ctx context.Context, key string) error {
	path := accessTokenPath(key)
	resp, err := c.send(ctx, http.MethodDelete, path, nil, "", nil)
	if err != nil {
		return err
	}
	return expect(resp, http.MethodDelete, path, "access token of "+key)
}
