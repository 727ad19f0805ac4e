// Package identity resolves bearer tokens into users via the identity
// collaborator service, with a static-token mode for tests and single-box
// deployments.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"watchsource/internal/domain"
)

// User is the identity surface the source endpoints need: who the caller is
// and whether they hold the operator role.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (u User) IsOperator() bool {
	return u.Role == "operator" || u.Role == "admin"
}

// Verifier decodes a bearer token into a user.
type Verifier interface {
	Verify(ctx context.Context, token string) (User, error)
}

// Client calls the external identity service's introspection endpoint.
type Client struct {
	endpoint string
	http     *http.Client
}

type Config struct {
	Endpoint string
	Client   *http.Client
	Timeout  time.Duration
}

func NewClient(cfg Config) *Client {
	httpClient := cfg.Client
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		endpoint: strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"),
		http:     httpClient,
	}
}

func (c *Client) Verify(ctx context.Context, token string) (User, error) {
	if strings.TrimSpace(token) == "" {
		return User{}, domain.ErrUnauthorized
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/v1/introspect", nil)
	if err != nil {
		return User{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("%w: identity service: %s", domain.ErrUpstream, err.Error())
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return User{}, domain.ErrUnauthorized
	default:
		return User{}, fmt.Errorf("%w: identity HTTP %d", domain.ErrUpstream, resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return User{}, fmt.Errorf("%w: identity service: %s", domain.ErrUpstream, err.Error())
	}
	var user User
	if err := json.Unmarshal(payload, &user); err != nil {
		return User{}, fmt.Errorf("%w: malformed identity payload", domain.ErrUpstream)
	}
	if user.ID == "" {
		return User{}, domain.ErrUnauthorized
	}
	return user, nil
}

// StaticVerifier maps fixed tokens to users. Token values come from config;
// unknown tokens are unauthorized.
type StaticVerifier struct {
	tokens map[string]User
}

func NewStaticVerifier(tokens map[string]User) *StaticVerifier {
	copied := make(map[string]User, len(tokens))
	for token, user := range tokens {
		if strings.TrimSpace(token) == "" {
			continue
		}
		copied[token] = user
	}
	return &StaticVerifier{tokens: copied}
}

func (v *StaticVerifier) Verify(_ context.Context, token string) (User, error) {
	user, ok := v.tokens[token]
	if !ok {
		return User{}, domain.ErrUnauthorized
	}
	return user, nil
}
