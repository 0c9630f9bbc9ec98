// Package client talks to the schedule API on behalf of a signed-in user.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// ErrSignedOut is returned by token lookups while no user is signed in.
var ErrSignedOut = errors.New("not signed in")

// SessionConfig points a Session at the identity provider.
type SessionConfig struct {
	ClientID     string
	ClientSecret string
	// TokenURL is the OAuth2 token endpoint used for the password grant.
	TokenURL string
	// SignUpURL accepts {"email","password"} and creates the account.
	SignUpURL string
	Scopes    []string
	// HTTPClient is used for sign-up and token requests. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client
}

// AuthState is what subscribers are told after every sign-in or sign-out.
type AuthState struct {
	SignedIn bool
	Email    string
	Expiry   time.Time
}

// Session holds the signed-in user's token. It is safe for concurrent use.
type Session struct {
	oauth      oauth2.Config
	signUpURL  string
	httpClient *http.Client

	mu          sync.Mutex
	token       *oauth2.Token
	email       string
	subscribers map[int]func(AuthState)
	nextID      int
}

func NewSession(cfg SessionConfig) *Session {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Session{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		signUpURL:   cfg.SignUpURL,
		httpClient:  httpClient,
		subscribers: make(map[int]func(AuthState)),
	}
}

func (s *Session) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// SignIn exchanges email and password for a token.
func (s *Session) SignIn(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return errors.New("email and password are required")
	}
	tok, err := s.oauth.PasswordCredentialsToken(s.oauthContext(ctx), email, password)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}

	s.mu.Lock()
	s.token = tok
	s.email = email
	state := s.stateLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, state)
	return nil
}

// SignUp registers the account and signs it in.
func (s *Session) SignUp(ctx context.Context, email, password string) error {
	if s.signUpURL == "" {
		return errors.New("sign up: no sign-up endpoint configured")
	}
	body, err := json.Marshal(map[string]string{"email": strings.TrimSpace(email), "password": password})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.signUpURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sign up: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sign up: %w", decodeAPIError(resp))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return s.SignIn(ctx, email, password)
}

// SignOut forgets the token and tells every subscriber.
func (s *Session) SignOut() {
	s.mu.Lock()
	wasSignedIn := s.token != nil
	s.token = nil
	s.email = ""
	subs := s.subscribersLocked()
	s.mu.Unlock()

	if wasSignedIn {
		notify(subs, AuthState{})
	}
}

// State reports the current authentication state.
func (s *Session) State() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Subscribe calls fn with the current state and again after every change
// until the returned function is called.
func (s *Session) Subscribe(fn func(AuthState)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	state := s.stateLocked()
	s.mu.Unlock()

	fn(state)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
}

// Token implements oauth2.TokenSource. Expired tokens are refreshed with
// their refresh token when the provider issued one.
func (s *Session) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	tok := s.token
	s.mu.Unlock()

	if tok == nil {
		return nil, ErrSignedOut
	}
	if tok.Valid() {
		return tok, nil
	}
	if tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: token expired", ErrSignedOut)
	}

	refreshed, err := s.oauth.TokenSource(s.oauthContext(context.Background()), tok).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	s.mu.Lock()
	// A concurrent sign-out wins over the refresh.
	if s.token == nil {
		s.mu.Unlock()
		return nil, ErrSignedOut
	}
	s.token = refreshed
	s.mu.Unlock()
	return refreshed, nil
}

// HTTPClient returns a client that authenticates every request with the
// session token. The token is looked up per request, so signing out takes
// effect immediately.
func (s *Session) HTTPClient() *http.Client {
	return &http.Client{Transport: &oauth2.Transport{Source: s, Base: s.httpClient.Transport}}
}

func (s *Session) stateLocked() AuthState {
	if s.token == nil {
		return AuthState{}
	}
	return AuthState{SignedIn: true, Email: s.email, Expiry: s.token.Expiry}
}

func (s *Session) subscribersLocked() []func(AuthState) {
	out := make([]func(AuthState), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		out = append(out, fn)
	}
	return out
}

func notify(subs []func(AuthState), state AuthState) {
	for _, fn := range subs {
		fn(state)
	}
}
