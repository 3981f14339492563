package oauth

import (
	"context"
	"net/url"
	"strings"

	"github.com/goliatone/go-integrations/core"
)

const KindAuthorizationCode = "oauth2_auth_code"

// StandardStrategy implements the plain authorization-code flow: the client
// secret authenticates the token exchange and no verifier is involved.
type StandardStrategy struct {
	cfg Config
}

func NewStandard(cfg Config) (*StandardStrategy, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &StandardStrategy{cfg: cfg}, nil
}

func (*StandardStrategy) Kind() string {
	return KindAuthorizationCode
}

func (s *StandardStrategy) BuildAuthorizeURL(ctx context.Context, req core.AuthorizeRequest) (core.AuthorizeResponse, error) {
	if s == nil {
		return core.AuthorizeResponse{}, core.NewBadInputError("oauth strategy is nil")
	}

	state, err := GenerateStateToken()
	if err != nil {
		return core.AuthorizeResponse{}, err
	}

	record := core.OAuthStateRecord{
		State:     state,
		Provider:  s.cfg.Provider,
		CreatedAt: s.cfg.Now().UTC(),
	}
	if err := saveStateRecord(ctx, s.cfg, record); err != nil {
		return core.AuthorizeResponse{}, err
	}

	return core.AuthorizeResponse{
		URL:   buildAuthorizeURL(s.cfg, req, state, nil),
		State: state,
	}, nil
}

func (s *StandardStrategy) HandleCallback(ctx context.Context, params map[string]string) (core.Credential, error) {
	if s == nil {
		return core.Credential{}, core.NewBadInputError("oauth strategy is nil")
	}
	code := strings.TrimSpace(params["code"])
	if code == "" {
		return core.Credential{}, core.NewBadInputError("oauth callback code parameter is required")
	}

	if _, err := consumeStateRecord(ctx, s.cfg, params["state"]); err != nil {
		return core.Credential{}, err
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", s.cfg.RedirectURI)

	token, err := exchangeToken(ctx, s.cfg, form)
	if err != nil {
		return core.Credential{}, core.NewTokenExchangeError("oauth token exchange was rejected", err)
	}
	return credentialFromToken(s.cfg, token), nil
}

var _ core.AuthStrategy = (*StandardStrategy)(nil)
