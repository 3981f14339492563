package oauth

import (
	"context"
	"net/url"
	"strings"

	"github.com/goliatone/go-integrations/core"
)

const KindPKCE = "oauth2_pkce"

// PKCEStrategy implements the authorization-code flow with RFC 7636 proof
// keys. A fresh verifier is minted per authorization and travels only
// through the state record; the authorize URL carries its S256 challenge.
type PKCEStrategy struct {
	cfg Config
}

func NewPKCE(cfg Config) (*PKCEStrategy, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &PKCEStrategy{cfg: cfg}, nil
}

func (*PKCEStrategy) Kind() string {
	return KindPKCE
}

func (s *PKCEStrategy) BuildAuthorizeURL(ctx context.Context, req core.AuthorizeRequest) (core.AuthorizeResponse, error) {
	if s == nil {
		return core.AuthorizeResponse{}, core.NewBadInputError("oauth strategy is nil")
	}

	state, err := GenerateStateToken()
	if err != nil {
		return core.AuthorizeResponse{}, err
	}
	verifier, err := GenerateCodeVerifier()
	if err != nil {
		return core.AuthorizeResponse{}, err
	}

	record := core.OAuthStateRecord{
		State:        state,
		Provider:     s.cfg.Provider,
		CodeVerifier: verifier,
		CreatedAt:    s.cfg.Now().UTC(),
	}
	if err := saveStateRecord(ctx, s.cfg, record); err != nil {
		return core.AuthorizeResponse{}, err
	}

	extra := url.Values{}
	extra.Set("code_challenge", CodeChallengeS256(verifier))
	extra.Set("code_challenge_method", "S256")

	return core.AuthorizeResponse{
		URL:   buildAuthorizeURL(s.cfg, req, state, extra),
		State: state,
	}, nil
}

func (s *PKCEStrategy) HandleCallback(ctx context.Context, params map[string]string) (core.Credential, error) {
	if s == nil {
		return core.Credential{}, core.NewBadInputError("oauth strategy is nil")
	}
	code := strings.TrimSpace(params["code"])
	if code == "" {
		return core.Credential{}, core.NewBadInputError("oauth callback code parameter is required")
	}

	record, err := consumeStateRecord(ctx, s.cfg, params["state"])
	if err != nil {
		return core.Credential{}, err
	}
	if strings.TrimSpace(record.CodeVerifier) == "" {
		return core.Credential{}, core.NewInvalidStateError("oauth state record is missing its code verifier")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", s.cfg.RedirectURI)
	form.Set("code_verifier", record.CodeVerifier)

	token, err := exchangeToken(ctx, s.cfg, form)
	if err != nil {
		return core.Credential{}, core.NewTokenExchangeError("oauth token exchange was rejected", err)
	}
	return credentialFromToken(s.cfg, token), nil
}

var _ core.AuthStrategy = (*PKCEStrategy)(nil)
