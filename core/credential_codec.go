package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// JSONCredentialCodec is the storage format for ephemeral credentials. The
// payload only ever lives in the key-value store under a short TTL.
type JSONCredentialCodec struct{}

type jsonCredentialPayload struct {
	Provider      string     `json:"provider,omitempty"`
	TokenType     string     `json:"token_type,omitempty"`
	AccessToken   string     `json:"access_token,omitempty"`
	RefreshToken  string     `json:"refresh_token,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	GrantedScopes []string   `json:"granted_scopes,omitempty"`
}

func (JSONCredentialCodec) Encode(credential Credential) ([]byte, error) {
	if strings.TrimSpace(credential.AccessToken) == "" {
		return nil, fmt.Errorf("core: credential payload requires an access token")
	}
	payload := jsonCredentialPayload{
		Provider:      strings.TrimSpace(credential.Provider),
		TokenType:     strings.TrimSpace(credential.TokenType),
		AccessToken:   strings.TrimSpace(credential.AccessToken),
		RefreshToken:  strings.TrimSpace(credential.RefreshToken),
		ExpiresAt:     cloneTimePointer(credential.ExpiresAt),
		GrantedScopes: append([]string(nil), credential.GrantedScopes...),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("core: encode credential payload: %w", err)
	}
	return encoded, nil
}

func (JSONCredentialCodec) Decode(payload []byte) (Credential, error) {
	if len(payload) == 0 {
		return Credential{}, fmt.Errorf("core: credential payload is empty")
	}
	decoded := jsonCredentialPayload{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Credential{}, fmt.Errorf("core: decode credential payload: %w", err)
	}
	return Credential{
		Provider:      strings.TrimSpace(decoded.Provider),
		TokenType:     strings.TrimSpace(decoded.TokenType),
		AccessToken:   strings.TrimSpace(decoded.AccessToken),
		RefreshToken:  strings.TrimSpace(decoded.RefreshToken),
		ExpiresAt:     cloneTimePointer(decoded.ExpiresAt),
		GrantedScopes: append([]string(nil), decoded.GrantedScopes...),
	}, nil
}

func cloneTimePointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := value.UTC()
	return &clone
}

var _ CredentialCodec = JSONCredentialCodec{}
