package core

import "context"

type testAdapter struct {
	id string
}

func (a testAdapter) ID() string { return a.id }

func (testAdapter) Authorize(context.Context, AuthorizeRequest) (AuthorizeResponse, error) {
	return AuthorizeResponse{}, nil
}

func (testAdapter) Callback(context.Context, map[string]string) (string, error) {
	return "", nil
}

func (testAdapter) Credentials(context.Context, string) (Credential, error) {
	return Credential{}, nil
}

func (testAdapter) List(context.Context, Credential) (ListResult, error) {
	return ListResult{}, nil
}
