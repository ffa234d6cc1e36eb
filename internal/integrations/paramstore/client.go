package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the minimal AWS SSM interface required by Secrets.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// tokenPayload is the expected JSON shape stored in SSM for the workspace
// token.
type tokenPayload struct {
	Token string `json:"token"`
}

// Secrets resolves the workspace credentials stored in SSM under a prefix:
// <prefix>/slack-token holds a JSON {"token":"..."} payload and
// <prefix>/webhook-url holds the webhook URL as a plain string.
type Secrets struct {
	api    ssmAPI
	prefix string
}

// New creates a Secrets resolver with the given SSM API implementation.
func New(api ssmAPI, prefix string) (*Secrets, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return nil, errors.New("paramstore: parameter prefix must not be empty")
	}
	return &Secrets{api: api, prefix: prefix}, nil
}

// SlackToken fetches and unwraps the workspace API token.
func (s *Secrets) SlackToken(ctx context.Context) (string, error) {
	raw, err := s.getParameter(ctx, s.prefix+"/slack-token")
	if err != nil {
		return "", err
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("paramstore: unmarshal slack token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", errors.New("paramstore: slack token is empty")
	}
	return tp.Token, nil
}

// WebhookURL fetches the announcement webhook URL.
func (s *Secrets) WebhookURL(ctx context.Context) (string, error) {
	raw, err := s.getParameter(ctx, s.prefix+"/webhook-url")
	if err != nil {
		return "", err
	}
	url := strings.TrimSpace(raw)
	if url == "" {
		return "", errors.New("paramstore: webhook URL is empty")
	}
	return url, nil
}

func (s *Secrets) getParameter(ctx context.Context, name string) (string, error) {
	if s.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}

	withDecryption := true
	out, err := s.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("paramstore: parameter missing value")
	}
	return *out.Parameter.Value, nil
}
