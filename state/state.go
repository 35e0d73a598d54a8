// Package state encodes and decodes the CSRF-protection token round-tripped
// through GitHub's installation and authorization redirects.
package state

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// nonceBytes is the size of the random nonce carried in every token. The
// nonce is what makes two tokens for identical inputs distinct.
const nonceBytes = 16

// ErrInvalidToken is returned by Decode for input that is not a token this
// package produced.
var ErrInvalidToken = errors.New("invalid state token")

// Payload is the content of a state token. RepositoryURL is optional and
// omitted from the wire form when empty.
type Payload struct {
	WorkspaceSlug string `json:"workspaceSlug"`
	RepositoryURL string `json:"repositoryUrl,omitempty"`
	RandomState   string `json:"randomState"`
	Timestamp     int64  `json:"timestamp"`
}

// Encode builds a token for the given workspace and optional repository URL.
// Every call mints a fresh nonce and timestamp, so two calls with identical
// inputs produce different tokens.
func Encode(workspaceSlug, repositoryURL string) (string, error) {
	if workspaceSlug == "" {
		return "", errors.New("workspace slug is required")
	}

	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}

	payload := Payload{
		WorkspaceSlug: workspaceSlug,
		RepositoryURL: repositoryURL,
		RandomState:   hex.EncodeToString(nonce),
		Timestamp:     time.Now().UnixMilli(),
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode is the structural inverse of Encode. Malformed input is a
// caller-visible validation failure wrapping ErrInvalidToken.
func Decode(token string) (Payload, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if payload.WorkspaceSlug == "" || payload.RandomState == "" {
		return Payload{}, fmt.Errorf("%w: missing required fields", ErrInvalidToken)
	}
	return payload, nil
}
