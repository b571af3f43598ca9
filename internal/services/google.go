// Package services holds the collaborators handlers and stores sit on:
// outward identity integrations and the at-rest encryption treatments.
package services

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/idtoken"
)

// GoogleIdentity is the subset of a verified Google ID token the app keeps.
type GoogleIdentity struct {
	Sub     string
	Email   string
	Name    string
	Picture string
}

// GoogleVerifier validates Google ID tokens against the app's OAuth client
// id.
type GoogleVerifier struct {
	clientID string
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID}
}

// Verify checks the token's signature and audience and extracts the
// account identity.
func (v *GoogleVerifier) Verify(ctx context.Context, rawToken string) (GoogleIdentity, error) {
	payload, err := idtoken.Validate(ctx, rawToken, v.clientID)
	if err != nil {
		return GoogleIdentity{}, fmt.Errorf("validate id token: %w", err)
	}

	id := GoogleIdentity{Sub: payload.Subject}
	if email, ok := payload.Claims["email"].(string); ok {
		id.Email = email
	}
	if name, ok := payload.Claims["name"].(string); ok {
		id.Name = name
	}
	if picture, ok := payload.Claims["picture"].(string); ok {
		id.Picture = picture
	}
	if id.Email == "" {
		return GoogleIdentity{}, errors.New("id token carries no email")
	}
	return id, nil
}
