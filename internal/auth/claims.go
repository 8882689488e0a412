// Package auth turns identity-provider ID tokens into IdentityClaim values.
// Signature verification of provider tokens is the middleware's job; this
// package only extracts and validates the claim fields the core consumes.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/msavelyev-dev/teamcoach/internal/common"
	"github.com/msavelyev-dev/teamcoach/internal/models"
)

// Claims is the token payload: registered claims plus the profile fields the
// identity provider includes in its ID tokens.
type Claims struct {
	jwt.RegisteredClaims
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
}

// GenerateToken mints an HS256 token carrying the given identity claim.
// Used by tests and development tooling that stand in for the provider.
func GenerateToken(claim *models.IdentityClaim, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claim.SubjectID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		Email:      claim.Email,
		GivenName:  claim.FirstName,
		FamilyName: claim.LastName,
		Picture:    claim.AvatarURL,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ClaimFromToken parses and verifies tokenString and returns the identity
// claim it carries. Tokens without a subject or email are rejected with
// common.ErrInvalidClaim.
func ClaimFromToken(tokenString string, secretKey []byte) (*models.IdentityClaim, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return nil, common.ErrInvalidToken
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	if claims.Subject == "" || claims.Email == "" {
		return nil, common.ErrInvalidClaim
	}

	return &models.IdentityClaim{
		SubjectID: claims.Subject,
		Email:     claims.Email,
		FirstName: claims.GivenName,
		LastName:  claims.FamilyName,
		AvatarURL: claims.Picture,
	}, nil
}
