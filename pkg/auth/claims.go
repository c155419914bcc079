package auth

import "github.com/golang-jwt/jwt/v5"

// AnonymousCallerID marks listings created without an attached identity.
const AnonymousCallerID = "anonymous"

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	Subject string
	Email   string
	Name    string
	JTI     string
}

// AccessTokenClaims are the identity claims issued by the identity provider. The
// caller identity is the registered subject.
type AccessTokenClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// CallerID returns the token subject.
func (c *AccessTokenClaims) CallerID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}
