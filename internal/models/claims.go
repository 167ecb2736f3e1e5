package models

import "github.com/golang-jwt/jwt/v5"

// Claims are the JWT claims issued by the identity provider. Subject carries
// the external identity that maps to a Player record.
type Claims struct {
	jwt.RegisteredClaims
	DisplayName string `json:"name,omitempty"`
}
