// Package common contains shared constants and sentinel errors used across
// authkit components.
package common

// AccessTokenHeaderName is the gRPC metadata key carrying the access token.
const AccessTokenHeaderName = "access_token"

// AuthCookieName is the HTTP cookie holding the access token.
const AuthCookieName = "auth-token"
