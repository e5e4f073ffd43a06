package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound requests.
const AccessTokenHeaderName = "access_token"

// BearerPrefix precedes the access token in the HTTP Authorization header.
const BearerPrefix = "Bearer "
