// Package client talks to the TokenKeeper AuthService over gRPC.
//
// GRPCClient holds the current token pair, attaches the access token to
// protected calls and, when the server reports an expired access token,
// rotates the pair once and retries. Server errors come back as the
// sentinels in internal/common (matched with errors.Is); transport outages
// come back as ErrUnavailable.
package client
