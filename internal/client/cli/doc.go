// Package cli implements authctl, a command-line client for TokenKeeper.
//
// Commands:
//   - login       prompt for email and password, store the token pair
//   - refresh     rotate the stored pair
//   - logout      revoke the stored refresh token and forget it
//   - logout-all  revoke every session of the account
//   - sessions    list the account's refresh tokens
//
// The pair lives in a JSON state file (mode 0600) between runs.
package cli
