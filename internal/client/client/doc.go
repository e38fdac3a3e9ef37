// Package client talks to the gophchat HTTP API.
//
// HTTPClient keeps the session token of the logged in user and attaches it
// to every protected call. A 401 response clears the token, and the error
// matches ErrUnauthorized so callers can ask the user to log in again.
// Transport failures match ErrUnavailable. Other failures are returned as
// *APIError carrying the server's error code, message and details.
//
// InitDatabase and RunMigrations bootstrap the local SQLite file the CLI
// uses to remember its session between runs.
package client
