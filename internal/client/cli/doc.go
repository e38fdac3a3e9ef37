// Package cli provides the interactive gophchat command-line client.
//
// It wires configuration, the local session database, the HTTP API client
// and a REPL. A session stored by a previous run is restored on start, so a
// user who logged in once can keep asking questions until the token expires.
//
// Commands:
//   - register / login / logout
//   - ask <question>: send a question to the current conversation
//   - new [title]: start a new conversation with the next question
//   - use <id>, history, show [id], export [id]
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
