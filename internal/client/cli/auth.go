package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophchat/internal/client/client"
	"github.com/dmitrijs2005/gophchat/internal/common"
)

// getSimpleText and getPassword are swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for name, email and the password twice, then creates the
// account. A successful registration also logs the user in.
func (a *App) Register(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Enter name", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := getPassword("Confirm password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	u, err := a.authService.Register(ctx, name, email, password, confirm)
	if err != nil {
		return err
	}

	a.user = u
	fmt.Fprintf(a.out, "Welcome, %s!\n", u.Name)
	return nil
}

// Login prompts for credentials and authenticates against the server.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.authService.Login(ctx, email, password)
	if err != nil {
		return err
	}

	a.user = u
	fmt.Fprintf(a.out, "Logged in as %s\n", u.Name)
	return nil
}

// Logout forgets the stored session.
func (a *App) Logout(ctx context.Context) error {
	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	a.user = nil
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

// checkSession drops the in-memory user when the server no longer accepts
// the token. The services layer has already cleared the stored session.
func (a *App) checkSession(err error) error {
	if errors.Is(err, client.ErrUnauthorized) {
		a.user = nil
	}
	return err
}

func describe(err error) string {
	var apiErr *client.APIError
	isAPI := errors.As(err, &apiErr)
	switch {
	case errors.Is(err, client.ErrNotLoggedIn):
		return "Please log in first"
	case errors.Is(err, client.ErrUnavailable):
		return "Server unavailable, try again later"
	case isAPI && apiErr.Code == "invalid_credentials":
		return "Invalid email or password"
	case errors.Is(err, client.ErrUnauthorized):
		return "Session expired, please log in again"
	case isAPI:
		return "Error: " + apiErr.Error()
	default:
		return "Error: " + err.Error()
	}
}
