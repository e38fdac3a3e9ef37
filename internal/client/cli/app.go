package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/gophchat/internal/client/client"
	"github.com/dmitrijs2005/gophchat/internal/client/config"
	"github.com/dmitrijs2005/gophchat/internal/client/models"
	"github.com/dmitrijs2005/gophchat/internal/client/services"

	_ "modernc.org/sqlite"
)

type App struct {
	config      *config.Config
	authService services.AuthService
	chatService services.ChatService
	user        *models.User
	reader      *bufio.Reader
	out         io.Writer
	closer      io.Closer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	db, err := client.InitDatabase(ctx, c.DataFile)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	apiClient := client.NewHTTPClient(c.ServerURL, c.RequestTimeout)

	return &App{
		config:      c,
		authService: services.NewAuthService(apiClient, db),
		chatService: services.NewChatService(apiClient, db),
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		closer:      db,
	}, nil
}

// Run restores a stored session and blocks in the REPL until the user exits
// or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.closer != nil {
		defer a.closer.Close()
	}

	printlnFn("Welcome to gophchat (type 'help' for commands)")

	if err := a.authService.Ping(ctx); err != nil {
		printlnFn("Server is not reachable at", a.config.ServerURL)
	}

	u, err := a.authService.Restore(ctx)
	if err != nil {
		printlnFn(describe(err))
	} else if u != nil {
		a.user = u
		printlnFn("Logged in as", u.Name)
	}

	runREPL(ctx, a, a.getStatus, a.reader)
	return nil
}

func (a *App) isLoggedIn() bool {
	return a.user != nil
}

func (a *App) getStatus() string {
	if a.user == nil {
		return ""
	}
	return fmt.Sprintf("(%s)", a.user.Name)
}
