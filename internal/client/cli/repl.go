package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL needs. App satisfies it.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Ask(ctx context.Context, question string) error
	New(ctx context.Context, title string) error
	Use(ctx context.Context, id string) error
	History(ctx context.Context) error
	Show(ctx context.Context, id string) error
	Export(ctx context.Context, id string) error
}

// runREPL reads commands from reader until EOF, "exit" or "quit", or until
// ctx is done. The first word selects the command; the rest of the line is
// its argument. Errors returned by commands are printed and the loop goes on.
//
//	Not logged in: help, register, login, exit
//	Logged in:     help, ask <question>, new [title], use <id>, history,
//	               show [id], export [id], logout, exit
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}

		printlnFn(fmt.Sprintf("gc%s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: ask <question>, new [title], use <id>, (h)istory, show [id], export [id], logout, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}

		case "register":
			cmdErr = a.Register(ctx)

		case "login":
			cmdErr = a.Login(ctx)

		case "logout":
			cmdErr = a.Logout(ctx)

		case "ask":
			cmdErr = a.Ask(ctx, arg)

		case "new":
			cmdErr = a.New(ctx, arg)

		case "use":
			cmdErr = a.Use(ctx, arg)

		case "h", "history":
			cmdErr = a.History(ctx)

		case "show":
			cmdErr = a.Show(ctx, arg)

		case "export":
			cmdErr = a.Export(ctx, arg)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn(describe(cmdErr))
		}
	}
}
