package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/client/client"
)

var errNoConversation = errors.New("no current conversation, ask a question or pick one with 'use <id>'")

// Ask sends question to the current conversation. An empty question is read
// from the prompt.
func (a *App) Ask(ctx context.Context, question string) error {
	if !a.isLoggedIn() {
		return client.ErrNotLoggedIn
	}

	if question == "" {
		q, err := getSimpleText(a.reader, "Your question", a.out)
		if err != nil {
			return err
		}
		question = q
	}

	before, err := a.chatService.Current(ctx)
	if err != nil {
		return err
	}

	res, err := a.chatService.Ask(ctx, question)
	if err != nil {
		return a.checkSession(err)
	}

	if res.ConversationID != before {
		fmt.Fprintf(a.out, "[%s] %s\n", res.ConversationID, res.Title)
	}
	fmt.Fprintf(a.out, "\n%s\n\n", res.Answer)
	return nil
}

// New makes the next question open a fresh conversation.
func (a *App) New(ctx context.Context, title string) error {
	if !a.isLoggedIn() {
		return client.ErrNotLoggedIn
	}
	if err := a.chatService.StartNew(ctx, title); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "The next question starts a new conversation")
	return nil
}

func (a *App) Use(ctx context.Context, id string) error {
	if !a.isLoggedIn() {
		return client.ErrNotLoggedIn
	}
	if id == "" {
		return errors.New("usage: use <conversation id>")
	}

	// fails with not_found for someone else's conversation
	if _, err := a.chatService.Messages(ctx, id); err != nil {
		return a.checkSession(err)
	}
	if err := a.chatService.Use(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Switched to", id)
	return nil
}

// History lists the user's conversations, most recently active first. The
// current one is marked with '*'.
func (a *App) History(ctx context.Context) error {
	if !a.isLoggedIn() {
		return client.ErrNotLoggedIn
	}

	h, err := a.chatService.History(ctx)
	if err != nil {
		return a.checkSession(err)
	}

	if h.TotalConversations == 0 {
		fmt.Fprintln(a.out, "No conversations yet")
		return nil
	}

	current, err := a.chatService.Current(ctx)
	if err != nil {
		return err
	}

	for _, c := range h.Conversations {
		mark := " "
		if c.ID == current {
			mark = "*"
		}
		fmt.Fprintf(a.out, "%s %s  %-50s  %d messages, %s\n",
			mark, c.ID, c.Title, c.MessageCount, c.UpdatedAt.Local().Format(time.DateTime))
	}
	fmt.Fprintf(a.out, "Total: %d\n", h.TotalConversations)
	return nil
}

// Show prints the messages of conversation id, or of the current one.
func (a *App) Show(ctx context.Context, id string) error {
	id, err := a.target(ctx, id)
	if err != nil {
		return err
	}

	msgs, err := a.chatService.Messages(ctx, id)
	if err != nil {
		return a.checkSession(err)
	}

	for _, m := range msgs {
		fmt.Fprintf(a.out, "%s %s:\n%s\n\n",
			m.CreatedAt.Local().Format(time.DateTime), strings.ToLower(m.Role), m.Content)
	}
	return nil
}

// Export uploads the transcript of conversation id, or of the current one,
// and downloads it into the configured export directory.
func (a *App) Export(ctx context.Context, id string) error {
	id, err := a.target(ctx, id)
	if err != nil {
		return err
	}

	path, err := a.chatService.Export(ctx, id, a.config.ExportDir)
	if err != nil {
		return a.checkSession(err)
	}
	fmt.Fprintln(a.out, "Transcript saved to", path)
	return nil
}

func (a *App) target(ctx context.Context, id string) (string, error) {
	if !a.isLoggedIn() {
		return "", client.ErrNotLoggedIn
	}
	if id != "" {
		return id, nil
	}
	current, err := a.chatService.Current(ctx)
	if err != nil {
		return "", err
	}
	if current == "" {
		return "", errNoConversation
	}
	return current, nil
}
