package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/matiasleandrokruk/chatd/internal/domain/chat"
	"github.com/matiasleandrokruk/chatd/internal/infra/llm"
)

// consoleCoordinator is the conversation surface the console consumes.
type consoleCoordinator interface {
	Send(ctx context.Context, text string) (<-chan llm.StreamChunk, error)
	SwitchProvider(id string) error
	ProviderID() string
	ConversationID() string
	History() []chat.Turn
	ClearHistory() error
}

// providerLister is the factory surface the console consumes.
type providerLister interface {
	ListProviders(ctx context.Context) []llm.ProviderStatus
}

// runConsole drives the interactive chat loop: slash commands for provider
// and history management, everything else streamed to the active provider.
func runConsole(ctx context.Context, coordinator consoleCoordinator, factory providerLister, in io.Reader, out io.Writer) int {
	fmt.Fprintln(out, "chatd console — /help for commands, /quit to exit") //nolint:errcheck

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ") //nolint:errcheck
		if !scanner.Scan() {
			return 0
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := runCommand(ctx, coordinator, factory, out, line); quit {
				return 0
			}
			continue
		}

		sendMessage(ctx, coordinator, out, line)
	}
}

// runCommand executes one slash command. Returns true on /quit.
func runCommand(ctx context.Context, coordinator consoleCoordinator, factory providerLister, out io.Writer, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		printConsoleHelp(out)
	case "/providers":
		printProviders(ctx, coordinator, factory, out)
	case "/switch":
		if arg == "" {
			fmt.Fprintln(out, "usage: /switch <provider-id>") //nolint:errcheck
			break
		}
		if err := coordinator.SwitchProvider(arg); err != nil {
			fmt.Fprintf(out, "switch failed: %v\n", err) //nolint:errcheck
			break
		}
		fmt.Fprintf(out, "now chatting with %s\n", coordinator.ProviderID()) //nolint:errcheck
	case "/history":
		printHistory(coordinator, out)
	case "/clear":
		if err := coordinator.ClearHistory(); err != nil {
			fmt.Fprintf(out, "clear failed: %v\n", err) //nolint:errcheck
			break
		}
		fmt.Fprintln(out, "history cleared") //nolint:errcheck
	default:
		fmt.Fprintf(out, "unknown command %s — /help for commands\n", cmd) //nolint:errcheck
	}
	return false
}

// sendMessage streams one reply to out, deltas as they arrive.
func sendMessage(ctx context.Context, coordinator consoleCoordinator, out io.Writer, text string) {
	stream, err := coordinator.Send(ctx, text)
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err) //nolint:errcheck
		return
	}

	for chunk := range stream {
		if chunk.Err != nil {
			fmt.Fprintf(out, "\n[stream error: %v]", chunk.Err) //nolint:errcheck
			continue
		}
		fmt.Fprint(out, chunk.Delta) //nolint:errcheck
		if chunk.Done && chunk.Usage != nil {
			fmt.Fprintf(out, "\n(%d tokens)", chunk.Usage.Total) //nolint:errcheck
		}
	}
	fmt.Fprintln(out) //nolint:errcheck
}

func printProviders(ctx context.Context, coordinator consoleCoordinator, factory providerLister, out io.Writer) {
	active := coordinator.ProviderID()
	for _, s := range factory.ListProviders(ctx) {
		marker := " "
		if s.ID == active {
			marker = "*"
		}
		state := "unavailable"
		if s.Available {
			state = "available"
		}
		fmt.Fprintf(out, "%s %-18s %-22s model=%s (%s)\n", marker, s.ID, s.DisplayName, s.DefaultModel, state) //nolint:errcheck
	}
}

func printHistory(coordinator consoleCoordinator, out io.Writer) {
	turns := coordinator.History()
	if len(turns) == 0 {
		fmt.Fprintln(out, "(empty)") //nolint:errcheck
		return
	}
	for _, t := range turns {
		fmt.Fprintf(out, "%s: %s\n", t.Role, t.Content) //nolint:errcheck
	}
}

func printConsoleHelp(out io.Writer) {
	helpText := `commands:
  /providers         list configured providers (* = active)
  /switch <id>       switch provider, transcript carries over
  /history           show the conversation so far
  /clear             reset the conversation
  /quit              exit`
	fmt.Fprintln(out, helpText) //nolint:errcheck
}
