// ABOUTME: Terminal client for the PropFix assistant chat API.
// ABOUTME: Readline-style composer with image attachments over the dispatch controller.

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/propfix/propfix-assistant/internal/attachment"
	"github.com/propfix/propfix-assistant/internal/client"
	"github.com/propfix/propfix-assistant/internal/dispatch"
	"github.com/propfix/propfix-assistant/internal/session"
	"github.com/propfix/propfix-assistant/internal/transcript"
)

func main() {
	configPath := flag.String("config", defaultConfigPath(), "Config file path")
	serverURL := flag.String("server", "", "Assistant server URL (overrides config)")
	userName := flag.String("name", "", "Display name for the session (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *serverURL != "" {
		cfg.Server.URL = *serverURL
	}
	if *userName != "" {
		cfg.User.Name = *userName
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

func run(ctx context.Context, cfg *Config) error {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	cyan.Println("PropFix Assistant")
	fmt.Printf("connected to %s as %s\n", cfg.Server.URL, cfg.User.Name)
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	api := client.New(cfg.Server.URL, nil)

	// One session per process lifetime. Failure is not fatal: the TUI stays
	// up, but every send intent is rejected by the dispatch guard.
	sess, err := session.Establish(ctx, api, cfg.User.Name, nil)
	if err != nil {
		gray.Println("(could not reach the assistant — messages will not send)")
		fmt.Println()
	}

	attachments := attachment.NewManager()
	log := transcript.NewLog()
	ctrl := dispatch.New(sess, attachments, log, api, nil)

	rendered := 0
	scanner := bufio.NewScanner(os.Stdin)

	for {
		printPrompt(attachments)

		// Read input with context awareness
		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)

		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else {
				if err := scanner.Err(); err != nil {
					errCh <- err
				} else {
					errCh <- io.EOF
				}
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if input == "/quit" || input == "/exit" || input == "/q" {
			return nil
		}

		if strings.HasPrefix(input, "/attach") {
			path := strings.TrimSpace(strings.TrimPrefix(input, "/attach"))
			if path == "" {
				fmt.Println("Usage: /attach <image path>")
			} else if err := attachImage(attachments, path); err != nil {
				fmt.Printf("[error] %v\n", err)
			}
			fmt.Println()
			continue
		}

		if input == "/remove" {
			attachments.Clear()
			fmt.Println("Attachment removed")
			fmt.Println()
			continue
		}

		if input == "/history" {
			printHistory(log)
			fmt.Println()
			continue
		}

		if strings.HasPrefix(input, "/export") {
			path := strings.TrimSpace(strings.TrimPrefix(input, "/export"))
			if path == "" {
				fmt.Println("Usage: /export <file.html>")
			} else if err := exportTranscript(log, path); err != nil {
				fmt.Printf("[error] %v\n", err)
			} else {
				fmt.Printf("Transcript written to %s\n", path)
			}
			fmt.Println()
			continue
		}

		if input == "/help" {
			printHelp()
			fmt.Println()
			continue
		}

		// Everything else is a message: stage it as the draft and send.
		ctrl.SetDraft(input)
		if !ctrl.Send(ctx) && sess == nil {
			gray.Println("(no session — message not sent)")
		}
		rendered = renderNewTurns(log, rendered)
		fmt.Println()
	}
}

// printPrompt shows the composer prompt, marking a held attachment.
func printPrompt(attachments *attachment.Manager) {
	if att, ok := attachments.Current(); ok {
		fmt.Printf("[%s]> ", att.Filename)
	} else {
		fmt.Print("> ")
	}
}

// attachImage reads a file into the attachment slot and waits for the
// preview conversion to finish.
func attachImage(attachments *attachment.Manager, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	if err := <-attachments.Select(filepath.Base(path), data); err != nil {
		return fmt.Errorf("preparing attachment: %w", err)
	}
	fmt.Printf("Attached %s (%d bytes)\n", filepath.Base(path), len(data))
	return nil
}

// renderNewTurns prints transcript turns appended since the last render and
// returns the new high-water mark.
func renderNewTurns(log *transcript.Log, from int) int {
	turns := log.All()
	for _, t := range turns[from:] {
		printTurn(t)
	}
	return len(turns)
}

// printHistory re-renders the whole transcript.
func printHistory(log *transcript.Log) {
	turns := log.All()
	if len(turns) == 0 {
		fmt.Println("No conversation yet")
		return
	}
	fmt.Println(strings.Repeat("-", 60))
	for _, t := range turns {
		printTurn(t)
	}
	fmt.Println(strings.Repeat("-", 60))
}

func printTurn(t transcript.Turn) {
	switch t.Role {
	case transcript.RoleUser:
		color.New(color.FgBlue).Print("you> ")
		fmt.Println(t.Content)
		if t.ImagePreview != "" {
			color.New(color.FgHiBlack).Println("     [image attached]")
		}
	case transcript.RoleAssistant:
		if t.AgentLabel != "" {
			color.New(color.FgGreen).Printf("[%s] ", t.AgentLabel)
		}
		fmt.Println(t.Content)
	}
}

// exportTranscript writes the transcript as HTML to the given path.
func exportTranscript(log *transcript.Log, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()
	return log.ExportHTML(f, "PropFix Assistant conversation")
}

// printHelp displays available commands.
func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /attach <path>  Attach an image to the next message")
	fmt.Println("  /remove         Remove the pending attachment")
	fmt.Println("  /history        Re-print the conversation")
	fmt.Println("  /export <file>  Save the conversation as HTML")
	fmt.Println("  /help           Show this help")
	fmt.Println("  /quit           Exit")
}
