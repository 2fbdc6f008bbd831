package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matheus3301/wppdesk/internal/api"
	"github.com/matheus3301/wppdesk/internal/config"
	"github.com/matheus3301/wppdesk/internal/router"
	"github.com/matheus3301/wppdesk/internal/session"
	"github.com/matheus3301/wppdesk/internal/store"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "status":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		cmdStatus(ctx, dial(sessionName), sessionName, *jsonFlag)
	case "watch":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cmdWatch(ctx, dial(sessionName), *jsonFlag)
	case "queues":
		cmdQueues(sessionName, *jsonFlag)
	case "sessions":
		cmdSessions(*jsonFlag)
	case "ticket":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		cmdTicket(ctx, sessionName, args[1:], *jsonFlag)
	case "contact":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: wppdeskctl contact <number>")
			os.Exit(1)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		cmdContact(ctx, sessionName, args[1], *jsonFlag)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: wppdeskctl [--session <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status           Show session status")
	fmt.Fprintln(os.Stderr, "  watch            Follow session status changes")
	fmt.Fprintln(os.Stderr, "  queues           Preview the queue menu")
	fmt.Fprintln(os.Stderr, "  sessions         List known sessions")
	fmt.Fprintln(os.Stderr, "  ticket show <id>          Show a ticket and its latest messages")
	fmt.Fprintln(os.Stderr, "  ticket take <id> <user>   Assign a ticket to an operator")
	fmt.Fprintln(os.Stderr, "  ticket close <id>         Close a ticket")
	fmt.Fprintln(os.Stderr, "  contact <number>          Show a contact")
}

func dial(sessionName string) *api.Client {
	c, err := api.Dial(session.SocketPath(sessionName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for session %q: %v\n", sessionName, err)
		os.Exit(1)
	}
	return c
}

type statusOutput struct {
	Session string `json:"session,omitempty"`
	Serving string `json:"serving"`
	State   string `json:"state,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func toOutput(sessionName string, st api.Status) statusOutput {
	return statusOutput{Session: sessionName, Serving: st.Serving.String(), State: st.State, Reason: st.Reason}
}

func cmdStatus(ctx context.Context, c *api.Client, sessionName string, jsonOut bool) {
	defer func() { _ = c.Close() }()
	st, err := c.Status(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(toOutput(sessionName, st))
		return
	}
	fmt.Printf("Session: %s\n", sessionName)
	fmt.Printf("Status:  %s\n", st.State)
	fmt.Printf("Serving: %s\n", st.Serving)
	if st.Reason != "" {
		fmt.Printf("Reason:  %s\n", st.Reason)
	}
}

func cmdWatch(ctx context.Context, c *api.Client, jsonOut bool) {
	defer func() { _ = c.Close() }()
	err := c.Watch(ctx, func(st api.Status) {
		if jsonOut {
			outputJSON(toOutput("", st))
			return
		}
		line := fmt.Sprintf("%s %-14s %s", time.Now().Format(time.TimeOnly), st.State, st.Serving)
		if st.Reason != "" {
			line += " (" + st.Reason + ")"
		}
		fmt.Println(line)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func cmdQueues(sessionName string, jsonOut bool) {
	cfg, err := config.LoadDesk(session.DeskConfigPath(sessionName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(cfg.Queues)
		return
	}
	if len(cfg.Queues) == 0 {
		fmt.Println("No queues configured.")
		return
	}
	queues := make([]store.Queue, 0, len(cfg.Queues))
	for i, q := range cfg.Queues {
		queues = append(queues, store.Queue{Name: q.Name, GreetingMessage: q.GreetingMessage, Position: i + 1})
	}
	fmt.Print(router.Menu(cfg.GreetingMessage, queues))
}

func cmdSessions(jsonOut bool) {
	sessions, err := session.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(sessions)
		return
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return
	}
	for _, s := range sessions {
		running := "stopped"
		if s.Running {
			running = "running"
		}
		fmt.Printf("%-20s %s (%s)\n", s.Name, s.Path, running)
	}
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
