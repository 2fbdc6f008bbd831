package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/matheus3301/wppdesk/internal/session"
	"github.com/matheus3301/wppdesk/internal/store"
)

// openDesk opens the session's desk.db alongside a running daemon.
// WAL mode lets both processes use it; migrations stay with the daemon.
func openDesk(sessionName string) *store.DB {
	path := session.DeskDBPath(sessionName)
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(os.Stderr, "error: no desk database for session %q: %v\n", sessionName, err)
		os.Exit(1)
	}
	db, err := store.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	return db
}

func parseID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintf(os.Stderr, "error: invalid id %q\n", s)
		os.Exit(1)
	}
	return id
}

func mustTicket(ctx context.Context, db *store.DB, id int64) *store.Ticket {
	tk, err := db.GetTicket(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if tk == nil {
		fmt.Fprintf(os.Stderr, "error: ticket %d not found\n", id)
		os.Exit(1)
	}
	return tk
}

func cmdTicket(ctx context.Context, sessionName string, args []string, jsonOut bool) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: wppdeskctl ticket <show|take|close> <ticket-id> [user-id]")
		os.Exit(1)
	}
	db := openDesk(sessionName)
	defer func() { _ = db.Close() }()
	tk := mustTicket(ctx, db, parseID(args[1]))

	switch args[0] {
	case "show":
		msgs, err := db.ListTicketMessages(ctx, tk.ID, 20)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if jsonOut {
			outputJSON(struct {
				Ticket   *store.Ticket   `json:"ticket"`
				Messages []store.Message `json:"messages"`
			}{tk, msgs})
			return
		}
		printTicket(tk)
		for _, m := range msgs {
			who := "<"
			if m.FromMe {
				who = ">"
			}
			body := m.Body
			if m.MediaType != "" {
				body = fmt.Sprintf("[%s] %s", m.MediaType, body)
			}
			fmt.Printf("  %s %s %s (ack %d)\n", time.UnixMilli(m.CreatedAt).Format(time.DateTime), who, body, m.Ack)
		}
	case "take":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: wppdeskctl ticket take <ticket-id> <user-id>")
			os.Exit(1)
		}
		if err := db.SetTicketUser(ctx, tk.ID, parseID(args[2])); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Ticket %d taken by user %s.\n", tk.ID, args[2])
	case "close":
		if err := db.CloseTicket(ctx, tk.ID); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Ticket %d closed.\n", tk.ID)
	default:
		fmt.Fprintf(os.Stderr, "unknown ticket subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func printTicket(tk *store.Ticket) {
	queue := "-"
	if tk.Queue != nil {
		queue = tk.Queue.Name
	}
	contact := "-"
	if tk.Contact != nil {
		contact = fmt.Sprintf("%s (%s)", tk.Contact.Name, tk.Contact.Number)
	}
	fmt.Printf("Ticket:  %d [%s]\n", tk.ID, tk.Status)
	fmt.Printf("Contact: %s\n", contact)
	fmt.Printf("Queue:   %s\n", queue)
	fmt.Printf("Unread:  %d\n", tk.UnreadMessages)
}

func cmdContact(ctx context.Context, sessionName, number string, jsonOut bool) {
	db := openDesk(sessionName)
	defer func() { _ = db.Close() }()
	c, err := db.GetContactByNumber(ctx, number)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if c == nil {
		fmt.Fprintf(os.Stderr, "error: no contact with number %q\n", number)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(c)
		return
	}
	fmt.Printf("Contact: %d\n", c.ID)
	fmt.Printf("Name:    %s\n", c.Name)
	fmt.Printf("Number:  %s\n", c.Number)
	fmt.Printf("Group:   %v\n", c.IsGroup)
}
