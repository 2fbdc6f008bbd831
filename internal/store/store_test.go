package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testSession(t *testing.T, db *DB) *Session {
	t.Helper()
	s, err := db.RegisterSession(context.Background(), "default", "Welcome!")
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func testContact(t *testing.T, db *DB, number string, group bool) *Contact {
	t.Helper()
	c, _, err := db.UpsertContact(context.Background(), &Contact{Name: number, Number: number, IsGroup: group})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestMigrateAppliesOnFreshDB(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestUpsertContactKeepsNameRefreshesPicture(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	c, created, err := db.UpsertContact(ctx, &Contact{Name: "Ana", Number: "5511999990000", ProfilePicURL: "http://a"})
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("first upsert should create")
	}

	again, created, err := db.UpsertContact(ctx, &Contact{Name: "Other", Number: "5511999990000", ProfilePicURL: "http://b"})
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("second upsert should not create")
	}
	if again.ID != c.ID {
		t.Errorf("id = %d, want %d", again.ID, c.ID)
	}
	if again.Name != "Ana" {
		t.Errorf("name = %q, want Ana", again.Name)
	}
	if again.ProfilePicURL != "http://b" {
		t.Errorf("profile pic = %q, want http://b", again.ProfilePicURL)
	}

	missing, err := db.GetContactByNumber(ctx, "000")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Error("missing contact should be nil")
	}
}

func TestFindOrCreateTicketReusesActive(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	s := testSession(t, db)
	c := testContact(t, db, "5511", false)

	first, err := db.FindOrCreateTicket(ctx, c, s.ID, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.Status != StatusPending {
		t.Errorf("status = %q, want pending", first.Status)
	}
	if first.Contact == nil || first.Contact.ID != c.ID {
		t.Error("ticket should load its contact")
	}

	second, err := db.FindOrCreateTicket(ctx, c, s.ID, 4, nil)
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Errorf("ticket id = %d, want %d", second.ID, first.ID)
	}
	if second.UnreadMessages != 4 {
		t.Errorf("unread = %d, want 4", second.UnreadMessages)
	}
}

func TestFindOrCreateTicketConcurrentSingleActive(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	s := testSession(t, db)
	c := testContact(t, db, "5511", false)

	const n = 8
	ids := make([]int64, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tk, err := db.FindOrCreateTicket(ctx, c, s.ID, 0, nil)
			errs[i] = err
			if tk != nil {
				ids[i] = tk.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range n {
		if errs[i] != nil {
			t.Fatalf("call %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Errorf("call %d got ticket %d, want %d", i, ids[i], ids[0])
		}
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM tickets`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("tickets = %d, want 1", count)
	}
}

func TestFindOrCreateTicketReopenWindow(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	s := testSession(t, db)
	c := testContact(t, db, "5511", false)

	tk, err := db.FindOrCreateTicket(ctx, c, s.ID, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.SetTicketUser(ctx, tk.ID, 7); err != nil {
		t.Fatal(err)
	}
	if err := db.CloseTicket(ctx, tk.ID); err != nil {
		t.Fatal(err)
	}

	reopened, err := db.FindOrCreateTicket(ctx, c, s.ID, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.ID != tk.ID {
		t.Errorf("recent closed ticket should be reused: got %d, want %d", reopened.ID, tk.ID)
	}
	if reopened.Status != StatusPending || reopened.UserID != nil {
		t.Errorf("reopened ticket = %q user %v, want pending without operator", reopened.Status, reopened.UserID)
	}

	if err := db.CloseTicket(ctx, tk.ID); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-3 * time.Hour).UnixMilli()
	if _, err := db.Exec(`UPDATE tickets SET updated_at = ? WHERE id = ?`, old, tk.ID); err != nil {
		t.Fatal(err)
	}

	fresh, err := db.FindOrCreateTicket(ctx, c, s.ID, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.ID == tk.ID {
		t.Error("ticket closed outside the window should not be reused")
	}
}

func TestFindOrCreateTicketGroupReopensLatest(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	s := testSession(t, db)
	member := testContact(t, db, "5511", false)
	group := testContact(t, db, "120363", true)

	tk, err := db.FindOrCreateTicket(ctx, member, s.ID, 0, group)
	if err != nil {
		t.Fatal(err)
	}
	if tk.ContactID != group.ID || !tk.IsGroup {
		t.Errorf("group ticket should belong to the group contact")
	}
	if err := db.CloseTicket(ctx, tk.ID); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-48 * time.Hour).UnixMilli()
	if _, err := db.Exec(`UPDATE tickets SET updated_at = ? WHERE id = ?`, old, tk.ID); err != nil {
		t.Fatal(err)
	}

	again, err := db.FindOrCreateTicket(ctx, member, s.ID, 0, group)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != tk.ID {
		t.Errorf("group ticket should be reopened regardless of age: got %d, want %d", again.ID, tk.ID)
	}
}

func TestQueuesSyncAndAssign(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	s := testSession(t, db)

	err := db.SyncQueues(ctx, s.ID, []QueueSpec{
		{Name: "Sales", GreetingMessage: "Sales here"},
		{Name: "Support", GreetingMessage: "Support here"},
	})
	if err != nil {
		t.Fatal(err)
	}
	queues, err := db.ListQueues(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(queues) != 2 || queues[0].Name != "Sales" || queues[1].Position != 2 {
		t.Fatalf("queues = %+v", queues)
	}

	c := testContact(t, db, "5511", false)
	tk, err := db.FindOrCreateTicket(ctx, c, s.ID, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	assigned, err := db.SetTicketQueue(ctx, tk.ID, queues[1].ID)
	if err != nil {
		t.Fatal(err)
	}
	if assigned.Queue == nil || assigned.Queue.Name != "Support" {
		t.Errorf("assigned queue = %+v, want Support", assigned.Queue)
	}

	// Dropping a queue detaches tickets from it.
	if err := db.SyncQueues(ctx, s.ID, []QueueSpec{{Name: "Sales"}}); err != nil {
		t.Fatal(err)
	}
	after, err := db.GetTicket(ctx, tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if after.QueueID != nil {
		t.Errorf("queue id = %v, want nil", *after.QueueID)
	}
}

func TestCreateMessageIdempotentKeepsAck(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	s := testSession(t, db)
	c := testContact(t, db, "5511", false)
	tk, err := db.FindOrCreateTicket(ctx, c, s.ID, 0, nil)
	if err != nil {
		t.Fatal(err)
	}

	msg := &Message{ID: "M1", TicketID: tk.ID, ContactID: &c.ID, Body: "hello"}
	if _, err := db.CreateMessage(ctx, msg); err != nil {
		t.Fatal(err)
	}
	ok, err := db.ApplyMessageAck(ctx, "M1", 3)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("ack update should find M1")
	}

	again, err := db.CreateMessage(ctx, msg)
	if err != nil {
		t.Fatal(err)
	}
	if again.Ack != 3 {
		t.Errorf("ack = %d, want 3", again.Ack)
	}
	if again.Contact == nil || again.Contact.Number != "5511" {
		t.Error("message should load its contact")
	}

	msgs, err := db.ListTicketMessages(ctx, tk.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Errorf("messages = %d, want 1", len(msgs))
	}

	ok, err = db.ApplyMessageAck(ctx, "M1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("a lower ack must not replace a higher one")
	}

	ok, err = db.ApplyMessageAck(ctx, "M1", 3)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("a repeated ack should be applied again")
	}

	ok, err = db.ApplyMessageAck(ctx, "M1", -1)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("an error ack must not replace a read message")
	}

	ok, err = db.ApplyMessageAck(ctx, "nope", 2)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("ack update on unknown id should report false")
	}
}

func TestFindMessageLoadsQuoted(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	s := testSession(t, db)
	c := testContact(t, db, "5511", false)
	tk, err := db.FindOrCreateTicket(ctx, c, s.ID, 0, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := db.CreateMessage(ctx, &Message{ID: "Q", TicketID: tk.ID, ContactID: &c.ID, Body: "original"}); err != nil {
		t.Fatal(err)
	}
	quoted := "Q"
	if _, err := db.CreateMessage(ctx, &Message{ID: "R", TicketID: tk.ID, Body: "reply", FromMe: true, QuotedMsgID: &quoted}); err != nil {
		t.Fatal(err)
	}

	got, err := db.FindMessage(ctx, "R")
	if err != nil {
		t.Fatal(err)
	}
	if got.QuotedMsg == nil || got.QuotedMsg.Body != "original" {
		t.Fatalf("quoted = %+v", got.QuotedMsg)
	}
	if got.QuotedMsg.Contact == nil {
		t.Error("quoted message should load its contact")
	}

	none, err := db.FindMessage(ctx, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if none != nil {
		t.Error("missing message should be nil")
	}
}

func TestErrorAckReplacesServerAck(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	s := testSession(t, db)
	c := testContact(t, db, "5511", false)
	tk, err := db.FindOrCreateTicket(ctx, c, s.ID, 0, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := db.CreateMessage(ctx, &Message{ID: "OUT", TicketID: tk.ID, Body: "menu", FromMe: true, Read: true, Ack: 1}); err != nil {
		t.Fatal(err)
	}
	ok, err := db.ApplyMessageAck(ctx, "OUT", -1)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("error ack should replace the server ack")
	}
	got, err := db.FindMessage(ctx, "OUT")
	if err != nil {
		t.Fatal(err)
	}
	if got.Ack != -1 {
		t.Errorf("ack = %d, want -1", got.Ack)
	}

	// A late success receipt still lands after an error.
	ok, err = db.ApplyMessageAck(ctx, "OUT", 2)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("delivered ack should replace the error level")
	}
}
