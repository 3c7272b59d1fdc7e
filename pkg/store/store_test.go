package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"chatdb/pkg/clock"
	"chatdb/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateUserUniqueName(t *testing.T) {
	s := newTestStore(t)

	alice, err := s.CreateUser("alice")
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	if alice.ID == "" || alice.Name != "alice" {
		t.Fatalf("unexpected user: %+v", alice)
	}

	if _, err := s.CreateUser("alice"); !errors.Is(err, ErrConstraintViolation) {
		t.Fatalf("duplicate name: want ErrConstraintViolation, got %v", err)
	}

	// deleting the holder frees the name for reuse
	if err := s.DeleteUser(alice.ID); err != nil {
		t.Fatalf("delete alice: %v", err)
	}
	again, err := s.CreateUser("alice")
	if err != nil {
		t.Fatalf("recreate alice: %v", err)
	}
	if again.ID == alice.ID {
		t.Fatalf("id reused across delete: %s", again.ID)
	}
}

func TestConcurrentCreateSameName(t *testing.T) {
	s := newTestStore(t)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.CreateUser("bob")
		}(i)
	}
	wg.Wait()

	var ok, conflict int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrConstraintViolation):
			conflict++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflict != n-1 {
		t.Fatalf("want exactly one winner, got ok=%d conflict=%d", ok, conflict)
	}
	if len(s.ListUsers()) != 1 {
		t.Fatalf("want 1 user, got %d", len(s.ListUsers()))
	}
}

func TestRenameUser(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.CreateUser("alice")
	b, _ := s.CreateUser("bob")

	if _, err := s.RenameUser(a.ID, "bob"); !errors.Is(err, ErrConstraintViolation) {
		t.Fatalf("rename onto taken name: want ErrConstraintViolation, got %v", err)
	}

	// renaming to the current name is a no-op, not a violation
	if _, err := s.RenameUser(b.ID, "bob"); err != nil {
		t.Fatalf("self rename: %v", err)
	}

	if _, err := s.RenameUser(a.ID, "carol"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	// old name is free again
	if _, err := s.CreateUser("alice"); err != nil {
		t.Fatalf("reuse released name: %v", err)
	}
	got, err := s.GetUserByName("carol")
	if err != nil || got.ID != a.ID {
		t.Fatalf("lookup by new name: %v %+v", err, got)
	}

	if _, err := s.RenameUser("user_missing", "dave"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("rename unknown: want ErrNotFound, got %v", err)
	}
}

func TestChatMessageMultiset(t *testing.T) {
	s := newTestStore(t)
	m1, _ := s.CreateMessage(models.Message{Body: "one"})
	m2, _ := s.CreateMessage(models.Message{Body: "two"})

	c, err := s.CreateChat(m1.ID)
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	if err := s.LinkMessageToChat(c.ID, m2.ID); err != nil {
		t.Fatalf("link m2: %v", err)
	}
	// duplicates are allowed; each link appends one occurrence
	if err := s.LinkMessageToChat(c.ID, m2.ID); err != nil {
		t.Fatalf("link m2 again: %v", err)
	}

	refs, err := s.ChatMessages(c.ID)
	if err != nil {
		t.Fatalf("chat messages: %v", err)
	}
	want := []string{m1.ID, m2.ID, m2.ID}
	if len(refs) != len(want) {
		t.Fatalf("want %v, got %v", want, refs)
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Fatalf("order: want %v, got %v", want, refs)
		}
	}

	// unlink removes exactly one occurrence
	if err := s.UnlinkMessageFromChat(c.ID, m2.ID); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	refs, _ = s.ChatMessages(c.ID)
	if len(refs) != 2 || refs[0] != m1.ID || refs[1] != m2.ID {
		t.Fatalf("after unlink: %v", refs)
	}

	// unlinking an absent reference is a no-op
	if err := s.UnlinkMessageFromChat(c.ID, "msg_absent"); err != nil {
		t.Fatalf("absent unlink: %v", err)
	}
	refs, _ = s.ChatMessages(c.ID)
	if len(refs) != 2 {
		t.Fatalf("absent unlink changed refs: %v", refs)
	}
}

func TestDanglingReferences(t *testing.T) {
	s := newTestStore(t)
	u, _ := s.CreateUser("alice")

	if _, err := s.CreateChat("msg_missing"); !errors.Is(err, ErrDanglingReference) {
		t.Fatalf("chat with unknown message: want ErrDanglingReference, got %v", err)
	}

	if err := s.LinkChatToUser(u.ID, "chat_missing"); !errors.Is(err, ErrDanglingReference) {
		t.Fatalf("link unknown chat: want ErrDanglingReference, got %v", err)
	}
	chats, _ := s.UserChats(u.ID)
	if len(chats) != 0 {
		t.Fatalf("failed link mutated user: %v", chats)
	}

	c, _ := s.CreateChat()
	if err := s.LinkMessageToChat(c.ID, "msg_missing"); !errors.Is(err, ErrDanglingReference) {
		t.Fatalf("link unknown message: want ErrDanglingReference, got %v", err)
	}
}

func TestDeleteMessageUnlinksEverywhere(t *testing.T) {
	s := newTestStore(t)
	m, _ := s.CreateMessage(models.Message{Body: "hi"})
	keep, _ := s.CreateMessage(models.Message{Body: "keep"})

	c1, _ := s.CreateChat(m.ID, keep.ID, m.ID)
	c2, _ := s.CreateChat(m.ID)

	if err := s.DeleteMessage(m.ID); err != nil {
		t.Fatalf("delete message: %v", err)
	}
	if _, err := s.GetMessage(m.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted message still readable: %v", err)
	}

	refs1, _ := s.ChatMessages(c1.ID)
	if len(refs1) != 1 || refs1[0] != keep.ID {
		t.Fatalf("c1 refs after delete: %v", refs1)
	}
	refs2, _ := s.ChatMessages(c2.ID)
	if len(refs2) != 0 {
		t.Fatalf("c2 refs after delete: %v", refs2)
	}
}

func TestDeleteChatUnlinksFromUsersKeepsMessages(t *testing.T) {
	s := newTestStore(t)
	m, _ := s.CreateMessage(models.Message{Body: "hi"})
	c, _ := s.CreateChat(m.ID)
	u1, _ := s.CreateUser("alice")
	u2, _ := s.CreateUser("bob")
	other, _ := s.CreateChat()

	_ = s.LinkChatToUser(u1.ID, c.ID)
	_ = s.LinkChatToUser(u1.ID, other.ID)
	_ = s.LinkChatToUser(u2.ID, c.ID)
	_ = s.LinkChatToUser(u2.ID, c.ID)

	if err := s.DeleteChat(c.ID); err != nil {
		t.Fatalf("delete chat: %v", err)
	}

	chats1, _ := s.UserChats(u1.ID)
	if len(chats1) != 1 || chats1[0] != other.ID {
		t.Fatalf("u1 chats after delete: %v", chats1)
	}
	chats2, _ := s.UserChats(u2.ID)
	if len(chats2) != 0 {
		t.Fatalf("u2 chats after delete: %v", chats2)
	}

	// deletion never cascades to the messages the chat pointed at
	if _, err := s.GetMessage(m.ID); err != nil {
		t.Fatalf("message should survive chat delete: %v", err)
	}
}

func TestDeleteUserKeepsChats(t *testing.T) {
	s := newTestStore(t)
	u, _ := s.CreateUser("alice")
	c, _ := s.CreateChat()
	_ = s.LinkChatToUser(u.ID, c.ID)

	if err := s.DeleteUser(u.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, err := s.GetChat(c.ID); err != nil {
		t.Fatalf("chat should survive user delete: %v", err)
	}
	if _, err := s.GetUser(u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted user still readable: %v", err)
	}
}

func TestMessageTimestamps(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, err := OpenWithClock(t.TempDir(), clock.Func(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	m, err := s.CreateMessage(models.Message{Body: "hi"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.TS != fixed.UnixNano() {
		t.Fatalf("default ts: want %d, got %d", fixed.UnixNano(), m.TS)
	}

	// explicit timestamps are stored verbatim
	m2, err := s.CreateMessage(models.Message{Body: "old", TS: 42})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m2.TS != 42 {
		t.Fatalf("explicit ts: want 42, got %d", m2.TS)
	}

	ts := int64(7)
	patched, err := s.UpdateMessage(m.ID, MessagePatch{TS: &ts})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if patched.TS != 7 {
		t.Fatalf("patched ts: want 7, got %d", patched.TS)
	}

	got, _ := s.GetMessage(m.ID)
	if got.TS != 7 {
		t.Fatalf("round trip ts: want 7, got %d", got.TS)
	}
}

func TestUpdateMessagePartial(t *testing.T) {
	s := newTestStore(t)
	m, _ := s.CreateMessage(models.Message{Body: "hi", Role: "user", Sources: []string{"a"}})

	body := "edited"
	out, err := s.UpdateMessage(m.ID, MessagePatch{Body: &body})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if out.Body != "edited" || out.Role != "user" || len(out.Sources) != 1 {
		t.Fatalf("partial update touched other fields: %+v", out)
	}
	if out.TS != m.TS {
		t.Fatalf("update must not bump ts: %d != %d", out.TS, m.TS)
	}

	if _, err := s.UpdateMessage("msg_missing", MessagePatch{Body: &body}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update unknown: want ErrNotFound, got %v", err)
	}
}

func TestReloadRebuildsState(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	u, _ := s.CreateUser("alice")
	m, _ := s.CreateMessage(models.Message{Body: "hi"})
	c, _ := s.CreateChat(m.ID)
	_ = s.LinkMessageToChat(c.ID, m.ID)
	_ = s.LinkChatToUser(u.ID, c.ID)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, err := s2.GetUserByName("alice")
	if err != nil || got.ID != u.ID {
		t.Fatalf("name index not rebuilt: %v %+v", err, got)
	}
	if len(got.Chats) != 1 || got.Chats[0] != c.ID {
		t.Fatalf("user links not rebuilt: %v", got.Chats)
	}
	refs, _ := s2.ChatMessages(c.ID)
	if len(refs) != 2 {
		t.Fatalf("chat links not rebuilt: %v", refs)
	}

	// the rebuilt name index still enforces uniqueness
	if _, err := s2.CreateUser("alice"); !errors.Is(err, ErrConstraintViolation) {
		t.Fatalf("uniqueness lost after reload: %v", err)
	}

	// the rebuilt reverse index still powers delete-time unlinking
	if err := s2.DeleteMessage(m.ID); err != nil {
		t.Fatalf("delete after reload: %v", err)
	}
	refs, _ = s2.ChatMessages(c.ID)
	if len(refs) != 0 {
		t.Fatalf("reverse index not rebuilt: %v", refs)
	}
}

func TestMessagesBefore(t *testing.T) {
	s := newTestStore(t)
	m1, _ := s.CreateMessage(models.Message{Body: "a", TS: 100})
	m2, _ := s.CreateMessage(models.Message{Body: "b", TS: 200})
	_, _ = s.CreateMessage(models.Message{Body: "c", TS: 300})

	got := s.MessagesBefore(300, 0)
	if len(got) != 2 || got[0] != m1.ID || got[1] != m2.ID {
		t.Fatalf("want [%s %s], got %v", m1.ID, m2.ID, got)
	}
	if got := s.MessagesBefore(300, 1); len(got) != 1 || got[0] != m1.ID {
		t.Fatalf("limit: want [%s], got %v", m1.ID, got)
	}
	if got := s.MessagesBefore(50, 0); len(got) != 0 {
		t.Fatalf("cutoff below all: %v", got)
	}
}

func TestConcurrentLinksDistinctOwners(t *testing.T) {
	s := newTestStore(t)
	c, _ := s.CreateChat()
	const users = 8
	ids := make([]string, users)
	for i := range ids {
		u, err := s.CreateUser("user-" + string(rune('a'+i)))
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		ids[i] = u.ID
	}

	const perUser = 10
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < perUser; j++ {
				if err := s.LinkChatToUser(id, c.ID); err != nil {
					t.Errorf("link: %v", err)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		chats, _ := s.UserChats(id)
		if len(chats) != perUser {
			t.Fatalf("user %s: want %d links, got %d", id, perUser, len(chats))
		}
	}
}
