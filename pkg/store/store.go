// Package store implements the chat-history record store: three record
// kinds (User, Chat, Message) connected by ownership links, with a
// global uniqueness constraint on user names.
//
// Deletion policy: deleting a record unlinks every inbound reference
// held by live owners but never cascades to link targets. Deleting a
// chat leaves its messages in place; deleting a message removes each of
// its occurrences from every chat referencing it.
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"chatdb/pkg/clock"
	"chatdb/pkg/logger"
	"chatdb/pkg/models"
)

const (
	kindUser = "user"
	kindChat = "chat"
	kindMsg  = "msg"
)

func userKey(id string) string { return "user:" + id }
func chatKey(id string) string { return "chat:" + id }
func msgKey(id string) string  { return "msg:" + id }

// Store coordinates identity assignment, the name constraint index and
// the link graph, and writes every record through to the KV engine.
// All operations are atomic: either every check passes and every effect
// lands, or the store is left untouched.
//
// Locking: mu serializes record existence (create/delete hold it for
// write; reads and link mutations hold it for read). Link mutations on
// one owner are additionally serialized by the owner's own mutex, so
// different owners stay concurrent.
type Store struct {
	kv    KV
	clk   clock.Clock
	ident *identIndex
	graph *linkGraph

	mu    sync.RWMutex
	users map[string]models.User    // link slices live in graph, not here
	chats map[string]models.Chat    //
	msgs  map[string]models.Message //
}

// Open opens a Pebble-backed store at path using the system clock.
func Open(path string) (*Store, error) {
	return OpenWithClock(path, clock.System{})
}

// OpenWithClock opens a Pebble-backed store with an injected clock.
func OpenWithClock(path string, clk clock.Clock) (*Store, error) {
	kv, err := OpenPebble(path)
	if err != nil {
		return nil, err
	}
	s, err := NewStore(kv, clk)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	return s, nil
}

// NewStore builds a store over an already opened KV engine and rebuilds
// the in-memory indexes (records, links, name reservations) from it.
func NewStore(kv KV, clk clock.Clock) (*Store, error) {
	if clk == nil {
		clk = clock.System{}
	}
	s := &Store{
		kv:    kv,
		clk:   clk,
		ident: newIdentIndex(),
		graph: newLinkGraph(),
		users: make(map[string]models.User),
		chats: make(map[string]models.Chat),
		msgs:  make(map[string]models.Message),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load rebuilds all indexes from a KV scan. Messages first so chat
// links can be counted, then chats, then users.
func (s *Store) load() error {
	if err := s.kv.Scan(msgKey(""), func(k string, v []byte) error {
		var m models.Message
		if err := json.Unmarshal(v, &m); err != nil {
			return fmt.Errorf("corrupt message record %s: %w", k, err)
		}
		s.msgs[m.ID] = m
		return nil
	}); err != nil {
		return err
	}
	if err := s.kv.Scan(chatKey(""), func(k string, v []byte) error {
		var c models.Chat
		if err := json.Unmarshal(v, &c); err != nil {
			return fmt.Errorf("corrupt chat record %s: %w", k, err)
		}
		refs := c.Messages
		c.Messages = nil
		s.chats[c.ID] = c
		s.graph.ensure(c.ID)
		if ol := s.graph.owner(c.ID); ol != nil {
			ol.refs = refs
		}
		for _, t := range refs {
			s.graph.incRev(t, c.ID)
		}
		return nil
	}); err != nil {
		return err
	}
	if err := s.kv.Scan(userKey(""), func(k string, v []byte) error {
		var u models.User
		if err := json.Unmarshal(v, &u); err != nil {
			return fmt.Errorf("corrupt user record %s: %w", k, err)
		}
		refs := u.Chats
		u.Chats = nil
		s.users[u.ID] = u
		s.graph.ensure(u.ID)
		if ol := s.graph.owner(u.ID); ol != nil {
			ol.refs = refs
		}
		for _, t := range refs {
			s.graph.incRev(t, u.ID)
		}
		if err := s.ident.reserve(u.Name, u.ID); err != nil {
			return fmt.Errorf("duplicate user name in stored data: %w", err)
		}
		return nil
	}); err != nil {
		return err
	}
	logger.Info("store_loaded",
		"users", len(s.users), "chats", len(s.chats), "messages", len(s.msgs))
	return nil
}

// Ready reports whether the store is usable.
func (s *Store) Ready() bool { return s != nil && s.kv != nil }

// Close closes the underlying engine.
func (s *Store) Close() error {
	if s.kv == nil {
		return nil
	}
	err := s.kv.Close()
	s.kv = nil
	return err
}

// CreateUser creates a user with a globally unique name.
func (s *Store) CreateUser(name string) (u models.User, err error) {
	defer func() { observe(opCreateUser, err) }()
	if name == "" {
		return models.User{}, fmt.Errorf("user name required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.ident.allocate(kindUser)
	if err = s.ident.reserve(name, id); err != nil {
		return models.User{}, err
	}
	u = models.User{ID: id, Name: name, CreatedTS: s.clk.Now().UnixNano()}
	b, merr := json.Marshal(u)
	if merr != nil {
		s.ident.release(name)
		return models.User{}, fmt.Errorf("marshal user: %w", merr)
	}
	if err = s.kv.Put(userKey(id), b); err != nil {
		s.ident.release(name)
		return models.User{}, err
	}
	s.users[id] = u
	s.graph.ensure(id)
	return u.Clone(), nil
}

// RenameUser changes a user's name, preserving uniqueness. Renaming a
// user to its current name is a no-op, not a violation.
func (s *Store) RenameUser(id, name string) (u models.User, err error) {
	defer func() { observe(opRenameUser, err) }()
	if name == "" {
		return models.User{}, fmt.Errorf("user name required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if cur.Name == name {
		out := cur.Clone()
		out.Chats = s.graph.linksOf(id)
		return out, nil
	}
	if err = s.ident.reserve(name, id); err != nil {
		return models.User{}, err
	}
	old := cur.Name
	cur.Name = name
	persisted := cur.Clone()
	persisted.Chats = s.graph.linksOf(id)
	b, merr := json.Marshal(persisted)
	if merr != nil {
		s.ident.release(name)
		return models.User{}, fmt.Errorf("marshal user: %w", merr)
	}
	if err = s.kv.Put(userKey(id), b); err != nil {
		s.ident.release(name)
		return models.User{}, err
	}
	s.ident.release(old)
	s.users[id] = cur
	return persisted, nil
}

// GetUser returns a snapshot of the user and its current chat links.
func (s *Store) GetUser(id string) (u models.User, err error) {
	defer func() { observe(opGetUser, err) }()
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, ok := s.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	out := cur.Clone()
	out.Chats = s.graph.linksOf(id)
	return out, nil
}

// GetUserByName resolves a user through the name index.
func (s *Store) GetUserByName(name string) (models.User, error) {
	s.mu.RLock()
	id, ok := s.ident.holder(name)
	s.mu.RUnlock()
	if !ok {
		return models.User{}, fmt.Errorf("user %q: %w", name, ErrNotFound)
	}
	return s.GetUser(id)
}

// ListUsers returns snapshots of all users ordered by name.
func (s *Store) ListUsers() []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.User, 0, len(s.users))
	for id, u := range s.users {
		c := u.Clone()
		c.Chats = s.graph.linksOf(id)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DeleteUser removes a user and releases its name for reuse. The
// user's chat links disappear with it; chats themselves survive.
func (s *Store) DeleteUser(id string) (err error) {
	defer func() { observe(opDeleteUser, err) }()
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err = s.kv.Delete(userKey(id)); err != nil {
		return err
	}
	s.graph.dropOwner(id)
	s.ident.release(u.Name)
	delete(s.users, id)
	return nil
}

// CreateChat creates a chat, optionally seeded with an initial message
// reference list. Every referenced message must exist.
func (s *Store) CreateChat(msgIDs ...string) (c models.Chat, err error) {
	defer func() { observe(opCreateChat, err) }()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, mid := range msgIDs {
		if _, ok := s.msgs[mid]; !ok {
			return models.Chat{}, fmt.Errorf("message %s: %w", mid, ErrDanglingReference)
		}
	}
	c = models.Chat{ID: s.ident.allocate(kindChat), CreatedTS: s.clk.Now().UnixNano()}
	persisted := c
	persisted.Messages = append([]string(nil), msgIDs...)
	b, merr := json.Marshal(persisted)
	if merr != nil {
		return models.Chat{}, fmt.Errorf("marshal chat: %w", merr)
	}
	if err = s.kv.Put(chatKey(c.ID), b); err != nil {
		return models.Chat{}, err
	}
	s.chats[c.ID] = c
	s.graph.ensure(c.ID)
	if ol := s.graph.owner(c.ID); ol != nil {
		ol.refs = append([]string(nil), msgIDs...)
	}
	for _, mid := range msgIDs {
		s.graph.incRev(mid, c.ID)
	}
	return persisted.Clone(), nil
}

// GetChat returns a snapshot of the chat and its message links.
func (s *Store) GetChat(id string) (c models.Chat, err error) {
	defer func() { observe(opGetChat, err) }()
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, ok := s.chats[id]
	if !ok {
		return models.Chat{}, fmt.Errorf("chat %s: %w", id, ErrNotFound)
	}
	out := cur.Clone()
	out.Messages = s.graph.linksOf(id)
	return out, nil
}

// ListChats returns snapshots of all chats ordered by creation time.
func (s *Store) ListChats() []models.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Chat, 0, len(s.chats))
	for id, c := range s.chats {
		cc := c.Clone()
		cc.Messages = s.graph.linksOf(id)
		out = append(out, cc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedTS != out[j].CreatedTS {
			return out[i].CreatedTS < out[j].CreatedTS
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// DeleteChat removes a chat and unlinks it from every user referencing
// it. Messages the chat pointed at are left untouched.
func (s *Store) DeleteChat(id string) (err error) {
	defer func() { observe(opDeleteChat, err) }()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[id]; !ok {
		return fmt.Errorf("chat %s: %w", id, ErrNotFound)
	}
	puts := make(map[string][]byte)
	for _, uid := range s.graph.owners(id) {
		u := s.users[uid]
		u.Chats = withoutAll(s.graph.linksOf(uid), id)
		b, merr := json.Marshal(u)
		if merr != nil {
			return fmt.Errorf("marshal user %s: %w", uid, merr)
		}
		puts[userKey(uid)] = b
	}
	if err = s.kv.Apply(puts, []string{chatKey(id)}); err != nil {
		return err
	}
	s.graph.detachTarget(id)
	s.graph.dropOwner(id)
	delete(s.chats, id)
	return nil
}

// MessagePatch is a partial message update; nil fields are untouched.
// A non-nil TS explicitly overwrites the creation timestamp.
type MessagePatch struct {
	Body    *string
	Role    *string
	Sources *[]string
	TS      *int64
}

// CreateMessage stores a message. The caller's ID is ignored; a zero
// TS defaults to the clock's current time.
func (s *Store) CreateMessage(msg models.Message) (m models.Message, err error) {
	defer func() { observe(opCreateMessage, err) }()
	s.mu.Lock()
	defer s.mu.Unlock()
	m = models.Message{
		ID:   s.ident.allocate(kindMsg),
		Body: msg.Body,
		Role: msg.Role,
		TS:   msg.TS,
	}
	if msg.Sources != nil {
		m.Sources = append([]string(nil), msg.Sources...)
	}
	if m.TS == 0 {
		m.TS = s.clk.Now().UnixNano()
	}
	b, merr := json.Marshal(m)
	if merr != nil {
		return models.Message{}, fmt.Errorf("marshal message: %w", merr)
	}
	if err = s.kv.Put(msgKey(m.ID), b); err != nil {
		return models.Message{}, err
	}
	s.msgs[m.ID] = m
	return m.Clone(), nil
}

// UpdateMessage applies a patch to an existing message.
func (s *Store) UpdateMessage(id string, patch MessagePatch) (m models.Message, err error) {
	defer func() { observe(opUpdateMessage, err) }()
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.msgs[id]
	if !ok {
		return models.Message{}, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	next := cur.Clone()
	if patch.Body != nil {
		next.Body = *patch.Body
	}
	if patch.Role != nil {
		next.Role = *patch.Role
	}
	if patch.Sources != nil {
		next.Sources = append([]string(nil), (*patch.Sources)...)
	}
	if patch.TS != nil {
		next.TS = *patch.TS
	}
	b, merr := json.Marshal(next)
	if merr != nil {
		return models.Message{}, fmt.Errorf("marshal message: %w", merr)
	}
	if err = s.kv.Put(msgKey(id), b); err != nil {
		return models.Message{}, err
	}
	s.msgs[id] = next
	return next.Clone(), nil
}

// GetMessage returns a snapshot of the message.
func (s *Store) GetMessage(id string) (m models.Message, err error) {
	defer func() { observe(opGetMessage, err) }()
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, ok := s.msgs[id]
	if !ok {
		return models.Message{}, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return cur.Clone(), nil
}

// DeleteMessage removes a message and unlinks every occurrence of it
// from every chat referencing it.
func (s *Store) DeleteMessage(id string) (err error) {
	defer func() { observe(opDeleteMessage, err) }()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.msgs[id]; !ok {
		return fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	puts := make(map[string][]byte)
	for _, cid := range s.graph.owners(id) {
		c := s.chats[cid]
		c.Messages = withoutAll(s.graph.linksOf(cid), id)
		b, merr := json.Marshal(c)
		if merr != nil {
			return fmt.Errorf("marshal chat %s: %w", cid, merr)
		}
		puts[chatKey(cid)] = b
	}
	if err = s.kv.Apply(puts, []string{msgKey(id)}); err != nil {
		return err
	}
	s.graph.detachTarget(id)
	delete(s.msgs, id)
	return nil
}

// LinkChatToUser appends one occurrence of chatID to the user's chat
// multiset; duplicates of an already linked chat are allowed.
func (s *Store) LinkChatToUser(userID, chatID string) (err error) {
	defer func() { observe(opLinkChat, err) }()
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if _, ok := s.chats[chatID]; !ok {
		return fmt.Errorf("chat %s: %w", chatID, ErrDanglingReference)
	}
	ol := s.graph.owner(userID)
	ol.mu.Lock()
	defer ol.mu.Unlock()
	next := append(append([]string(nil), ol.refs...), chatID)
	u.Chats = next
	b, merr := json.Marshal(u)
	if merr != nil {
		return fmt.Errorf("marshal user: %w", merr)
	}
	if err = s.kv.Put(userKey(userID), b); err != nil {
		return err
	}
	ol.refs = next
	s.graph.incRev(chatID, userID)
	return nil
}

// UnlinkChatFromUser removes exactly one occurrence of chatID from the
// user's chat multiset. Removing an absent reference is a no-op.
func (s *Store) UnlinkChatFromUser(userID, chatID string) (err error) {
	defer func() { observe(opUnlinkChat, err) }()
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	ol := s.graph.owner(userID)
	ol.mu.Lock()
	defer ol.mu.Unlock()
	next, removed := removeOne(append([]string(nil), ol.refs...), chatID)
	if !removed {
		return nil
	}
	u.Chats = next
	b, merr := json.Marshal(u)
	if merr != nil {
		return fmt.Errorf("marshal user: %w", merr)
	}
	if err = s.kv.Put(userKey(userID), b); err != nil {
		return err
	}
	ol.refs = next
	s.graph.decRev(chatID, userID)
	return nil
}

// LinkMessageToChat appends one occurrence of msgID to the chat's
// message multiset.
func (s *Store) LinkMessageToChat(chatID, msgID string) (err error) {
	defer func() { observe(opLinkMessage, err) }()
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[chatID]
	if !ok {
		return fmt.Errorf("chat %s: %w", chatID, ErrNotFound)
	}
	if _, ok := s.msgs[msgID]; !ok {
		return fmt.Errorf("message %s: %w", msgID, ErrDanglingReference)
	}
	ol := s.graph.owner(chatID)
	ol.mu.Lock()
	defer ol.mu.Unlock()
	next := append(append([]string(nil), ol.refs...), msgID)
	c.Messages = next
	b, merr := json.Marshal(c)
	if merr != nil {
		return fmt.Errorf("marshal chat: %w", merr)
	}
	if err = s.kv.Put(chatKey(chatID), b); err != nil {
		return err
	}
	ol.refs = next
	s.graph.incRev(msgID, chatID)
	return nil
}

// UnlinkMessageFromChat removes exactly one occurrence of msgID from
// the chat's message multiset. Removing an absent reference is a no-op.
func (s *Store) UnlinkMessageFromChat(chatID, msgID string) (err error) {
	defer func() { observe(opUnlinkMessage, err) }()
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[chatID]
	if !ok {
		return fmt.Errorf("chat %s: %w", chatID, ErrNotFound)
	}
	ol := s.graph.owner(chatID)
	ol.mu.Lock()
	defer ol.mu.Unlock()
	next, removed := removeOne(append([]string(nil), ol.refs...), msgID)
	if !removed {
		return nil
	}
	c.Messages = next
	b, merr := json.Marshal(c)
	if merr != nil {
		return fmt.Errorf("marshal chat: %w", merr)
	}
	if err = s.kv.Put(chatKey(chatID), b); err != nil {
		return err
	}
	ol.refs = next
	s.graph.decRev(msgID, chatID)
	return nil
}

// UserChats returns the user's current chat reference multiset.
func (s *Store) UserChats(id string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.users[id]; !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return s.graph.linksOf(id), nil
}

// ChatMessages returns the chat's current message reference multiset.
func (s *Store) ChatMessages(id string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.chats[id]; !ok {
		return nil, fmt.Errorf("chat %s: %w", id, ErrNotFound)
	}
	return s.graph.linksOf(id), nil
}

// MessagesBefore returns ids of messages with TS strictly below cutoff,
// oldest first, capped at limit (0 means no cap). Used by the retention
// sweeper.
func (s *Store) MessagesBefore(cutoffNS int64, limit int) []string {
	s.mu.RLock()
	type rec struct {
		id string
		ts int64
	}
	old := make([]rec, 0)
	for id, m := range s.msgs {
		if m.TS < cutoffNS {
			old = append(old, rec{id, m.TS})
		}
	}
	s.mu.RUnlock()
	sort.Slice(old, func(i, j int) bool { return old[i].ts < old[j].ts })
	if limit > 0 && len(old) > limit {
		old = old[:limit]
	}
	out := make([]string, len(old))
	for i, r := range old {
		out[i] = r.id
	}
	return out
}
