package access

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sort"
	"sync"

	"github.com/krfajar/telegram-whatsapp-checker-bot/pkg/log"
)

// userFile is the durable layout: three arrays, names as [id, name] pairs.
type userFile struct {
	AllowedUsers []int64     `json:"allowedUsers"`
	PendingUsers []int64     `json:"pendingUsers"`
	UserNames    []nameEntry `json:"userNames"`
}

type nameEntry struct {
	ID   int64
	Name string
}

func (e nameEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{e.ID, e.Name})
}

func (e *nameEntry) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return errors.New("user name entry must be an [id, name] pair")
	}
	if err := json.Unmarshal(raw[0], &e.ID); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &e.Name)
}

// Store holds the approval state of every sender the bot has seen. Mutations
// persist the whole structure back to disk before returning; a write failure
// is logged and the in-memory state keeps serving.
type Store struct {
	path    string
	adminID int64

	mu      sync.RWMutex
	allowed map[int64]struct{}
	pending map[int64]struct{}
	names   map[int64]string
}

// Open loads the user file, falling back to a fresh state holding only the
// admin when the file is absent or unreadable.
func Open(path string, adminID int64) *Store {
	s := &Store{
		path:    path,
		adminID: adminID,
		allowed: map[int64]struct{}{adminID: {}},
		pending: map[int64]struct{}{},
		names:   map[int64]string{},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Print(nil).WithError(err).Error("Failed to read user file, starting fresh")
		}
		return s
	}

	var doc userFile
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Print(nil).WithError(err).Error("Failed to parse user file, starting fresh")
		return s
	}

	for _, id := range doc.AllowedUsers {
		s.allowed[id] = struct{}{}
	}
	for _, id := range doc.PendingUsers {
		s.pending[id] = struct{}{}
	}
	for _, entry := range doc.UserNames {
		s.names[entry.ID] = entry.Name
	}
	s.enforceInvariantsLocked()
	return s
}

// enforceInvariantsLocked keeps the admin allowed and the pending set
// disjoint from the allowed set. Callers must hold s.mu.
func (s *Store) enforceInvariantsLocked() {
	s.allowed[s.adminID] = struct{}{}
	for id := range s.pending {
		if _, ok := s.allowed[id]; ok {
			delete(s.pending, id)
		}
	}
}

func (s *Store) persistLocked() {
	doc := userFile{
		AllowedUsers: sortedIDs(s.allowed),
		PendingUsers: sortedIDs(s.pending),
		UserNames:    make([]nameEntry, 0, len(s.names)),
	}
	ids := make([]int64, 0, len(s.names))
	for id := range s.names {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		doc.UserNames = append(doc.UserNames, nameEntry{ID: id, Name: s.names[id]})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		log.Print(nil).WithError(err).Error("Failed to encode user file")
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		log.Print(nil).WithError(err).Error("Failed to write user file")
	}
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Store) AdminID() int64 {
	return s.adminID
}

func (s *Store) IsAllowed(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.allowed[id]
	return ok
}

func (s *Store) IsPending(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pending[id]
	return ok
}

// RememberName stores a sanitized display name for an id the first time that
// id is observed.
func (s *Store) RememberName(id int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.names[id]; ok {
		return
	}
	s.names[id] = SanitizeName(name)
	s.persistLocked()
}

// Name returns the stored display name or a placeholder derived from the id.
func (s *Store) Name(id int64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name, ok := s.names[id]; ok && name != "" {
		return name
	}
	return placeholderName(id)
}

// MarkPending queues an unapproved id and reports whether it was newly
// queued. Exactly one admin notification should follow a true result.
func (s *Store) MarkPending(id int64, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.allowed[id]; ok {
		return false
	}
	if _, ok := s.pending[id]; ok {
		return false
	}
	s.pending[id] = struct{}{}
	if _, ok := s.names[id]; !ok {
		s.names[id] = SanitizeName(name)
	}
	s.persistLocked()
	return true
}

// Approve moves an id from pending to allowed. Approving an already-allowed
// id is a no-op aside from the persist.
func (s *Store) Approve(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowed[id] = struct{}{}
	delete(s.pending, id)
	s.persistLocked()
}

// Deny removes an id from pending and from allowed. The admin can never be
// denied.
func (s *Store) Deny(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
	if id != s.adminID {
		delete(s.allowed, id)
	}
	s.persistLocked()
}

// Toggle flips allowed membership and reports the resulting state. Granting
// also clears any pending entry; the admin cannot be revoked.
func (s *Store) Toggle(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.allowed[id]; ok && id != s.adminID {
		delete(s.allowed, id)
		s.persistLocked()
		return false
	}
	s.allowed[id] = struct{}{}
	delete(s.pending, id)
	s.persistLocked()
	return true
}

// Allowed returns the allowed ids in ascending order, excluding the admin.
func (s *Store) Allowed() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.allowed))
	for id := range s.allowed {
		if id != s.adminID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Pending returns up to limit pending ids in ascending order. A limit of
// zero or less returns all of them.
func (s *Store) Pending(limit int) []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := sortedIDs(s.pending)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}

// Counts reports the allowed count (excluding the admin) and pending count.
func (s *Store) Counts() (allowed int, pending int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	allowed = len(s.allowed)
	if _, ok := s.allowed[s.adminID]; ok {
		allowed--
	}
	return allowed, len(s.pending)
}
