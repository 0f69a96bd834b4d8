package state

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/agentdesk/chatlink/internal/model"
)

// Store holds the three derived collections reconciled from the event
// stream: per-container message timelines, the container roster, and the
// presence set.
//
// Mutations arrive only from the session's dispatch goroutine; reads may
// come from any goroutine, so accessors copy under a read lock.
type Store struct {
	mu     sync.RWMutex
	logger *slog.Logger

	// Per-container timelines, each kept ascending by CreatedAt.
	timelines map[string][]model.Message

	// Message id → container id, for upsert-by-id.
	index map[string]string

	// Container roster in server order.
	containers []model.Container

	// Presence set keyed by user id.
	presence map[string]model.PresenceEntry
}

// NewStore creates an empty store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger:    logger,
		timelines: make(map[string][]model.Message),
		index:     make(map[string]string),
		presence:  make(map[string]model.PresenceEntry),
	}
}

// ApplyRoster replaces the container collection wholesale. Snapshot events
// are authoritative; wholesale replace avoids drift.
func (s *Store) ApplyRoster(containers []model.Container) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.containers = append([]model.Container(nil), containers...)
}

// ApplyHistory replaces the message subset belonging to one container.
// Other containers' subsets are untouched, so distinct batches merge.
func (s *Store) ApplyHistory(containerID string, msgs []model.Message) {
	if containerID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, old := range s.timelines[containerID] {
		delete(s.index, old.ID)
	}

	timeline := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		m.ContainerID = containerID
		timeline = append(timeline, m)
		s.index[m.ID] = containerID
	}
	sortTimeline(timeline)
	s.timelines[containerID] = timeline
}

// UpsertMessage applies a single pushed message. An existing id is
// overwritten in place (edit/delete propagation); a new id appends. Either
// way the container's timeline is re-sorted ascending by CreatedAt, stable,
// so push delivery and batch fetch converge regardless of arrival order.
func (s *Store) UpsertMessage(m model.Message) {
	if m.ID == "" || m.ContainerID == "" {
		s.logger.Warn("dropping message without id or container",
			"id", m.ID,
			"container_id", m.ContainerID,
		)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.index[m.ID]; ok {
		if prev != m.ContainerID {
			// A message never legitimately moves containers; keep its id
			// unique by removing the stale copy first.
			s.removeLocked(prev, m.ID)
		} else {
			timeline := s.timelines[prev]
			for i := range timeline {
				if timeline[i].ID == m.ID {
					timeline[i] = m
					sortTimeline(timeline)
					return
				}
			}
		}
	}

	timeline := append(s.timelines[m.ContainerID], m)
	sortTimeline(timeline)
	s.timelines[m.ContainerID] = timeline
	s.index[m.ID] = m.ContainerID
}

// removeLocked deletes one message from a container's timeline.
func (s *Store) removeLocked(containerID, id string) {
	timeline := s.timelines[containerID]
	for i := range timeline {
		if timeline[i].ID == id {
			s.timelines[containerID] = append(timeline[:i], timeline[i+1:]...)
			break
		}
	}
	delete(s.index, id)
}

// ApplyPresenceSnapshot replaces the presence set wholesale.
func (s *Store) ApplyPresenceSnapshot(users []model.PresenceEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.presence = make(map[string]model.PresenceEntry, len(users))
	for _, u := range lo.UniqBy(users, func(u model.PresenceEntry) string { return u.UserID }) {
		s.presence[u.UserID] = u
	}
}

// SetOnline inserts a presence entry. Idempotent: a duplicate delta for a
// user already present is a no-op.
func (s *Store) SetOnline(entry model.PresenceEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.presence[entry.UserID]; ok {
		return
	}
	s.presence[entry.UserID] = entry
}

// SetOffline removes a presence entry. A delta for an absent user is a no-op.
func (s *Store) SetOffline(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.presence, userID)
}

// Reset clears all three collections (explicit sign-out). Reconnection does
// NOT reset: collections merge across connection instances.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.timelines = make(map[string][]model.Message)
	s.index = make(map[string]string)
	s.containers = nil
	s.presence = make(map[string]model.PresenceEntry)
}

// Messages returns a copy of one container's timeline, ascending by
// CreatedAt.
func (s *Store) Messages(containerID string) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]model.Message(nil), s.timelines[containerID]...)
}

// MessageCount returns the total number of messages across all containers.
func (s *Store) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.index)
}

// Containers returns a copy of the roster in server order.
func (s *Store) Containers() []model.Container {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]model.Container(nil), s.containers...)
}

// Presence returns the presence set sorted by user id.
func (s *Store) Presence() []model.PresenceEntry {
	s.mu.RLock()
	entries := lo.Values(s.presence)
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].UserID < entries[j].UserID
	})
	return entries
}

// Online reports whether a user is in the presence set.
func (s *Store) Online(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.presence[userID]
	return ok
}

// sortTimeline sorts ascending by CreatedAt. Stable: ties keep arrival
// order.
func sortTimeline(timeline []model.Message) {
	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].CreatedAt.Before(timeline[j].CreatedAt)
	})
}
