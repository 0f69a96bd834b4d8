package state

import (
	"testing"
	"time"

	"github.com/agentdesk/chatlink/internal/model"
)

func msg(id, container, content string, at time.Time) model.Message {
	return model.Message{
		ID:          id,
		ContainerID: container,
		Content:     content,
		ContentType: "text",
		SenderID:    "u1",
		CreatedAt:   at,
	}
}

func TestStore_UpsertIdempotent(t *testing.T) {
	s := NewStore(nil)
	at := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	m := msg("m1", "r1", "hello", at)
	s.UpsertMessage(m)
	s.UpsertMessage(m)

	if got := s.MessageCount(); got != 1 {
		t.Fatalf("MessageCount = %d, want 1", got)
	}

	timeline := s.Messages("r1")
	if len(timeline) != 1 {
		t.Fatalf("timeline length = %d, want 1", len(timeline))
	}
	if timeline[0].Content != "hello" {
		t.Errorf("Content = %q, want %q", timeline[0].Content, "hello")
	}
}

func TestStore_EditPropagation(t *testing.T) {
	s := NewStore(nil)
	at := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	s.UpsertMessage(msg("m1", "r1", "original", at))

	edited := msg("m1", "r1", "edited", at)
	edited.Edited = true
	s.UpsertMessage(edited)

	timeline := s.Messages("r1")
	if len(timeline) != 1 {
		t.Fatalf("timeline length = %d, want 1", len(timeline))
	}
	if timeline[0].Content != "edited" {
		t.Errorf("Content = %q, want %q", timeline[0].Content, "edited")
	}
	if !timeline[0].Edited {
		t.Error("Edited = false, want true")
	}
}

func TestStore_OrderingAcrossBatchAndPush(t *testing.T) {
	s := NewStore(nil)
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	// Push arrives before the history batch that contains earlier messages.
	s.UpsertMessage(msg("m3", "r1", "third", base.Add(2*time.Second)))
	s.ApplyHistory("r1", []model.Message{
		msg("m1", "r1", "first", base),
		msg("m2", "r1", "second", base.Add(time.Second)),
	})
	// History replaced the subset; the push re-arrives afterwards.
	s.UpsertMessage(msg("m3", "r1", "third", base.Add(2*time.Second)))
	s.UpsertMessage(msg("m0", "r1", "zeroth", base.Add(-time.Second)))

	timeline := s.Messages("r1")
	want := []string{"m0", "m1", "m2", "m3"}
	if len(timeline) != len(want) {
		t.Fatalf("timeline length = %d, want %d", len(timeline), len(want))
	}
	for i, id := range want {
		if timeline[i].ID != id {
			t.Errorf("timeline[%d].ID = %s, want %s", i, timeline[i].ID, id)
		}
	}
	for i := 1; i < len(timeline); i++ {
		if timeline[i].CreatedAt.Before(timeline[i-1].CreatedAt) {
			t.Errorf("timeline not ascending at index %d", i)
		}
	}
}

func TestStore_OrderingTiesPreserveArrival(t *testing.T) {
	s := NewStore(nil)
	at := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	s.UpsertMessage(msg("a", "r1", "first arrival", at))
	s.UpsertMessage(msg("b", "r1", "second arrival", at))
	s.UpsertMessage(msg("c", "r1", "third arrival", at))

	timeline := s.Messages("r1")
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if timeline[i].ID != id {
			t.Errorf("timeline[%d].ID = %s, want %s (ties must keep arrival order)", i, timeline[i].ID, id)
		}
	}
}

func TestStore_HistoryReplacesOnlyOneContainer(t *testing.T) {
	s := NewStore(nil)
	at := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	s.ApplyHistory("r1", []model.Message{msg("m1", "r1", "one", at)})
	s.ApplyHistory("r2", []model.Message{msg("m2", "r2", "two", at)})

	// Refetching r1 replaces its subset but leaves r2 merged.
	s.ApplyHistory("r1", []model.Message{
		msg("m1", "r1", "one", at),
		msg("m3", "r1", "three", at.Add(time.Second)),
	})

	if got := len(s.Messages("r1")); got != 2 {
		t.Errorf("r1 length = %d, want 2", got)
	}
	if got := len(s.Messages("r2")); got != 1 {
		t.Errorf("r2 length = %d, want 1", got)
	}
	if got := s.MessageCount(); got != 3 {
		t.Errorf("MessageCount = %d, want 3", got)
	}
}

func TestStore_RosterSnapshotReplacesWholesale(t *testing.T) {
	s := NewStore(nil)

	s.ApplyRoster([]model.Container{
		{ID: "r1", DisplayName: "General", MemberCount: 3},
		{ID: "r2", DisplayName: "Support", MemberCount: 5},
	})
	s.ApplyRoster([]model.Container{
		{ID: "r3", DisplayName: "Escalations", MemberCount: 1},
	})

	containers := s.Containers()
	if len(containers) != 1 {
		t.Fatalf("containers length = %d, want 1", len(containers))
	}
	if containers[0].ID != "r3" {
		t.Errorf("ID = %s, want r3", containers[0].ID)
	}
}

func TestStore_PresenceUniqueness(t *testing.T) {
	s := NewStore(nil)

	s.SetOnline(model.PresenceEntry{UserID: "u1", DisplayName: "Ana"})
	s.SetOnline(model.PresenceEntry{UserID: "u1", DisplayName: "Ana Again"})
	s.SetOnline(model.PresenceEntry{UserID: "u2", DisplayName: "Bo"})

	presence := s.Presence()
	if len(presence) != 2 {
		t.Fatalf("presence length = %d, want 2", len(presence))
	}
	// Duplicate delta is a no-op: the first entry wins.
	if presence[0].DisplayName != "Ana" {
		t.Errorf("DisplayName = %q, want %q", presence[0].DisplayName, "Ana")
	}
}

func TestStore_OfflineAbsentIsNoop(t *testing.T) {
	s := NewStore(nil)

	s.SetOffline("ghost")

	if got := len(s.Presence()); got != 0 {
		t.Errorf("presence length = %d, want 0", got)
	}

	s.SetOnline(model.PresenceEntry{UserID: "u1"})
	s.SetOffline("u1")
	s.SetOffline("u1")

	if s.Online("u1") {
		t.Error("u1 still online after offline delta")
	}
}

func TestStore_PresenceSnapshotReplaces(t *testing.T) {
	s := NewStore(nil)

	s.SetOnline(model.PresenceEntry{UserID: "u1"})
	s.ApplyPresenceSnapshot([]model.PresenceEntry{
		{UserID: "u2"},
		{UserID: "u3"},
		{UserID: "u2"}, // duplicate in snapshot payload
	})

	presence := s.Presence()
	if len(presence) != 2 {
		t.Fatalf("presence length = %d, want 2", len(presence))
	}
	if s.Online("u1") {
		t.Error("u1 survived a wholesale snapshot replace")
	}
}

func TestStore_ResetClearsAll(t *testing.T) {
	s := NewStore(nil)
	at := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	s.UpsertMessage(msg("m1", "r1", "hello", at))
	s.ApplyRoster([]model.Container{{ID: "r1"}})
	s.SetOnline(model.PresenceEntry{UserID: "u1"})

	s.Reset()

	if got := s.MessageCount(); got != 0 {
		t.Errorf("MessageCount = %d, want 0", got)
	}
	if got := len(s.Containers()); got != 0 {
		t.Errorf("containers length = %d, want 0", got)
	}
	if got := len(s.Presence()); got != 0 {
		t.Errorf("presence length = %d, want 0", got)
	}
}

func TestStore_UpsertWithoutIDDropped(t *testing.T) {
	s := NewStore(nil)

	s.UpsertMessage(model.Message{ContainerID: "r1", Content: "no id"})
	s.UpsertMessage(model.Message{ID: "m1", Content: "no container"})

	if got := s.MessageCount(); got != 0 {
		t.Errorf("MessageCount = %d, want 0", got)
	}
}
