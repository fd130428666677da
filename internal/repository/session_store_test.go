package repository

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/taxdesk/taxdesk/internal/domain"
)

func TestFileSessionStore(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	newSession := func(token string, identity domain.Identity, last time.Time) *domain.Session {
		return &domain.Session{Token: token, Identity: identity, CreatedAt: now, LastActivity: last}
	}

	t.Run("create get update delete", func(t *testing.T) {
		store := NewFileSessionStore(filepath.Join(t.TempDir(), "sessions.json"))
		sess := newSession("tok-1", domain.MasterIdentity(), now)
		if err := store.Create(sess); err != nil {
			t.Fatalf("create: %v", err)
		}

		got, err := store.Get("tok-1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Token != "tok-1" || !got.Identity.IsMaster() {
			t.Fatalf("unexpected session %+v", got)
		}

		got.LastActivity = now.Add(time.Hour)
		if err := store.Update(got); err != nil {
			t.Fatalf("update: %v", err)
		}
		updated, _ := store.Get("tok-1")
		if !updated.LastActivity.Equal(now.Add(time.Hour)) {
			t.Fatalf("update not persisted: %v", updated.LastActivity)
		}

		if err := store.Delete("tok-1"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := store.Get("tok-1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		// Deleting an absent token is not an error.
		if err := store.Delete("tok-1"); err != nil {
			t.Fatalf("repeat delete: %v", err)
		}
	})

	t.Run("update of an unknown token fails", func(t *testing.T) {
		store := NewFileSessionStore(filepath.Join(t.TempDir(), "sessions.json"))
		err := store.Update(newSession("ghost", domain.MasterIdentity(), now))
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("token is the map key, never a serialized field", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sessions.json")
		store := NewFileSessionStore(path)
		if err := store.Create(newSession("secret-token", domain.ClientIdentity("c1"), now)); err != nil {
			t.Fatalf("create: %v", err)
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var state map[string]map[string]any
		if err := json.Unmarshal(raw, &state); err != nil {
			t.Fatalf("parse: %v", err)
		}
		record, ok := state["secret-token"]
		if !ok {
			t.Fatal("expected the token as the map key")
		}
		if record["user_id"] != "c1" {
			t.Fatalf("expected user_id %q, got %v", "c1", record["user_id"])
		}
		if strings.Count(string(raw), "secret-token") != 1 {
			t.Fatal("token must appear only as the key")
		}

		// And a reloading store restores the token from the key.
		got, err := NewFileSessionStore(path).Get("secret-token")
		if err != nil {
			t.Fatalf("reload get: %v", err)
		}
		if got.Token != "secret-token" {
			t.Fatalf("token not restored from key: %q", got.Token)
		}
	})

	t.Run("identity shapes round-trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sessions.json")
		store := NewFileSessionStore(path)
		pro := domain.ProfessionalIdentity(domain.Professional{Role: "preparer", PTIN: "P12345678"})
		for _, sess := range []*domain.Session{
			newSession("m", domain.MasterIdentity(), now),
			newSession("c", domain.ClientIdentity("client-1"), now),
			newSession("p", pro, now),
		} {
			if err := store.Create(sess); err != nil {
				t.Fatalf("create %s: %v", sess.Token, err)
			}
		}

		reloaded := NewFileSessionStore(path)
		m, _ := reloaded.Get("m")
		if !m.Identity.IsMaster() {
			t.Fatalf("master identity lost: %+v", m.Identity)
		}
		c, _ := reloaded.Get("c")
		if !c.Identity.IsClient() || c.Identity.ClientID != "client-1" {
			t.Fatalf("client identity lost: %+v", c.Identity)
		}
		p, _ := reloaded.Get("p")
		if !p.Identity.IsProfessional() || p.Identity.Professional.PTIN != "P12345678" {
			t.Fatalf("professional identity lost: %+v", p.Identity)
		}
	})

	t.Run("delete inactive since", func(t *testing.T) {
		store := NewFileSessionStore(filepath.Join(t.TempDir(), "sessions.json"))
		store.Create(newSession("live", domain.MasterIdentity(), now))
		store.Create(newSession("old1", domain.MasterIdentity(), now.Add(-48*time.Hour)))
		store.Create(newSession("old2", domain.MasterIdentity(), now.Add(-72*time.Hour)))

		removed, err := store.DeleteInactiveSince(now.Add(-24 * time.Hour))
		if err != nil {
			t.Fatalf("sweep: %v", err)
		}
		if removed != 2 {
			t.Fatalf("expected 2 removed, got %d", removed)
		}
		sessions, _ := store.List()
		if len(sessions) != 1 || sessions[0].Token != "live" {
			t.Fatalf("expected only the live session to remain")
		}
	})

	t.Run("file is owner-only", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sessions.json")
		store := NewFileSessionStore(path)
		if err := store.Create(newSession("tok", domain.MasterIdentity(), now)); err != nil {
			t.Fatalf("create: %v", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Fatalf("expected 0600, got %o", perm)
		}
	})
}
