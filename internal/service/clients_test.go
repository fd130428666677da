package service

import (
	"errors"
	"os"
	"testing"
	"time"
)

func TestCreateClient(t *testing.T) {
	t.Run("requires a management session", func(t *testing.T) {
		fx := newAuthServiceFixture(t)
		fx.seedMaster("Secur3!Pass")

		_, err := fx.auth.CreateClient("bogus", CreateClientParams{
			Name: "John Smith", Email: "john@example.com", Password: "Cl1ent!Pass",
		})
		if !errors.Is(err, ErrSessionRequired) {
			t.Fatalf("expected ErrSessionRequired, got %v", err)
		}
	})

	t.Run("success creates an isolated data directory", func(t *testing.T) {
		fx := newAuthServiceFixture(t)
		fx.seedMaster("Secur3!Pass")
		token := fx.masterSession(t)

		client, err := fx.auth.CreateClient(token, CreateClientParams{
			Name: "John Smith", Email: "John@Example.com", SSNLast4: "1234", Password: "Cl1ent!Pass",
		})
		if err != nil {
			t.Fatalf("create client: %v", err)
		}
		if client.ID == "" {
			t.Fatal("expected a generated client id")
		}
		if client.Email != "john@example.com" {
			t.Fatalf("expected normalized email, got %q", client.Email)
		}
		if !client.IsActive {
			t.Fatal("new clients start active")
		}
		info, err := os.Stat(client.DataDirectory)
		if err != nil {
			t.Fatalf("stat data dir: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o700 {
			t.Fatalf("expected 0700 data dir, got %o", perm)
		}
	})

	t.Run("duplicate email refused case-insensitively", func(t *testing.T) {
		fx := newAuthServiceFixture(t)
		fx.seedClient(t, "john@example.com", "Cl1ent!Pass")
		token := fx.masterSession(t)

		_, err := fx.auth.CreateClient(token, CreateClientParams{
			Name: "Other John", Email: "JOHN@EXAMPLE.COM", Password: "Oth3r!Pass",
		})
		if !errors.Is(err, ErrEmailExists) {
			t.Fatalf("expected ErrEmailExists, got %v", err)
		}
	})

	t.Run("weak client password refused", func(t *testing.T) {
		fx := newAuthServiceFixture(t)
		fx.seedMaster("Secur3!Pass")
		token := fx.masterSession(t)

		_, err := fx.auth.CreateClient(token, CreateClientParams{
			Name: "John Smith", Email: "john@example.com", Password: "weak",
		})
		var policyErr *PasswordPolicyError
		if !errors.As(err, &policyErr) {
			t.Fatalf("expected PasswordPolicyError, got %v", err)
		}
	})
}

func TestAuthenticateClient(t *testing.T) {
	t.Run("unknown email", func(t *testing.T) {
		fx := newAuthServiceFixture(t)

		_, err := fx.auth.AuthenticateClient("nobody@example.com", "Cl1ent!Pass", "")
		if !errors.Is(err, ErrClientNotFound) {
			t.Fatalf("expected ErrClientNotFound, got %v", err)
		}
	})

	t.Run("inactive account refused before password work", func(t *testing.T) {
		fx := newAuthServiceFixture(t)
		client := fx.seedClient(t, "john@example.com", "Cl1ent!Pass")
		token := fx.masterSession(t)
		if err := fx.auth.DeactivateClient(token, client.ID); err != nil {
			t.Fatalf("deactivate: %v", err)
		}

		_, err := fx.auth.AuthenticateClient("john@example.com", "Cl1ent!Pass", "")
		if !errors.Is(err, ErrClientInactive) {
			t.Fatalf("expected ErrClientInactive, got %v", err)
		}
	})

	t.Run("success issues a client-scoped session", func(t *testing.T) {
		fx := newAuthServiceFixture(t)
		client := fx.seedClient(t, "john@example.com", "Cl1ent!Pass")

		token, err := fx.auth.AuthenticateClient("john@example.com", "Cl1ent!Pass", "")
		if err != nil {
			t.Fatalf("client login: %v", err)
		}
		identity, err := fx.auth.ValidateSession(token)
		if err != nil {
			t.Fatalf("validate: %v", err)
		}
		if identity == nil || !identity.IsClient() || identity.ClientID != client.ID {
			t.Fatalf("expected client identity for %s, got %+v", client.ID, identity)
		}
		if fx.creds.clients[client.ID].LastLogin == nil {
			t.Fatal("expected client last login recorded")
		}
	})

	t.Run("lockout is per client account", func(t *testing.T) {
		fx := newAuthServiceFixture(t)
		a := fx.seedClient(t, "a@example.com", "Cl1entA!Pass")
		token := fx.masterSession(t)
		if _, err := fx.auth.CreateClient(token, CreateClientParams{
			Name: "Client B", Email: "b@example.com", Password: "Cl1entB!Pass",
		}); err != nil {
			t.Fatalf("create second client: %v", err)
		}

		var lastErr error
		for i := 0; i < fx.cfg.MaxLoginAttempts; i++ {
			_, lastErr = fx.auth.AuthenticateClient("a@example.com", "Wr0ng!Pass", "")
		}
		var locked *AccountLockedError
		if !errors.As(lastErr, &locked) {
			t.Fatalf("expected AccountLockedError, got %v", lastErr)
		}
		if !fx.creds.clients[a.ID].Locked(time.Now().UTC()) {
			t.Fatal("expected client A locked in the store")
		}

		// Client B and the master are untouched.
		if _, err := fx.auth.AuthenticateClient("b@example.com", "Cl1entB!Pass", ""); err != nil {
			t.Fatalf("client B login should succeed: %v", err)
		}
		if _, err := fx.auth.AuthenticateMasterPassword("Secur3!Pass"); err != nil {
			t.Fatalf("master login should succeed: %v", err)
		}
	})
}

func TestUpdateClient(t *testing.T) {
	t.Run("email change re-checks uniqueness", func(t *testing.T) {
		fx := newAuthServiceFixture(t)
		a := fx.seedClient(t, "a@example.com", "Cl1entA!Pass")
		token := fx.masterSession(t)
		if _, err := fx.auth.CreateClient(token, CreateClientParams{
			Name: "Client B", Email: "b@example.com", Password: "Cl1entB!Pass",
		}); err != nil {
			t.Fatalf("create second client: %v", err)
		}

		taken := "b@example.com"
		err := fx.auth.UpdateClient(token, a.ID, ClientUpdate{Email: &taken})
		if !errors.Is(err, ErrEmailExists) {
			t.Fatalf("expected ErrEmailExists, got %v", err)
		}
	})

	t.Run("partial update leaves other fields alone", func(t *testing.T) {
		fx := newAuthServiceFixture(t)
		client := fx.seedClient(t, "john@example.com", "Cl1ent!Pass")
		token := fx.masterSession(t)

		name := "John Q. Smith"
		if err := fx.auth.UpdateClient(token, client.ID, ClientUpdate{Name: &name}); err != nil {
			t.Fatalf("update: %v", err)
		}
		got := fx.creds.clients[client.ID]
		if got.Name != name {
			t.Fatalf("expected name updated, got %q", got.Name)
		}
		if got.Email != "john@example.com" {
			t.Fatalf("email must be unchanged, got %q", got.Email)
		}
	})
}

func TestRemoveClient(t *testing.T) {
	fx := newAuthServiceFixture(t)
	client := fx.seedClient(t, "john@example.com", "Cl1ent!Pass")
	token := fx.masterSession(t)

	if err := fx.auth.RemoveClient(token, client.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := fx.auth.RemoveClient(token, client.ID); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound on second remove, got %v", err)
	}
	if _, err := fx.auth.AuthenticateClient("john@example.com", "Cl1ent!Pass", ""); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("removed client must not authenticate, got %v", err)
	}
}

func TestResetClientPassword(t *testing.T) {
	fx := newAuthServiceFixture(t)
	client := fx.seedClient(t, "john@example.com", "Cl1ent!Pass")
	token := fx.masterSession(t)

	// Lock the account first; a reset clears the lockout too.
	for i := 0; i < fx.cfg.MaxLoginAttempts; i++ {
		fx.auth.AuthenticateClient("john@example.com", "Wr0ng!Pass", "")
	}

	if err := fx.auth.ResetClientPassword(token, client.ID, "Fr3sh!Pass"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := fx.auth.AuthenticateClient("john@example.com", "Cl1ent!Pass", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must be invalid, got %v", err)
	}
	if _, err := fx.auth.AuthenticateClient("john@example.com", "Fr3sh!Pass", ""); err != nil {
		t.Fatalf("new password should authenticate: %v", err)
	}
}

// The first-run walkthrough: master setup, client creation, independent
// client login, and a password change cutting off the old password.
func TestFirstRunWalkthrough(t *testing.T) {
	fx := newAuthServiceFixture(t)

	if set, _ := fx.auth.IsMasterPasswordSet(); set {
		t.Fatal("fresh install must report no master password")
	}
	if err := fx.auth.CreateMasterPassword("Secur3!Pass"); err != nil {
		t.Fatalf("master setup: %v", err)
	}

	masterToken, err := fx.auth.AuthenticateMasterPassword("Secur3!Pass")
	if err != nil {
		t.Fatalf("master login: %v", err)
	}

	client, err := fx.auth.CreateClient(masterToken, CreateClientParams{
		Name: "John Smith", Email: "john@example.com", SSNLast4: "1234", Password: "J0hn!Secret",
	})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	clientToken, err := fx.auth.AuthenticateClient("john@example.com", "J0hn!Secret", "")
	if err != nil {
		t.Fatalf("client login: %v", err)
	}
	identity, err := fx.auth.ValidateSession(clientToken)
	if err != nil || identity == nil || identity.ClientID != client.ID {
		t.Fatalf("expected client session, got identity=%+v err=%v", identity, err)
	}

	if err := fx.auth.ResetClientPassword(masterToken, client.ID, "N3wJ0hn!Pass"); err != nil {
		t.Fatalf("reset client password: %v", err)
	}
	if _, err := fx.auth.AuthenticateClient("john@example.com", "J0hn!Secret", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old client password must stop working, got %v", err)
	}
	if _, err := fx.auth.AuthenticateClient("john@example.com", "N3wJ0hn!Pass", ""); err != nil {
		t.Fatalf("new client password: %v", err)
	}

	// Master and client credentials stay independent namespaces.
	if _, err := fx.auth.AuthenticateMasterPassword("N3wJ0hn!Pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("client password must not open the master account, got %v", err)
	}
}
