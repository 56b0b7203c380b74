package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"rerolab/models"
	"rerolab/utils"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap/zaptest"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func signedToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"iat": now.Unix(),
		"exp": exp.Unix(),
	})
	s, err := tok.SignedString([]byte("lab-test-key"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestHashSecret(t *testing.T) {
	a := HashSecret("alice@lab.io", "hunter2")
	if len(a) != 64 {
		t.Fatalf("hash length %d", len(a))
	}
	if a != HashSecret(" Alice@Lab.io ", "hunter2") {
		t.Error("identity normalisation changed the hash")
	}
	if a == HashSecret("bob@lab.io", "hunter2") {
		t.Error("different identities share a hash")
	}
	if a == HashSecret("alice@lab.io", "hunter3") {
		t.Error("different secrets share a hash")
	}
	if strings.Contains(a, "hunter2") {
		t.Error("hash leaks the secret")
	}
}

func newAuthServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	handle := func(w http.ResponseWriter, r *http.Request) {
		var req models.AuthRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Password != HashSecret(req.Email, "hunter2") {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Invalid credentials"}`))
			return
		}
		json.NewEncoder(w).Encode(models.AuthResponse{Success: true, AccessToken: token, TokenType: "bearer"})
	}
	mux.HandleFunc("/auth/login", handle)
	mux.HandleFunc("/auth/register", handle)
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Invalid or expired token"}`))
			return
		}
		json.NewEncoder(w).Encode(models.ProbeResponse{Email: "alice@lab.io"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPAuthClient_Login(t *testing.T) {
	exp := now.Add(time.Hour)
	token := signedToken(t, "alice@lab.io", exp)
	srv := newAuthServer(t, token)
	client := NewHTTPAuthClient(srv.URL + "/")

	sess, err := client.Login(context.Background(), "alice@lab.io", "hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if sess.Identity != "alice@lab.io" || sess.Credential != token || !sess.ExpiresAt.Equal(exp.Truncate(time.Second)) {
		t.Errorf("session = %+v", sess)
	}

	_, err = client.Login(context.Background(), "alice@lab.io", "wrong")
	var ae *AuthError
	if !errors.As(err, &ae) || ae.Status != http.StatusUnauthorized || ae.Message != "Invalid credentials" {
		t.Errorf("bad password = %v", err)
	}

	if _, err := client.Register(context.Background(), "alice@lab.io", "hunter2"); err != nil {
		t.Errorf("register: %v", err)
	}
}

func TestHTTPAuthClient_Probe(t *testing.T) {
	token := signedToken(t, "alice@lab.io", now.Add(time.Hour))
	client := NewHTTPAuthClient(newAuthServer(t, token).URL)

	id, err := client.Probe(context.Background(), token)
	if err != nil || id != "alice@lab.io" {
		t.Errorf("probe = %q, %v", id, err)
	}
	if _, err := client.Probe(context.Background(), "stale"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("probe with bad credential = %v", err)
	}
}

type fakeAuth struct {
	loginSession models.Session
	loginErr     error
	probeErr     error
	logins       int
	probes       int
}

func (f *fakeAuth) Login(context.Context, string, string) (models.Session, error) {
	f.logins++
	return f.loginSession, f.loginErr
}

func (f *fakeAuth) Register(ctx context.Context, e, s string) (models.Session, error) {
	return f.Login(ctx, e, s)
}

func (f *fakeAuth) Probe(context.Context, string) (string, error) {
	f.probes++
	return "alice@lab.io", f.probeErr
}

func newService(t *testing.T, auth AuthService, store CredentialStore) *DefaultSessionService {
	clock := utils.NewFakeClock(now)
	svc := NewSessionService(auth, store, NewHolder(clock), zaptest.NewLogger(t))
	svc.Clock = clock
	return svc
}

func TestBootstrap(t *testing.T) {
	stored := models.Session{Identity: "alice@lab.io", Credential: "old", ExpiresAt: now.Add(time.Hour)}
	fresh := models.Session{Identity: "alice@lab.io", Credential: "new", ExpiresAt: now.Add(2 * time.Hour)}
	ctx := context.Background()

	t.Run("stored session accepted", func(t *testing.T) {
		store := NewMemoryCredentialStore()
		store.Save(ctx, stored)
		auth := &fakeAuth{loginSession: fresh}
		svc := newService(t, auth, store)

		got, err := svc.Bootstrap(ctx, "alice@lab.io", "hunter2")
		if err != nil || got.Credential != "old" || auth.logins != 0 {
			t.Errorf("got %+v, %v after %d logins", got, err, auth.logins)
		}
		if cur, ok := svc.Current(); !ok || cur.Credential != "old" {
			t.Errorf("current = %+v", cur)
		}
	})

	t.Run("stored session rejected falls back to login", func(t *testing.T) {
		store := NewMemoryCredentialStore()
		store.Save(ctx, stored)
		auth := &fakeAuth{loginSession: fresh, probeErr: &AuthError{Status: 401, Err: ErrUnauthorized}}
		svc := newService(t, auth, store)

		got, err := svc.Bootstrap(ctx, "alice@lab.io", "hunter2")
		if err != nil || got.Credential != "new" {
			t.Fatalf("got %+v, %v", got, err)
		}
		if saved, _ := store.Load(ctx); saved.Credential != "new" {
			t.Errorf("store holds %+v", saved)
		}
	})

	t.Run("expired stored session is not probed", func(t *testing.T) {
		store := NewMemoryCredentialStore()
		expired := stored
		expired.ExpiresAt = now.Add(-time.Minute)
		store.Save(ctx, expired)
		auth := &fakeAuth{loginSession: fresh}
		svc := newService(t, auth, store)

		if _, err := svc.Bootstrap(ctx, "", ""); !errors.Is(err, ErrNotAuthenticated) {
			t.Errorf("err = %v", err)
		}
		if auth.probes != 0 {
			t.Error("expired credential was probed")
		}
		if _, err := store.Load(ctx); !errors.Is(err, ErrNoStoredSession) {
			t.Error("expired session kept")
		}
	})

	t.Run("backend unreachable keeps stored session", func(t *testing.T) {
		store := NewMemoryCredentialStore()
		store.Save(ctx, stored)
		auth := &fakeAuth{probeErr: errors.New("dial tcp: connection refused")}
		svc := newService(t, auth, store)

		if got, err := svc.Bootstrap(ctx, "", ""); err != nil || got.Credential != "old" {
			t.Errorf("got %+v, %v", got, err)
		}
	})

	t.Run("nothing configured", func(t *testing.T) {
		svc := newService(t, &fakeAuth{}, NewMemoryCredentialStore())
		if _, err := svc.Bootstrap(ctx, "", ""); !errors.Is(err, ErrNotAuthenticated) {
			t.Errorf("err = %v", err)
		}
		if _, ok := svc.Current(); ok {
			t.Error("unauthenticated client has a session")
		}
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCredentialStore()
	svc := newService(t, &fakeAuth{loginSession: models.Session{Identity: "a@lab.io", Credential: "c"}}, store)
	if _, err := svc.Login(ctx, "a@lab.io", "x"); err != nil {
		t.Fatal(err)
	}
	if err := svc.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := svc.Current(); ok {
		t.Error("session survived logout")
	}
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoStoredSession) {
		t.Error("stored session survived logout")
	}
}

// Runs against a real server when REDIS_ADDR is set.
func TestRedisCredentialStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client, err := utils.NewRedisClient(addr, os.Getenv("REDIS_PASSWORD"), 15)
	if err != nil {
		t.Skip(err)
	}
	defer client.Close()

	ctx := context.Background()
	store := NewRedisCredentialStore(client, "test-"+t.Name())
	store.Key = "local passphrase"
	sess := models.Session{Identity: "alice@lab.io", Credential: "tok", ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second)}
	if err := store.Save(ctx, sess); err != nil {
		t.Fatal(err)
	}
	got, err := store.Load(ctx)
	if err != nil || got.Credential != "tok" || !got.ExpiresAt.Equal(sess.ExpiresAt) {
		t.Errorf("load = %+v, %v", got, err)
	}
	if err := store.Delete(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoStoredSession) {
		t.Errorf("after delete = %v", err)
	}
}

func TestSealRoundTrip(t *testing.T) {
	sealed, err := seal("k1", []byte(`{"identity":"alice@lab.io"}`))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(sealed, []byte("alice")) {
		t.Error("plaintext visible in sealed value")
	}
	plain, err := unseal("k1", sealed)
	if err != nil || string(plain) != `{"identity":"alice@lab.io"}` {
		t.Errorf("unseal = %q, %v", plain, err)
	}
	if _, err := unseal("k2", sealed); !errors.Is(err, ErrSealedSession) {
		t.Errorf("wrong key = %v, want ErrSealedSession", err)
	}
	if _, err := unseal("k1", []byte("short")); !errors.Is(err, ErrSealedSession) {
		t.Errorf("truncated = %v, want ErrSealedSession", err)
	}
}
