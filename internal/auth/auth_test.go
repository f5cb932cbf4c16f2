package auth

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Dicklesworthstone/opsdash/internal/api"
	"github.com/Dicklesworthstone/opsdash/internal/api/apitest"
	"github.com/Dicklesworthstone/opsdash/internal/model"
	"github.com/Dicklesworthstone/opsdash/internal/session"
)

func setup(t *testing.T) (*apitest.Backend, *api.Client, *session.Store) {
	t.Helper()
	b := apitest.New()
	srv := b.Start(t)
	return b, api.NewClient(srv.URL, api.Options{}), session.NewStore(t.TempDir())
}

type failingStore struct {
	session.Session
	saveErr, clearErr error
	cleared           bool
}

func (f *failingStore) Load() (session.Session, bool, error) { return f.Session, f.Username != "", nil }
func (f *failingStore) Save(session.Session) error        { return f.saveErr }
func (f *failingStore) Clear() error {
	f.cleared = true
	return f.clearErr
}

func TestSubmitAccepted(t *testing.T) {
	_, client, store := setup(t)
	gate := NewGate(client, store)

	out := gate.Submit(context.Background(), model.Credentials{Username: "user1", Password: "pass1"})
	if out.Kind != NavigateDashboard {
		t.Fatalf("Submit() = %+v, want NavigateDashboard", out)
	}
	if out.Message != "" {
		t.Errorf("Submit() message = %q, want empty", out.Message)
	}
	sess, ok, err := store.Load()
	if err != nil || !ok {
		t.Fatalf("session not written: ok %v, err %v", ok, err)
	}
	if sess.Username != "user1" || !sess.Authenticated {
		t.Errorf("session = %+v", sess)
	}
}

func TestSubmitRejected(t *testing.T) {
	tests := []struct {
		name    string
		failure *apitest.Failure
		want    string
	}{
		{"server message", nil, "Invalid credentials"},
		{"custom message", &apitest.Failure{Status: 403, Body: gin.H{"message": "Account locked"}}, "Account locked"},
		{"empty message", &apitest.Failure{Status: 401, Body: gin.H{"message": ""}}, DefaultRejectMessage},
		{"error field only", &apitest.Failure{Status: 500, Body: gin.H{"error": "boom"}}, DefaultRejectMessage},
		{"no body", &apitest.Failure{Status: 502}, DefaultRejectMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, client, store := setup(t)
			if tt.failure != nil {
				b.SetFailure("/api/login", *tt.failure)
			}
			gate := NewGate(client, store)

			out := gate.Submit(context.Background(), model.Credentials{Username: "user1", Password: "wrong"})
			if out.Kind != DisplayError {
				t.Fatalf("Submit() kind = %v, want DisplayError", out.Kind)
			}
			if out.Message != tt.want {
				t.Errorf("Submit() message = %q, want %q", out.Message, tt.want)
			}
			if _, ok, _ := store.Load(); ok {
				t.Error("rejected login wrote a session")
			}
		})
	}
}

func TestSubmitTransportFailure(t *testing.T) {
	b := apitest.New()
	srv := b.Start(t)
	client := api.NewClient(srv.URL, api.Options{})
	srv.Close()
	store := session.NewStore(t.TempDir())

	out := NewGate(client, store).Submit(context.Background(), model.Credentials{Username: "user1", Password: "pass1"})
	if out.Kind != DisplayError || out.Message != ConnectFailureMessage {
		t.Errorf("Submit() = %+v, want connect failure", out)
	}
	if _, ok, _ := store.Load(); ok {
		t.Error("transport failure wrote a session")
	}
}

func TestSubmitUnparsableSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>captive portal</html>"))
	}))
	t.Cleanup(srv.Close)
	client := api.NewClient(srv.URL, api.Options{})
	store := session.NewStore(t.TempDir())

	out := NewGate(client, store).Submit(context.Background(), model.Credentials{Username: "user1", Password: "pass1"})
	if out.Kind != DisplayError || out.Message != ConnectFailureMessage {
		t.Errorf("Submit() = %+v, want connect failure", out)
	}
	if _, ok, _ := store.Load(); ok {
		t.Error("unparsable login response wrote a session")
	}
}

func TestSubmitSessionWriteFailure(t *testing.T) {
	_, client, _ := setup(t)
	store := &failingStore{saveErr: errors.New("disk full")}

	out := NewGate(client, store).Submit(context.Background(), model.Credentials{Username: "user1", Password: "pass1"})
	if out.Kind != DisplayError {
		t.Errorf("Submit() = %+v, want DisplayError when the session cannot be written", out)
	}
}

func TestLogout(t *testing.T) {
	b, client, store := setup(t)
	if err := store.Save(session.Session{Authenticated: true, Username: "user1"}); err != nil {
		t.Fatal(err)
	}

	if err := NewLogoutHandler(client, store).Logout(context.Background()); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if got := b.Logouts(); len(got) != 1 || got[0] != "user1" {
		t.Errorf("backend saw logouts %v, want [user1]", got)
	}
	if _, ok, _ := store.Load(); ok {
		t.Error("session survived logout")
	}
}

func TestLogoutClearsEvenWhenBackendFails(t *testing.T) {
	b, client, store := setup(t)
	b.SetFailure("/api/logout", apitest.Failure{Status: 400, Body: gin.H{"message": "User not logged in"}})
	if err := store.Save(session.Session{Authenticated: true, Username: "user1"}); err != nil {
		t.Fatal(err)
	}

	if err := NewLogoutHandler(client, store).Logout(context.Background()); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, ok, _ := store.Load(); ok {
		t.Error("session survived logout after backend failure")
	}
}

func TestLogoutReportsClearFailure(t *testing.T) {
	_, client, _ := setup(t)
	store := &failingStore{Session: session.Session{Authenticated: true, Username: "user1"}, clearErr: errors.New("read-only")}

	if err := NewLogoutHandler(client, store).Logout(context.Background()); err == nil {
		t.Error("Logout() error = nil, want clear failure")
	}
	if !store.cleared {
		t.Error("Clear() was not attempted")
	}
}

func TestPromptRetriesUntilAccepted(t *testing.T) {
	_, client, store := setup(t)
	in := strings.NewReader("user1\nwrong\nuser1\npass1\n")
	var out bytes.Buffer

	if err := NewPrompt(NewGate(client, store), in, &out).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "Error: Invalid credentials") {
		t.Errorf("output %q does not show the rejection", out.String())
	}
	if strings.Count(out.String(), "Username: ") != 2 {
		t.Errorf("output %q should prompt twice", out.String())
	}
	if _, ok, _ := store.Load(); !ok {
		t.Error("session not written after accepted login")
	}
}

func TestPromptAbortsOnEOF(t *testing.T) {
	_, client, store := setup(t)
	var out bytes.Buffer

	err := NewPrompt(NewGate(client, store), strings.NewReader("user1\n"), &out).Run(context.Background())
	if !errors.Is(err, ErrAborted) {
		t.Errorf("Run() error = %v, want ErrAborted", err)
	}
}
