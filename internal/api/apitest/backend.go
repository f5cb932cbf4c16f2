// Package apitest serves the dashboard backend contract from memory for tests.
package apitest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Dicklesworthstone/opsdash/internal/model"
)

// Backend is an in-memory backend. Fields may be changed between requests
// through the setters; handlers read them under the lock.
type Backend struct {
	mu sync.Mutex

	Credentials map[string]string
	Stats       model.SystemStats
	Users       []model.User
	Processes   []model.Process
	Logs        []model.LogEntry
	LastLogins  []model.LastLogin
	Uptime      string

	// Fail maps a request path to a forced status code and JSON body.
	Fail map[string]Failure

	hits    map[string]int
	logouts []string
}

// Failure is a canned error response. A nil Body sends no JSON at all.
type Failure struct {
	Status int
	Body   gin.H
}

func New() *Backend {
	return &Backend{
		Credentials: map[string]string{"user1": "pass1"},
		Uptime:      "01:02:03",
		Fail:        map[string]Failure{},
		hits:        map[string]int{},
	}
}

// Start serves the backend until the test ends.
func (b *Backend) Start(t testing.TB) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(b.Engine())
	t.Cleanup(srv.Close)
	return srv
}

func (b *Backend) Engine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(b.count, b.failures)

	api := r.Group("/api")
	api.POST("/login", b.login)
	api.POST("/logout", b.logout)
	api.GET("/system_stats", func(c *gin.Context) {
		b.mu.Lock()
		defer b.mu.Unlock()
		c.JSON(http.StatusOK, b.Stats)
	})
	api.GET("/current_users", func(c *gin.Context) {
		b.mu.Lock()
		defer b.mu.Unlock()
		c.JSON(http.StatusOK, nonNil(b.Users))
	})
	api.GET("/processes", func(c *gin.Context) {
		b.mu.Lock()
		defer b.mu.Unlock()
		c.JSON(http.StatusOK, nonNil(b.Processes))
	})
	api.GET("/system_logs", func(c *gin.Context) {
		b.mu.Lock()
		defer b.mu.Unlock()
		c.JSON(http.StatusOK, nonNil(b.Logs))
	})
	api.GET("/last_logged_users", func(c *gin.Context) {
		b.mu.Lock()
		defer b.mu.Unlock()
		c.JSON(http.StatusOK, nonNil(b.LastLogins))
	})
	api.GET("/system_uptime", func(c *gin.Context) {
		b.mu.Lock()
		defer b.mu.Unlock()
		c.JSON(http.StatusOK, gin.H{"uptime": b.Uptime})
	})
	return r
}

func (b *Backend) count(c *gin.Context) {
	b.mu.Lock()
	b.hits[c.Request.URL.Path]++
	b.mu.Unlock()
	c.Next()
}

func (b *Backend) failures(c *gin.Context) {
	b.mu.Lock()
	f, ok := b.Fail[c.Request.URL.Path]
	b.mu.Unlock()
	if !ok {
		c.Next()
		return
	}
	if f.Body == nil {
		c.AbortWithStatus(f.Status)
		return
	}
	c.AbortWithStatusJSON(f.Status, f.Body)
}

func (b *Backend) login(c *gin.Context) {
	var creds model.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	b.mu.Lock()
	want, ok := b.Credentials[creds.Username]
	b.mu.Unlock()
	if !ok || want != creds.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "failure", "message": "Invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Login successful"})
}

func (b *Backend) logout(c *gin.Context) {
	var body struct {
		Username string `json:"username"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	b.mu.Lock()
	b.logouts = append(b.logouts, body.Username)
	b.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Logout successful"})
}

// SetProcesses replaces the process list served by /api/processes.
func (b *Backend) SetProcesses(p []model.Process) {
	b.mu.Lock()
	b.Processes = p
	b.mu.Unlock()
}

// SetFailure forces path to answer with f; a zero Status clears it.
func (b *Backend) SetFailure(path string, f Failure) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if f.Status == 0 {
		delete(b.Fail, path)
		return
	}
	b.Fail[path] = f
}

// Hits reports how many requests reached path, failed ones included.
func (b *Backend) Hits(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[path]
}

// Logouts returns the usernames posted to /api/logout, in order.
func (b *Backend) Logouts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.logouts...)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
