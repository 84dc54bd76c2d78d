package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/mr1hm/school-finance/internal/broadcast"
	"github.com/mr1hm/school-finance/internal/config"
	"github.com/mr1hm/school-finance/internal/metrics"
	"github.com/mr1hm/school-finance/internal/models"
	"github.com/mr1hm/school-finance/internal/repository"
	"github.com/mr1hm/school-finance/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const testPassword = "secret123"

func init() {
	gin.SetMode(gin.TestMode)
}

// recordingAuditor keeps entries in memory so tests can inspect them synchronously.
type recordingAuditor struct {
	mu      sync.Mutex
	entries []models.SystemLog
}

func (a *recordingAuditor) Record(ctx context.Context, entry *models.SystemLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, *entry)
}

func (a *recordingAuditor) find(action string) (models.SystemLog, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.entries {
		if e.Action == action {
			return e, true
		}
	}
	return models.SystemLog{}, false
}

type testEnv struct {
	t        *testing.T
	db       *repository.DB
	clock    *clockwork.FakeClock
	audit    *recordingAuditor
	payments *broadcast.Broadcaster[models.PaymentEvent]
	metrics  *metrics.Finance
	handler  *Handler
	router   *gin.Engine
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := repository.Open(context.Background(), repository.Options{Driver: repository.DriverSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := clockwork.NewFakeClockAt(time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC))
	payments := broadcast.New[models.PaymentEvent](broadcast.DefaultBuffer)
	t.Cleanup(payments.Close)

	env := &testEnv{
		t:        t,
		db:       db,
		clock:    clock,
		audit:    &recordingAuditor{},
		payments: payments,
		metrics:  metrics.NewFinance(prometheus.NewRegistry()),
	}
	h, err := NewHandler(Deps{
		Store:    db,
		Sessions: session.NewManager(session.Options{Secret: "test-secret-0123456789-abcdefghij", MaxAge: 24 * time.Hour}, clock),
		Audit:    env.audit,
		Payments: payments,
		Metrics:  env.metrics,
		Clock:    clock,
		Settings: Settings{
			School:         config.SchoolConfig{Name: "Test Academy", Address: "P.O. Box 1", Phone: "+254 700 000 000", Currency: "KSh"},
			ItemsPerPage:   2,
			LoginRateLimit: 3,
		},
	})
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}
	env.handler = h
	env.router = h.Router(RouterOptions{})
	return env
}

func (e *testEnv) addUser(username string, role models.Role) *models.User {
	e.t.Helper()
	u := &models.User{Username: username, FullName: strings.ToUpper(username[:1]) + username[1:], Role: role}
	if err := u.SetPassword(testPassword); err != nil {
		e.t.Fatalf("SetPassword failed: %v", err)
	}
	if err := e.db.CreateUser(context.Background(), u); err != nil {
		e.t.Fatalf("CreateUser failed: %v", err)
	}
	return u
}

func (e *testEnv) addStudent(name, grade string, balance models.Money) *models.Student {
	e.t.Helper()
	st := &models.Student{FullName: name, Grade: grade, GuardianContact: "0711000000", Balance: balance}
	if err := e.db.CreateStudent(context.Background(), st); err != nil {
		e.t.Fatalf("CreateStudent failed: %v", err)
	}
	return st
}

func (e *testEnv) addFee(grade string, term models.Term, feeType string, amount models.Money) *models.FeeStructure {
	e.t.Helper()
	f := &models.FeeStructure{Grade: grade, Term: term, FeeType: feeType, Amount: amount, AcademicYear: "2026"}
	if err := e.db.CreateFee(context.Background(), f); err != nil {
		e.t.Fatalf("CreateFee failed: %v", err)
	}
	return f
}

// client replays the cookies the server sets, like a browser would.
type client struct {
	env     *testEnv
	cookies map[string]*http.Cookie
	headers map[string]string
}

func (e *testEnv) client() *client {
	return &client{env: e, cookies: map[string]*http.Cookie{}, headers: map[string]string{}}
}

// loggedIn returns a client with a session for a new user with role.
func (e *testEnv) loggedIn(username string, role models.Role) *client {
	e.t.Helper()
	e.addUser(username, role)
	c := e.client()
	w := c.login(username, testPassword)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/dashboard" {
		e.t.Fatalf("login failed: %d %s", w.Code, w.Header().Get("Location"))
	}
	return c
}

func (c *client) xhr() *client {
	out := &client{env: c.env, cookies: c.cookies, headers: map[string]string{"X-Requested-With": "XMLHttpRequest"}}
	return out
}

func (c *client) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	c.env.router.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return w
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(http.MethodGet, path, nil)
}

func (c *client) post(path string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	return c.do(http.MethodPost, path, form)
}

func (c *client) login(username, password string) *httptest.ResponseRecorder {
	return c.post("/auth/login", url.Values{"username": {username}, "password": {password}})
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response %q: %v", w.Body.String(), err)
	}
}

func assertFlash(t *testing.T, body, category, text string) {
	t.Helper()
	if !strings.Contains(body, `class="alert alert-`+category+`"`) {
		t.Errorf("expected an alert-%s flash in page", category)
	}
	if !strings.Contains(body, text) {
		t.Errorf("expected flash %q in page", text)
	}
}

func TestHealth(t *testing.T) {
	env := setupTestEnv(t)
	w := env.client().get("/health")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var body map[string]string
	decodeJSON(t, w, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestIndex_Redirects(t *testing.T) {
	env := setupTestEnv(t)

	w := env.client().get("/")
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/auth/login" {
		t.Errorf("anonymous: expected redirect to login, got %d %s", w.Code, w.Header().Get("Location"))
	}

	c := env.loggedIn("admin", models.RoleAdmin)
	w = c.get("/")
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/dashboard" {
		t.Errorf("logged in: expected redirect to dashboard, got %d %s", w.Code, w.Header().Get("Location"))
	}
}

func TestRequireAuth_RedirectsWithNext(t *testing.T) {
	env := setupTestEnv(t)
	c := env.client()

	w := c.get("/students?grade=5")
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	want := "/auth/login?next=" + url.QueryEscape("/students?grade=5")
	if loc := w.Header().Get("Location"); loc != want {
		t.Errorf("expected Location %q, got %q", want, loc)
	}

	w = c.get(w.Header().Get("Location"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected login page, got %d", w.Code)
	}
	assertFlash(t, w.Body.String(), "info", "Please log in to access this page.")
	if !strings.Contains(w.Body.String(), `<button type="button" class="close"`) {
		t.Error("expected a close button on the flash message")
	}

	// popped once
	w = c.get("/auth/login")
	if strings.Contains(w.Body.String(), "Please log in to access this page.") {
		t.Error("flash message shown twice")
	}
}

func TestRequireAuth_JSON(t *testing.T) {
	env := setupTestEnv(t)
	w := env.client().get("/api/dashboard/stats")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	var body map[string]any
	decodeJSON(t, w, &body)
	if body["success"] != false {
		t.Errorf("expected success false, got %v", body["success"])
	}
}

func TestLogin_Success(t *testing.T) {
	env := setupTestEnv(t)
	env.addUser("admin", models.RoleAdmin)
	c := env.client()

	w := c.post("/auth/login?next=/fees", url.Values{"username": {"admin"}, "password": {testPassword}})
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/fees" {
		t.Fatalf("expected redirect to /fees, got %d %s", w.Code, w.Header().Get("Location"))
	}

	entry, ok := env.audit.find("login")
	if !ok {
		t.Fatal("expected a login audit entry")
	}
	if entry.Details != "User admin logged in" || entry.UserID == nil {
		t.Errorf("unexpected audit entry %+v", entry)
	}
	if got := testutil.ToFloat64(env.metrics.LoginAttempts.WithLabelValues("success")); got != 1 {
		t.Errorf("expected 1 successful login, got %v", got)
	}

	w = c.get("/dashboard")
	if w.Code != http.StatusOK {
		t.Fatalf("expected dashboard, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Test Academy") {
		t.Error("expected school name in layout")
	}

	w = c.get("/auth/login")
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/dashboard" {
		t.Errorf("logged in user should be sent to the dashboard, got %d", w.Code)
	}
}

func TestLogin_RejectsUnsafeNext(t *testing.T) {
	env := setupTestEnv(t)
	env.addUser("admin", models.RoleAdmin)

	w := env.client().post("/auth/login?next="+url.QueryEscape("//evil.example.com/"), url.Values{"username": {"admin"}, "password": {testPassword}})
	if loc := w.Header().Get("Location"); loc != "/dashboard" {
		t.Errorf("expected redirect to /dashboard, got %q", loc)
	}
}

func TestLogin_InvalidPassword(t *testing.T) {
	env := setupTestEnv(t)
	env.addUser("admin", models.RoleAdmin)

	w := env.client().login("admin", "wrong-password")
	if w.Code != http.StatusOK {
		t.Fatalf("expected login page, got %d", w.Code)
	}
	assertFlash(t, w.Body.String(), "error", "Invalid username or password")
	if got := testutil.ToFloat64(env.metrics.LoginAttempts.WithLabelValues("failed")); got != 1 {
		t.Errorf("expected 1 failed login, got %v", got)
	}

	w = env.client().login("nobody", testPassword)
	assertFlash(t, w.Body.String(), "error", "Invalid username or password")
}

func TestLogin_Deactivated(t *testing.T) {
	env := setupTestEnv(t)
	u := env.addUser("clerk", models.RoleAccountant)
	if err := env.db.SetUserActive(context.Background(), u.ID, false); err != nil {
		t.Fatalf("SetUserActive failed: %v", err)
	}
	c := env.client()

	w := c.login("clerk", testPassword)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/auth/login" {
		t.Fatalf("expected redirect to login, got %d %s", w.Code, w.Header().Get("Location"))
	}
	w = c.get("/auth/login")
	assertFlash(t, w.Body.String(), "error", "Your account has been deactivated. Please contact administrator.")
}

func TestLogin_RateLimited(t *testing.T) {
	env := setupTestEnv(t)
	c := env.client()

	for i := 0; i < 3; i++ {
		if w := c.login("nobody", "x"); w.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i+1, w.Code)
		}
	}
	w := c.login("nobody", "x")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}

	env.clock.Advance(time.Minute)
	if w := c.login("nobody", "x"); w.Code != http.StatusOK {
		t.Errorf("expected limiter to refill after a minute, got %d", w.Code)
	}
}

func TestLogout(t *testing.T) {
	env := setupTestEnv(t)
	c := env.loggedIn("admin", models.RoleAdmin)

	w := c.get("/auth/logout")
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/auth/login" {
		t.Fatalf("expected redirect to login, got %d %s", w.Code, w.Header().Get("Location"))
	}
	if entry, ok := env.audit.find("logout"); !ok || entry.Details != "User admin logged out" {
		t.Errorf("expected logout audit entry, got %+v", entry)
	}

	w = c.get("/auth/login")
	assertFlash(t, w.Body.String(), "info", "You have been logged out successfully.")

	w = c.get("/dashboard")
	if w.Code != http.StatusFound {
		t.Errorf("expected dashboard to require login again, got %d", w.Code)
	}
}

func TestSession_Expires(t *testing.T) {
	env := setupTestEnv(t)
	c := env.loggedIn("admin", models.RoleAdmin)

	env.clock.Advance(25 * time.Hour)
	if w := c.get("/dashboard"); w.Code != http.StatusFound {
		t.Errorf("expected expired session to redirect, got %d", w.Code)
	}
}

func TestSession_SlidesWithActivity(t *testing.T) {
	env := setupTestEnv(t)
	c := env.loggedIn("admin", models.RoleAdmin)

	for i := 0; i < 5; i++ {
		env.clock.Advance(6 * time.Hour)
		if w := c.get("/dashboard"); w.Code != http.StatusOK {
			t.Fatalf("expected active session to stay logged in after %dh, got %d", (i+1)*6, w.Code)
		}
	}

	env.clock.Advance(24 * time.Hour)
	if w := c.get("/dashboard"); w.Code != http.StatusFound {
		t.Errorf("expected idle session to redirect, got %d", w.Code)
	}
}

func TestChangePassword(t *testing.T) {
	env := setupTestEnv(t)
	c := env.loggedIn("admin", models.RoleAdmin)

	tests := []struct {
		name    string
		form    url.Values
		message string
	}{
		{"wrong current", url.Values{"current_password": {"nope"}, "new_password": {"newpass1"}, "confirm_password": {"newpass1"}}, "Current password is incorrect"},
		{"mismatch", url.Values{"current_password": {testPassword}, "new_password": {"newpass1"}, "confirm_password": {"newpass2"}}, "New passwords do not match"},
		{"too short", url.Values{"current_password": {testPassword}, "new_password": {"abc"}, "confirm_password": {"abc"}}, "Password must be at least 6 characters long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := c.post("/auth/change-password", tt.form)
			if w.Header().Get("Location") != "/auth/change-password" {
				t.Fatalf("expected redirect back to the form, got %d %s", w.Code, w.Header().Get("Location"))
			}
			w = c.get("/auth/change-password")
			assertFlash(t, w.Body.String(), "error", tt.message)
		})
	}

	w := c.post("/auth/change-password", url.Values{"current_password": {testPassword}, "new_password": {"newpass1"}, "confirm_password": {"newpass1"}})
	if w.Header().Get("Location") != "/dashboard" {
		t.Fatalf("expected redirect to dashboard, got %d %s", w.Code, w.Header().Get("Location"))
	}
	w = c.get("/dashboard")
	assertFlash(t, w.Body.String(), "success", "Password changed successfully")

	if w := env.client().login("admin", "newpass1"); w.Header().Get("Location") != "/dashboard" {
		t.Error("expected the new password to work")
	}
}

func TestNotFound(t *testing.T) {
	env := setupTestEnv(t)

	w := env.client().get("/does-not-exist")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Page not found") {
		t.Error("expected the 404 page")
	}

	c := env.loggedIn("admin", models.RoleAdmin)
	w = c.get("/students/api/999")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var body map[string]any
	decodeJSON(t, w, &body)
	if body["success"] != false {
		t.Errorf("expected JSON error body, got %v", body)
	}
}

func TestStaticAssets(t *testing.T) {
	env := setupTestEnv(t)

	w := env.client().get("/static/css/app.css")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	for _, rule := range []string{".flash-messages", "transition: opacity 0.3s", ".no-print", "print-color-adjust: exact", ".pagination"} {
		if !strings.Contains(w.Body.String(), rule) {
			t.Errorf("expected %q in stylesheet", rule)
		}
	}
}

// The wasm bundle is built with the go.mod toolchain, so the glue script must
// come from the same release.
func TestStaticAssets_WasmGlue(t *testing.T) {
	env := setupTestEnv(t)

	w := env.client().get("/static/js/wasm_exec.js")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "O_DIRECTORY") {
		t.Error("wasm_exec.js predates the toolchain pinned in go.mod")
	}

	w = env.client().get("/static/js/loader.js")
	if !strings.Contains(w.Body.String(), "/static/wasm/webui.wasm") {
		t.Error("expected loader to fetch the webui bundle")
	}
}

func TestRequestID(t *testing.T) {
	env := setupTestEnv(t)

	w := env.client().get("/health")
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("expected a generated request id")
	}

	c := env.client()
	c.headers[requestIDHeader] = "abc-123"
	w = c.get("/health")
	if got := w.Header().Get(requestIDHeader); got != "abc-123" {
		t.Errorf("expected request id to be echoed, got %q", got)
	}
}

func TestSafeNext(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/students", "/students"},
		{"/students?grade=5", "/students?grade=5"},
		{"//evil.example.com", ""},
		{"/\\evil.example.com", ""},
		{"https://evil.example.com/", ""},
		{"students", ""},
	}
	for _, tt := range tests {
		if got := safeNext(tt.in); got != tt.want {
			t.Errorf("safeNext(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
