package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"

	"github.com/keywarden/keywarden/internal/authn"
	"github.com/keywarden/keywarden/internal/enroll"
	"github.com/keywarden/keywarden/internal/ratelimit"
	"github.com/keywarden/keywarden/internal/store"
	"github.com/keywarden/keywarden/internal/validate"
)

type testServer struct {
	engine *gin.Engine
	slept  []time.Duration
	now    time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fileStore, errStore := store.NewFileStore(t.TempDir())
	if errStore != nil {
		t.Fatalf("NewFileStore: %v", errStore)
	}

	ts := &testServer{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	limiter := ratelimit.NewManager(func() ratelimit.SettingsConfig {
		return ratelimit.SettingsConfig{Attempts: 100, Window: time.Minute}
	}, func() time.Time { return ts.now }, nil)

	enrollSvc := enroll.NewService(fileStore, "keywarden", nil)
	authSvc := authn.NewService(fileStore, limiter, time.Second,
		func() time.Time { return ts.now },
		func(d time.Duration) { ts.slept = append(ts.slept, d) },
	)

	engine := gin.New()
	RegisterRoutes(engine, enrollSvc, authSvc, nil)
	ts.engine = engine
	return ts
}

func (ts *testServer) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) setup(t *testing.T, email string) string {
	t.Helper()
	rec := ts.post(t, "/setup", `{"email":"`+email+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("setup: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	return rec.Body.String()
}

type registerBody struct {
	URI    string `json:"uri"`
	Secret string `json:"secret"`
	QR     string `json:"qr"`
}

func (ts *testServer) register(t *testing.T, uid, key string) registerBody {
	t.Helper()
	rec := ts.post(t, "/register", `{"uid":"`+uid+`","key":"`+key+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("register: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var body registerBody
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &body); errDecode != nil {
		t.Fatalf("register: decode body: %v", errDecode)
	}
	return body
}

func TestSetupRegisterAuthenticateFlow(t *testing.T) {
	ts := newTestServer(t)

	uid := ts.setup(t, "a@b.com")
	if !validate.UID(uid) {
		t.Fatalf("expected valid uid in body, got %q", uid)
	}

	reg := ts.register(t, uid, "deadbeef")
	if !strings.HasPrefix(reg.URI, "otpauth://totp/") {
		t.Fatalf("expected provisioning URI, got %q", reg.URI)
	}
	if reg.Secret == "" {
		t.Fatalf("expected plaintext secret")
	}
	if !strings.HasPrefix(reg.QR, "data:image/png;base64,") {
		t.Fatalf("expected QR data URI")
	}

	code, errCode := totp.GenerateCode(reg.Secret, ts.now)
	if errCode != nil {
		t.Fatalf("GenerateCode: %v", errCode)
	}
	rec := ts.post(t, "/authenticate", `{"uid":"`+uid+`","code":"`+code+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticate: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "deadbeef" {
		t.Fatalf("expected body %q, got %q", "deadbeef", rec.Body.String())
	}
}

func TestRegisterTwiceIsForbidden(t *testing.T) {
	ts := newTestServer(t)

	uid := ts.setup(t, "a@b.com")
	ts.register(t, uid, "deadbeef")

	rec := ts.post(t, "/register", `{"uid":"`+uid+`","key":"cafebabe"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestRegisterUnknownUIDIsNotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.post(t, "/register", `{"uid":"00000000000000000000000000000000","key":"ab"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestRegisterValidationErrors(t *testing.T) {
	ts := newTestServer(t)
	uid := ts.setup(t, "a@b.com")

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"uid":`},
		{"bad uid", `{"uid":"nope","key":"ab"}`},
		{"empty key", `{"uid":"` + uid + `","key":""}`},
		{"oversize key", `{"uid":"` + uid + `","key":"` + strings.Repeat("a", 130) + `"}`},
	}
	for _, tc := range cases {
		rec := ts.post(t, "/register", tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d (%s)", tc.name, rec.Code, rec.Body.String())
		}
	}
}

func TestSetupRequiresEmail(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.post(t, "/setup", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}
	rec = ts.post(t, "/setup", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", rec.Code)
	}
}

func TestAuthenticateWrongCodeIsForbiddenAfterDelay(t *testing.T) {
	ts := newTestServer(t)

	uid := ts.setup(t, "a@b.com")
	ts.register(t, uid, "deadbeef")

	rec := ts.post(t, "/authenticate", `{"uid":"`+uid+`","code":"000000"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(ts.slept) != 1 || ts.slept[0] != time.Second {
		t.Fatalf("expected one full-delay suspension, got %v", ts.slept)
	}
}

func TestAuthenticateMalformedUIDIsBadRequest(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.post(t, "/authenticate", `{"uid":"nope","code":"123456"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestNonPOSTMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/setup", "/register", "/authenticate"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		ts.engine.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: expected 405, got %d", path, rec.Code)
		}
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
