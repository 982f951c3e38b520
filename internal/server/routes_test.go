package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/icebox-app/icebox/internal/engine"
	"github.com/icebox-app/icebox/internal/payment"
	"github.com/icebox-app/icebox/internal/premium"
	"github.com/icebox-app/icebox/internal/store"
)

func testServer(t *testing.T) (*Server, *store.DB) {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	eng := engine.New(db, nil, nil)
	return New(db, eng, nil, "test"), db
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return m
}

func TestHealth(t *testing.T) {
	s, _ := testServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	m := decode(t, rec)
	if m["status"] != "ok" || m["version"] != "test" {
		t.Errorf("health = %v", m)
	}
}

func TestCreateAndOpenNote(t *testing.T) {
	s, _ := testServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/users/42/notes", map[string]string{
		"content": "learn to sail",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	note := decode(t, rec)["note"].(map[string]any)
	noteID := int64(note["ID"].(float64))

	rec = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/users/42/notes/%d/open", noteID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("open status = %d", rec.Code)
	}
	m := decode(t, rec)
	if m["temperature"] != "warm" {
		t.Errorf("temperature after first open = %v", m["temperature"])
	}

	rec = doJSON(t, s, http.MethodPost, "/api/users/42/notes/9999/open", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("open missing note status = %d", rec.Code)
	}

	// Another user's id in the path must not reach the note.
	rec = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/users/7/notes/%d/open", noteID), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("open foreign note status = %d", rec.Code)
	}
}

func TestCreateNoteValidation(t *testing.T) {
	s, _ := testServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/users/42/notes", map[string]string{"content": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank content status = %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/users/42/notes", map[string]string{
		"content": "x", "type": "video",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad type status = %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/users/42/notes", map[string]string{
		"content": "caption", "type": "photo",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("photo without file_id status = %d", rec.Code)
	}
}

func TestDuplicateConflictAndConfirm(t *testing.T) {
	s, _ := testServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/users/42/notes", map[string]string{"content": "buy milk"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("first capture status = %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/users/42/notes", map[string]string{"content": "buy milk today"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("near-duplicate status = %d: %s", rec.Code, rec.Body.String())
	}
	m := decode(t, rec)
	dup := m["duplicate"].(map[string]any)
	if dup["content"] != "buy milk" {
		t.Errorf("duplicate candidate = %v", dup)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/users/42/notes?confirm=1", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("confirm status = %d: %s", rec.Code, rec.Body.String())
	}
	note := decode(t, rec)["note"].(map[string]any)
	if note["Content"] != "buy milk today" {
		t.Errorf("confirmed content = %v", note["Content"])
	}

	// Nothing staged anymore.
	rec = doJSON(t, s, http.MethodPost, "/api/users/42/notes?confirm=1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second confirm status = %d", rec.Code)
	}
}

func TestDeleteNote(t *testing.T) {
	s, _ := testServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/users/42/notes", map[string]string{"content": "old idea"})
	note := decode(t, rec)["note"].(map[string]any)
	noteID := int64(note["ID"].(float64))

	rec = doJSON(t, s, http.MethodDelete, fmt.Sprintf("/api/users/42/notes/%d", noteID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, s, http.MethodDelete, fmt.Sprintf("/api/users/42/notes/%d", noteID), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("repeat delete status = %d", rec.Code)
	}
}

func TestRefreezeRoute(t *testing.T) {
	s, _ := testServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/users/42/notes", map[string]string{"content": "keep frozen"})
	note := decode(t, rec)["note"].(map[string]any)
	noteID := int64(note["ID"].(float64))

	rec = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/users/42/notes/%d/refreeze", noteID),
		map[string]string{"from": "thaw"})
	if rec.Code != http.StatusOK {
		t.Fatalf("refreeze status = %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/users/42/notes/%d/refreeze", noteID),
		map[string]string{"from": "later"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad from status = %d", rec.Code)
	}
}

func TestSearchRoute(t *testing.T) {
	s, _ := testServer(t)

	doJSON(t, s, http.MethodPost, "/api/users/42/notes", map[string]string{"content": "remember the milk run"})

	rec := doJSON(t, s, http.MethodGet, "/api/users/42/search?q=milk", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d", rec.Code)
	}
	matches := decode(t, rec)["matches"].([]any)
	if len(matches) != 1 {
		t.Fatalf("matches = %d", len(matches))
	}
	m := matches[0].(map[string]any)
	if m["match"] != "milk" {
		t.Errorf("match = %v", m["match"])
	}

	rec = doJSON(t, s, http.MethodGet, "/api/users/42/search?q=", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty query status = %d", rec.Code)
	}
}

func TestStatsRoute(t *testing.T) {
	s, _ := testServer(t)

	doJSON(t, s, http.MethodPost, "/api/users/42/notes", map[string]string{"content": "one"})
	rec := doJSON(t, s, http.MethodPost, "/api/users/42/notes", map[string]string{"content": "completely different"})
	note := decode(t, rec)["note"].(map[string]any)
	doJSON(t, s, http.MethodDelete, fmt.Sprintf("/api/users/42/notes/%d", int64(note["ID"].(float64))), nil)

	rec = doJSON(t, s, http.MethodGet, "/api/users/42/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	m := decode(t, rec)
	if m["total"].(float64) != 2 || m["alive"].(float64) != 1 || m["deleted"].(float64) != 1 {
		t.Errorf("stats = %v", m)
	}
	if m["survival_pct"].(float64) != 50 {
		t.Errorf("survival_pct = %v", m["survival_pct"])
	}
}

func TestFreezePreferenceRoute(t *testing.T) {
	s, db := testServer(t)

	rec := doJSON(t, s, http.MethodPut, "/api/users/42/freeze", map[string]int{"days": 14})
	if rec.Code != http.StatusOK {
		t.Fatalf("freeze status = %d", rec.Code)
	}

	// 90 days needs premium on the free tier.
	rec = doJSON(t, s, http.MethodPut, "/api/users/42/freeze", map[string]int{"days": 90})
	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("long freeze status = %d", rec.Code)
	}

	// Out-of-range is invalid regardless of tier.
	rec = doJSON(t, s, http.MethodPut, "/api/users/42/freeze", map[string]int{"days": 500})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("out-of-range freeze status = %d", rec.Code)
	}

	u, err := db.GetOrCreateUser(42)
	if err != nil {
		t.Fatal(err)
	}
	if u.FreezeDays != 14 {
		t.Errorf("freeze days = %d, rejected updates must not stick", u.FreezeDays)
	}
}

func TestExportRoutePremiumGate(t *testing.T) {
	s, db := testServer(t)

	doJSON(t, s, http.MethodPost, "/api/users/42/notes", map[string]string{"content": "exportable"})

	rec := doJSON(t, s, http.MethodGet, "/api/users/42/export", nil)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("free-tier export status = %d", rec.Code)
	}

	until := int64(4102444800000) // far future
	if err := db.ActivatePremium(42, until); err != nil {
		t.Fatal(err)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/users/42/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("premium export status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/markdown") {
		t.Errorf("content type = %s", got)
	}
	if !strings.Contains(rec.Body.String(), "exportable") {
		t.Error("export missing note body")
	}

	rec = doJSON(t, s, http.MethodGet, "/api/users/42/export?scope=weekly", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad scope status = %d", rec.Code)
	}
}

func TestEchoRoute(t *testing.T) {
	s, _ := testServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/users/42/echo", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("echo with no old notes status = %d", rec.Code)
	}
}

func TestProfileRoute(t *testing.T) {
	s, _ := testServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/users/42/profile", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile status = %d", rec.Code)
	}
	m := decode(t, rec)
	if m["freeze_days"].(float64) != 7 {
		t.Errorf("default freeze days = %v", m["freeze_days"])
	}
	if m["is_premium"].(bool) {
		t.Error("new user marked premium")
	}
}

func TestCheckoutUnconfigured(t *testing.T) {
	s, _ := testServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/users/42/checkout", map[string]string{"plan": "month"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("checkout without gateway status = %d", rec.Code)
	}
}

func TestCheckoutAndPaymentFlow(t *testing.T) {
	gwStatus := "pending"
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]any{
				"id": "pay-77",
				"confirmation": map[string]string{
					"confirmation_url": "https://pay.example/redirect",
				},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "pay-77", "status": gwStatus})
	}))
	defer gw.Close()

	db, err := store.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	eng := engine.New(db, nil, nil)
	prem := premium.NewManager(db, payment.New(gw.URL, "shop", "secret", "https://example.com/done"))
	s := New(db, eng, prem, "test")

	rec := doJSON(t, s, http.MethodPost, "/api/users/42/checkout", map[string]string{"plan": "weekly"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown plan status = %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/users/42/checkout", map[string]string{"plan": "month"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout status = %d: %s", rec.Code, rec.Body.String())
	}
	m := decode(t, rec)
	if m["payment_id"] != "pay-77" || m["url"] != "https://pay.example/redirect" {
		t.Errorf("checkout = %v", m)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/payments/pay-77/check", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("check status = %d", rec.Code)
	}
	if decode(t, rec)["status"] != "pending" {
		t.Errorf("check = %s", rec.Body.String())
	}

	gwStatus = "succeeded"
	rec = doJSON(t, s, http.MethodPost, "/api/payments/pay-77/check", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("check status = %d", rec.Code)
	}
	if decode(t, rec)["status"] != "paid" {
		t.Errorf("check = %s", rec.Body.String())
	}

	u, err := db.GetOrCreateUser(42)
	if err != nil {
		t.Fatal(err)
	}
	if !u.IsPremium {
		t.Error("user not premium after paid check")
	}

	rec = doJSON(t, s, http.MethodGet, "/api/payments/pay-77/qr", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("qr status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("qr content type = %s", got)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/payments/pay-missing/check", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing payment status = %d", rec.Code)
	}
}

func TestPromptAndInputFlow(t *testing.T) {
	s, db := testServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/users/42/prompt", map[string]string{"await": "refreeze"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad await status = %d", rec.Code)
	}

	// Idle input is captured as a note.
	rec = doJSON(t, s, http.MethodPost, "/api/users/42/input", map[string]string{"text": "remember the milk"})
	if rec.Code != http.StatusOK {
		t.Fatalf("idle input status = %d: %s", rec.Code, rec.Body.String())
	}
	if decode(t, rec)["kind"] != "captured" {
		t.Errorf("idle input kind = %v", decode(t, rec)["kind"])
	}

	// Armed search prompt consumes the next input as a query.
	rec = doJSON(t, s, http.MethodPost, "/api/users/42/prompt", map[string]string{"await": "search"})
	if rec.Code != http.StatusOK {
		t.Fatalf("prompt status = %d", rec.Code)
	}
	rec = doJSON(t, s, http.MethodPost, "/api/users/42/input", map[string]string{"text": "milk"})
	if rec.Code != http.StatusOK {
		t.Fatalf("search input status = %d: %s", rec.Code, rec.Body.String())
	}
	m := decode(t, rec)
	if m["kind"] != "search" {
		t.Errorf("kind = %v", m["kind"])
	}
	if matches := m["matches"].([]any); len(matches) != 1 {
		t.Errorf("matches = %d", len(matches))
	}

	// The wait was consumed; the next input is a capture again.
	rec = doJSON(t, s, http.MethodPost, "/api/users/42/input", map[string]string{"text": "a different thought"})
	if decode(t, rec)["kind"] != "captured" {
		t.Errorf("post-search input kind = %v", decode(t, rec)["kind"])
	}

	// Days prompt feeds the freeze preference.
	doJSON(t, s, http.MethodPost, "/api/users/42/prompt", map[string]string{"await": "days"})
	rec = doJSON(t, s, http.MethodPost, "/api/users/42/input", map[string]string{"text": "21"})
	if rec.Code != http.StatusOK {
		t.Fatalf("days input status = %d: %s", rec.Code, rec.Body.String())
	}
	u, err := db.GetOrCreateUser(42)
	if err != nil {
		t.Fatal(err)
	}
	if u.FreezeDays != 21 {
		t.Errorf("freeze days = %d", u.FreezeDays)
	}
}

func TestUnrelatedCommandCancelsWait(t *testing.T) {
	s, _ := testServer(t)

	doJSON(t, s, http.MethodPost, "/api/users/42/prompt", map[string]string{"await": "days"})

	// A direct capture while awaiting clears the pending prompt.
	rec := doJSON(t, s, http.MethodPost, "/api/users/42/notes", map[string]string{"content": "urgent thought"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("capture status = %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/users/42/input", map[string]string{"text": "21"})
	if rec.Code != http.StatusOK {
		t.Fatalf("input status = %d", rec.Code)
	}
	if decode(t, rec)["kind"] != "captured" {
		t.Errorf("kind = %v, wait should have been canceled", decode(t, rec)["kind"])
	}
}
