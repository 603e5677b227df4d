package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/nerrad567/sqlgate-core/internal/audit"
)

// createUser posts body with the test key and returns the new id.
func createUser(t *testing.T, h http.Handler, body string) int64 {
	t.Helper()
	w := do(t, h, http.MethodPost, "/api/users", body, authed())
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	id, ok := decodeBody(t, w)["id"].(float64)
	if !ok {
		t.Fatalf("create response missing id: %s", w.Body.String())
	}
	return int64(id)
}

func countUsers(t *testing.T, srv *Server) int {
	t.Helper()
	var n int
	if err := srv.db.GetContext(context.Background(), &n, "SELECT COUNT(*) FROM users"); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestTable_CRUDRoundTrip(t *testing.T) {
	srv := testServer(t)
	h := srv.Handler()

	id := createUser(t, h, `{"name":"Ada","email":"ada@example.com","bogus":"dropped"}`)
	if id != 1 {
		t.Fatalf("id = %d, want 1", id)
	}

	w := do(t, h, http.MethodGet, "/api/users/1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("detail status = %d", w.Code)
	}
	data, ok := decodeBody(t, w)["data"].(map[string]any)
	if !ok {
		t.Fatalf("detail missing data: %s", w.Body.String())
	}
	if data["name"] != "Ada" || data["email"] != "ada@example.com" {
		t.Errorf("data = %v", data)
	}
	if _, present := data["bogus"]; present {
		t.Error("unknown field was persisted")
	}

	w = do(t, h, http.MethodPut, "/api/users/1", `{"age":37}`, authed())
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", w.Code, w.Body.String())
	}
	if got := decodeBody(t, w)["updated"]; got != float64(1) {
		t.Errorf("updated = %v, want 1", got)
	}

	w = do(t, h, http.MethodGet, "/api/users/1", "", nil)
	data = decodeBody(t, w)["data"].(map[string]any)
	if data["age"] != float64(37) || data["name"] != "Ada" {
		t.Errorf("after update = %v", data)
	}

	w = do(t, h, http.MethodDelete, "/api/users/1", "", authed())
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if got := decodeBody(t, w)["deleted"]; got != float64(1) {
		t.Errorf("deleted = %v, want 1", got)
	}

	w = do(t, h, http.MethodGet, "/api/users/1", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("detail after delete = %d, want 404", w.Code)
	}
}

func TestTable_UnauthorizedMutationsDoNothing(t *testing.T) {
	srv := testServer(t)
	h := srv.Handler()
	createUser(t, h, `{"name":"Ada"}`)

	tests := []struct {
		method  string
		target  string
		body    string
		headers map[string]string
	}{
		{http.MethodPost, "/api/users", `{"name":"Eve"}`, nil},
		{http.MethodPost, "/api/users", `{"name":"Eve"}`, map[string]string{"X-API-Key": "wrong"}},
		{http.MethodPut, "/api/users/1", `{"name":"Eve"}`, nil},
		{http.MethodPatch, "/api/users/1", `{"name":"Eve"}`, map[string]string{"Authorization": "Bearer wrong"}},
		{http.MethodDelete, "/api/users/1", "", nil},
		{http.MethodDelete, "/api/users", "", nil},
		{http.MethodPost, "/api/users", `not json`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			w := do(t, h, tt.method, tt.target, tt.body, tt.headers)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
			resp := decodeBody(t, w)
			if resp["ok"] != false || resp["error"] == "" {
				t.Errorf("resp = %v", resp)
			}
		})
	}

	if n := countUsers(t, srv); n != 1 {
		t.Errorf("users = %d, want 1", n)
	}
	data := decodeBody(t, do(t, h, http.MethodGet, "/api/users/1", "", nil))["data"].(map[string]any)
	if data["name"] != "Ada" {
		t.Errorf("name = %v, want Ada", data["name"])
	}
}

func TestTable_CredentialForms(t *testing.T) {
	srv := testServer(t)
	h := srv.Handler()

	for i, headers := range []map[string]string{
		{"X-API-Key": testAPIKey},
		{"Authorization": "Bearer " + testAPIKey},
		{"Authorization": "bearer   " + testAPIKey},
		{"Authorization": testAPIKey},
	} {
		w := do(t, h, http.MethodPost, "/api/users", fmt.Sprintf(`{"name":"u%d"}`, i), headers)
		if w.Code != http.StatusCreated {
			t.Errorf("headers %v: status = %d, want 201", headers, w.Code)
		}
	}
}

func TestTable_OpenMode(t *testing.T) {
	srv := newTestServer(t, testOptions{})
	h := srv.Handler()

	w := do(t, h, http.MethodPost, "/api/users", `{"name":"Ada"}`, nil)
	if w.Code != http.StatusCreated {
		t.Errorf("open mode create = %d, want 201", w.Code)
	}
}

func TestTable_ReadsAreOpen(t *testing.T) {
	srv := testServer(t)
	h := srv.Handler()
	createUser(t, h, `{"name":"Ada"}`)

	if w := do(t, h, http.MethodGet, "/api/users", "", nil); w.Code != http.StatusOK {
		t.Errorf("list = %d, want 200", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/users/1", "", nil); w.Code != http.StatusOK {
		t.Errorf("detail = %d, want 200", w.Code)
	}
}

func TestTable_MissingRows(t *testing.T) {
	srv := testServer(t)
	h := srv.Handler()

	tests := []struct {
		method string
		target string
		body   string
		want   int
	}{
		{http.MethodGet, "/api/users/99", "", http.StatusNotFound},
		{http.MethodPut, "/api/users/99", `{"name":"x"}`, http.StatusNotFound},
		{http.MethodPatch, "/api/users/99", `{"name":"x"}`, http.StatusNotFound},
		{http.MethodDelete, "/api/users/99", "", http.StatusNotFound},
		{http.MethodPut, "/api/users", `{"name":"x"}`, http.StatusBadRequest},
		{http.MethodDelete, "/api/users", "", http.StatusBadRequest},
		{http.MethodTrace, "/api/users", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			w := do(t, h, tt.method, tt.target, tt.body, authed())
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestTable_IDResolution(t *testing.T) {
	srv := testServer(t)
	h := srv.Handler()
	createUser(t, h, `{"name":"one"}`)
	createUser(t, h, `{"name":"two"}`)

	// id in the body
	w := do(t, h, http.MethodPatch, "/api/users", `{"id":1,"name":"uno"}`, authed())
	if w.Code != http.StatusOK {
		t.Fatalf("patch by body id = %d: %s", w.Code, w.Body.String())
	}

	// body id beats the path id
	w = do(t, h, http.MethodPut, "/api/users/2", `{"id":"1","name":"eins"}`, authed())
	if w.Code != http.StatusOK {
		t.Fatalf("put = %d", w.Code)
	}
	data := decodeBody(t, do(t, h, http.MethodGet, "/api/users?id=1", "", nil))["data"].(map[string]any)
	if data["name"] != "eins" {
		t.Errorf("row 1 name = %v, want eins", data["name"])
	}
	data = decodeBody(t, do(t, h, http.MethodGet, "/api/users/2", "", nil))["data"].(map[string]any)
	if data["name"] != "two" {
		t.Errorf("row 2 name = %v, want two", data["name"])
	}

	// query id beats the path id
	w = do(t, h, http.MethodDelete, "/api/users/1?id=2", "", authed())
	if w.Code != http.StatusOK {
		t.Fatalf("delete by query id = %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/users/2", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("row 2 after delete = %d, want 404", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/users/1", "", nil); w.Code != http.StatusOK {
		t.Errorf("row 1 after delete = %d, want 200", w.Code)
	}
}

func TestTable_ListPagingAndSearch(t *testing.T) {
	srv := testServer(t)
	h := srv.Handler()
	for i := 1; i <= 25; i++ {
		if _, err := srv.db.Exec("INSERT INTO users (name, email) VALUES (?, ?)",
			fmt.Sprintf("user%02d", i), fmt.Sprintf("u%d@example.com", i)); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	w := do(t, h, http.MethodGet, "/api/users?page=2&page_size=10", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	resp := decodeBody(t, w)
	if resp["ok"] != true || resp["page"] != float64(2) || resp["page_size"] != float64(10) || resp["total"] != float64(25) {
		t.Errorf("envelope = %v", resp)
	}
	items := resp["items"].([]any)
	if len(items) != 10 {
		t.Fatalf("items = %d, want 10", len(items))
	}
	if first := items[0].(map[string]any)["id"]; first != float64(15) {
		t.Errorf("first id on page 2 = %v, want 15", first)
	}

	tests := []struct {
		query        string
		wantPage     float64
		wantPageSize float64
		wantItems    int
	}{
		{"", 1, 10, 10},
		{"?page=0&page_size=1000", 1, 100, 25},
		{"?page=-3&page_size=-5", 1, 1, 1},
		{"?page=abc&page_size=xyz", 1, 10, 10},
		{"?page=9", 9, 10, 0},
		{"?page=922337203685477582&page_size=10", 922337203685477580, 10, 0},
	}
	for _, tt := range tests {
		t.Run("paging"+tt.query, func(t *testing.T) {
			resp := decodeBody(t, do(t, h, http.MethodGet, "/api/users"+tt.query, "", nil))
			if resp["page"] != tt.wantPage || resp["page_size"] != tt.wantPageSize {
				t.Errorf("page/page_size = %v/%v, want %v/%v", resp["page"], resp["page_size"], tt.wantPage, tt.wantPageSize)
			}
			items, _ := resp["items"].([]any)
			if len(items) != tt.wantItems {
				t.Errorf("items = %d, want %d", len(items), tt.wantItems)
			}
		})
	}

	// user1 matches user10..user19 by name; u1@ matches by email only
	resp = decodeBody(t, do(t, h, http.MethodGet, "/api/users?search="+url.QueryEscape("u1@"), "", nil))
	if resp["total"] != float64(1) {
		t.Errorf("search u1@ total = %v, want 1", resp["total"])
	}
	resp = decodeBody(t, do(t, h, http.MethodGet, "/api/users?search=user1&page_size=100", "", nil))
	if resp["total"] != float64(10) {
		t.Errorf("search user1 total = %v, want 10", resp["total"])
	}
}

func TestTable_TableChecks(t *testing.T) {
	srv := testServer(t)
	h := srv.Handler()

	tests := []struct {
		target string
		want   int
	}{
		{"/api/missing", http.StatusNotFound},
		{"/api/audit_logs", http.StatusNotFound},
		{"/api/schema_migrations", http.StatusNotFound},
		{"/api/sqlite_master", http.StatusNotFound},
		{"/api/1users", http.StatusBadRequest},
		{"/api/users/", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w := do(t, h, http.MethodGet, tt.target, "", nil)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestTable_BadBodies(t *testing.T) {
	srv := testServer(t)
	h := srv.Handler()

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"name":`},
		{"array", `[{"name":"x"}]`},
		{"no valid fields", `{"bogus":1}`},
		{"only id", `{"id":5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/users", tt.body, authed())
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if resp := decodeBody(t, w); resp["ok"] != false {
				t.Errorf("ok = %v", resp["ok"])
			}
		})
	}

	// an unreadable DELETE payload is ignored and the path id still applies
	if _, err := srv.db.Exec("INSERT INTO users (name) VALUES ('gone')"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	w := do(t, h, http.MethodDelete, "/api/users/1", `{"id":`, authed())
	if w.Code != http.StatusOK {
		t.Errorf("delete with malformed body status = %d, want 200", w.Code)
	}

	// NOT NULL violation surfaces as a 400 engine error
	w = do(t, h, http.MethodPost, "/api/users", `{"email":"x@example.com"}`, authed())
	if w.Code != http.StatusBadRequest {
		t.Errorf("constraint status = %d, want 400", w.Code)
	}
	if resp := decodeBody(t, w); resp["error"] != "NOT NULL constraint failed: users.name" {
		t.Errorf("error = %v, want driver message", resp["error"])
	}
	if n := countUsers(t, srv); n != 0 {
		t.Errorf("users = %d, want 0", n)
	}
}

func TestTable_FormBody(t *testing.T) {
	srv := testServer(t)
	h := srv.Handler()

	form := url.Values{"name": {"Grace"}, "age": {"85"}}
	req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-API-Key", testAPIKey)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	data := decodeBody(t, do(t, h, http.MethodGet, "/api/users/1", "", nil))["data"].(map[string]any)
	if data["name"] != "Grace" {
		t.Errorf("name = %v", data["name"])
	}
}

func TestTable_AuditTrail(t *testing.T) {
	srv := testServer(t)
	h := srv.Handler()

	createUser(t, h, `{"name":"Ada"}`)
	do(t, h, http.MethodPatch, "/api/users/1", `{"age":36}`, authed())
	do(t, h, http.MethodGet, "/api/users", "", nil)
	srv.stopWorkers()

	if w := do(t, h, http.MethodGet, "/audit", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("audit without key = %d, want 401", w.Code)
	}

	w := do(t, h, http.MethodGet, "/audit?table=users", "", authed())
	if w.Code != http.StatusOK {
		t.Fatalf("audit status = %d", w.Code)
	}
	resp := decodeBody(t, w)
	if resp["ok"] != true || resp["total"] != float64(2) {
		t.Fatalf("audit = %v", resp)
	}

	res, err := srv.auditRepo.List(context.Background(), audit.Filter{Action: audit.ActionUpdate})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(res.Entries) != 1 {
		t.Fatalf("update entries = %d, want 1", len(res.Entries))
	}
	e := res.Entries[0]
	if e.Table != "users" || e.RowID != "1" || e.RowsAffected != 1 || e.Source != "api" || e.RequestID == "" {
		t.Errorf("entry = %+v", e)
	}
}
