package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/nerrad567/sqlgate-core/internal/audit"
)

func TestSQL_RequiresKey(t *testing.T) {
	srv := testServer(t)
	w := do(t, srv.Handler(), http.MethodPost, "/sql", `{"sql":"SELECT 1"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestSQL_Read(t *testing.T) {
	srv := testServer(t)
	h := srv.Handler()
	createUser(t, h, `{"name":"Ada","age":36}`)
	createUser(t, h, `{"name":"Bob","age":41}`)

	w := do(t, h, http.MethodPost, "/sql",
		`{"sql":"SELECT name FROM users WHERE age > ? ORDER BY id","params":[40]}`, authed())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	resp := decodeBody(t, w)
	if resp["ok"] != true {
		t.Fatalf("resp = %v", resp)
	}
	result := resp["result"].(map[string]any)
	if result["success"] != true {
		t.Errorf("success = %v", result["success"])
	}
	rows := result["results"].([]any)
	if len(rows) != 1 || rows[0].(map[string]any)["name"] != "Bob" {
		t.Errorf("results = %v", rows)
	}
	meta := result["meta"].(map[string]any)
	if meta["rows_read"] != float64(1) || meta["changes"] != float64(0) {
		t.Errorf("meta = %v", meta)
	}
}

func TestSQL_Errors(t *testing.T) {
	srv := testServer(t)
	h := srv.Handler()

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing sql", `{}`, "missing sql"},
		{"blank sql", `{"sql":"   "}`, "missing sql"},
		{"write blocked", `{"sql":"DELETE FROM users"}`, "allow_write"},
		{"write blocked when false", `{"sql":"INSERT INTO users (name) VALUES ('x')","allow_write":false}`, "allow_write"},
		{"engine error", `{"sql":"SELECT * FROM nope"}`, "no such table"},
		{"params not array", `{"sql":"SELECT ?","params":{"a":1}}`, "params"},
		{"malformed", `{"sql":`, "malformed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/sql", tt.body, authed())
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			resp := decodeBody(t, w)
			msg, _ := resp["error"].(string)
			if resp["ok"] != false || !strings.Contains(msg, tt.wantErr) {
				t.Errorf("resp = %v, want error containing %q", resp, tt.wantErr)
			}
		})
	}

	if n := countUsers(t, srv); n != 0 {
		t.Errorf("users = %d, want 0", n)
	}
}

func TestSQL_EngineErrorVerbatim(t *testing.T) {
	srv := testServer(t)
	h := srv.Handler()

	w := do(t, h, http.MethodPost, "/sql", `{"sql":"SELECT * FROM nowhere"}`, authed())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	resp := decodeBody(t, w)
	if resp["error"] != "no such table: nowhere" {
		t.Errorf("error = %v, want driver message only", resp["error"])
	}
}

func TestSQL_Write(t *testing.T) {
	srv := testServer(t)
	h := srv.Handler()

	w := do(t, h, http.MethodPost, "/sql",
		`{"sql":"INSERT INTO users (name) VALUES (?)","params":["Ada"],"allow_write":true}`, authed())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	meta := decodeBody(t, w)["result"].(map[string]any)["meta"].(map[string]any)
	if meta["changes"] != float64(1) || meta["last_row_id"] != float64(1) {
		t.Errorf("meta = %v", meta)
	}

	// string flag
	w = do(t, h, http.MethodPost, "/sql",
		`{"sql":"UPDATE users SET age = 30","allow_write":"true"}`, authed())
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d", w.Code)
	}

	srv.stopWorkers()
	res, err := srv.auditRepo.List(context.Background(), audit.Filter{Action: audit.ActionSQL})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.Total != 2 {
		t.Fatalf("sql audit entries = %d, want 2", res.Total)
	}
	if res.Entries[0].Source != "sql" {
		t.Errorf("source = %q, want sql", res.Entries[0].Source)
	}
}

func TestSQL_DDLRefreshesColumns(t *testing.T) {
	srv := testServer(t)
	h := srv.Handler()

	// warm the column cache
	do(t, h, http.MethodGet, "/api/users", "", nil)

	w := do(t, h, http.MethodPost, "/sql",
		`{"sql":"ALTER TABLE users ADD COLUMN nick TEXT","allow_write":true}`, authed())
	if w.Code != http.StatusOK {
		t.Fatalf("alter status = %d, body %s", w.Code, w.Body.String())
	}

	createUser(t, h, `{"name":"Ada","nick":"countess"}`)
	data := decodeBody(t, do(t, h, http.MethodGet, "/api/users/1", "", nil))["data"].(map[string]any)
	if data["nick"] != "countess" {
		t.Errorf("nick = %v, want countess", data["nick"])
	}

	w = do(t, h, http.MethodPost, "/sql",
		`{"sql":"CREATE TABLE widgets (id INTEGER PRIMARY KEY, label TEXT)","allow_write":true}`, authed())
	if w.Code != http.StatusOK {
		t.Fatalf("create table status = %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/api/widgets", `{"label":"gear"}`, authed()); w.Code != http.StatusCreated {
		t.Errorf("widget create = %d, want 201", w.Code)
	}
}

func TestSQL_FormBody(t *testing.T) {
	srv := testServer(t)

	form := url.Values{"sql": {"SELECT ? AS one"}, "params": {"[1]"}}
	req := httptest.NewRequest(http.MethodPost, "/sql", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-API-Key", testAPIKey)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	rows := decodeBody(t, w)["result"].(map[string]any)["results"].([]any)
	if len(rows) != 1 || rows[0].(map[string]any)["one"] != float64(1) {
		t.Errorf("results = %v", rows)
	}
}
