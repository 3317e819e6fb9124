package siyuan

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newLocalHTTPServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping: cannot bind local test listener: %v", err)
	}

	srv := httptest.NewUnstartedServer(handler)
	srv.Listener = ln
	srv.Start()
	return srv
}

func newTestClient(url string) *Client {
	return NewClient(url, "test-token", 5*time.Second, zerolog.Nop())
}

func respond(w http.ResponseWriter, code int, msg string, data any) {
	raw, _ := json.Marshal(data)
	json.NewEncoder(w).Encode(envelope{Code: code, Msg: msg, Data: raw})
}

func TestPost_SendsTokenAndDecodesEnvelope(t *testing.T) {
	srv := newLocalHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token test-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID")
		}
		respond(w, 0, "", "3.1.0")
	}))
	defer srv.Close()

	status := newTestClient(srv.URL).HealthCheck(context.Background())
	if !status.Available {
		t.Fatalf("expected available, got %+v", status)
	}
	if status.Version != "3.1.0" {
		t.Errorf("version = %q", status.Version)
	}
}

func TestPost_RemoteCodeBecomesRemoteError(t *testing.T) {
	srv := newLocalHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, -1, "notebook not found", nil)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).ListNotebooks(context.Background())
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected *RemoteError, got %v", err)
	}
	if remote.Code != -1 || remote.Msg != "notebook not found" {
		t.Errorf("remote = %+v", remote)
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound should match a 'not found' remote message")
	}
}

func TestHealthCheck_ConnectionRefusedNeverErrors(t *testing.T) {
	status := newTestClient("http://127.0.0.1:1").HealthCheck(context.Background())
	if status.Available {
		t.Fatal("expected unavailable")
	}
	if status.Err == "" {
		t.Error("expected an error string")
	}
}

func TestSQL_ReturnsRows(t *testing.T) {
	srv := newLocalHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/query/sql" {
			http.NotFound(w, r)
			return
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["stmt"] == "" {
			t.Error("missing stmt")
		}
		respond(w, 0, "", []map[string]any{
			{"id": "20220802180638-lhtbfty", "content": "rust ownership", "updated": "20220802180638"},
		})
	}))
	defer srv.Close()

	rows, err := newTestClient(srv.URL).SQL(context.Background(), "SELECT * FROM blocks LIMIT 1")
	if err != nil {
		t.Fatalf("SQL: %v", err)
	}
	if len(rows) != 1 || rows[0]["id"] != "20220802180638-lhtbfty" {
		t.Errorf("rows = %v", rows)
	}
}

func TestSearchFullText_ParsesBlocksAndMergesOptions(t *testing.T) {
	srv := newLocalHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["query"] != "简历" {
			t.Errorf("query = %v", req["query"])
		}
		if req["page"] != float64(1) || req["size"] != float64(50) {
			t.Errorf("page/size = %v/%v", req["page"], req["size"])
		}
		if req["method"] != float64(0) {
			t.Errorf("extra option not merged: %v", req["method"])
		}
		respond(w, 0, "", map[string]any{
			"blocks": []Block{{ID: "b1", RootID: "d1", HPath: "/个人/简历", Content: "工作经历"}},
		})
	}))
	defer srv.Close()

	blocks, err := newTestClient(srv.URL).SearchFullText(context.Background(), "简历", FulltextOptions{
		Size:  50,
		Extra: map[string]any{"method": 0},
	})
	if err != nil {
		t.Fatalf("SearchFullText: %v", err)
	}
	if len(blocks) != 1 || blocks[0].RootID != "d1" {
		t.Errorf("blocks = %+v", blocks)
	}
}

func TestGetBlockKramdown_FillsID(t *testing.T) {
	srv := newLocalHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, 0, "", map[string]string{"kramdown": "# Title\n\nbody"})
	}))
	defer srv.Close()

	kd, err := newTestClient(srv.URL).GetBlockKramdown(context.Background(), "20220802180638-lhtbfty")
	if err != nil {
		t.Fatalf("GetBlockKramdown: %v", err)
	}
	if kd.ID != "20220802180638-lhtbfty" {
		t.Errorf("id = %q", kd.ID)
	}
	if kd.Kramdown == "" {
		t.Error("empty kramdown")
	}
}

func TestListNotebooks(t *testing.T) {
	srv := newLocalHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, 0, "", map[string]any{
			"notebooks": []Notebook{
				{ID: "nb1", Name: "工作"},
				{ID: "nb2", Name: "私密", Closed: true},
			},
		})
	}))
	defer srv.Close()

	notebooks, err := newTestClient(srv.URL).ListNotebooks(context.Background())
	if err != nil {
		t.Fatalf("ListNotebooks: %v", err)
	}
	if len(notebooks) != 2 || notebooks[1].Name != "私密" {
		t.Errorf("notebooks = %+v", notebooks)
	}
}

func TestAppendBlock_NormalizesOperationList(t *testing.T) {
	srv := newLocalHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, 0, "", []map[string]any{
			{"doOperations": []map[string]any{{"id": "20240101120000-abcdefg", "action": "insert"}}},
		})
	}))
	defer srv.Close()

	id, err := newTestClient(srv.URL).AppendBlock(context.Background(), "parent", "- note")
	if err != nil {
		t.Fatalf("AppendBlock: %v", err)
	}
	if id != "20240101120000-abcdefg" {
		t.Errorf("id = %q", id)
	}
}

func TestPost_HTTPErrorIsTransport(t *testing.T) {
	srv := newLocalHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).SQL(context.Background(), "SELECT 1")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}
