package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	"blog_visual_assistant/generator"
	"blog_visual_assistant/search"
	"blog_visual_assistant/workflow"
)

type stubGen struct{}

func (stubGen) TopicIdeas(context.Context, string, []string, []string) ([]string, error) {
	return []string{"T1", "T2", "T3"}, nil
}
func (stubGen) WriteDraft(_ context.Context, title string) (generator.Draft, error) {
	return generator.Draft{Title: title, Body: "Body of " + title}, nil
}
func (stubGen) Personalize(_ context.Context, body, name string) (string, error) {
	return name + ": " + body, nil
}
func (stubGen) SplitParagraphs(_ context.Context, _ string, n int) ([]string, error) {
	segs := make([]string, n)
	for i := range segs {
		segs[i] = fmt.Sprintf("seg-%d", i+1)
	}
	return segs, nil
}
func (stubGen) DerivePrompt(_ context.Context, paragraph string) (string, error) {
	return "prompt: " + paragraph, nil
}
func (stubGen) GenerateImage(context.Context, string) ([]byte, error) {
	return []byte("png-bytes"), nil
}
func (stubGen) EditImage(context.Context, []byte, string, string) ([]byte, error) {
	return []byte("edited-bytes"), nil
}
func (stubGen) Translate(_ context.Context, text string) (string, error) {
	return "EN " + text, nil
}

type stubSearch struct{}

func (stubSearch) Search(context.Context, string, search.Credentials) ([]search.Hit, error) {
	return []search.Hit{{Title: "hit", Link: "https://example.com"}}, nil
}

type memSettings struct {
	mu sync.Mutex
	m  map[string]string
}

func newMemSettings() *memSettings {
	return &memSettings{m: map[string]string{
		workflow.KeySearchClientID:     "id",
		workflow.KeySearchClientSecret: "secret",
	}}
}

func (s *memSettings) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *memSettings) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv, err := New(stubGen{}, stubSearch{}, newMemSettings())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) (*http.Response, stateResp) {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	var sr stateResp
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	resp.Body.Close()
	return resp, sr
}

func createSession(t *testing.T, ts *httptest.Server) (string, stateResp) {
	t.Helper()
	resp, sr := postJSON(t, ts.URL+"/api/sessions", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create session: status %d", resp.StatusCode)
	}
	if sr.SessionID == "" {
		t.Fatal("empty session id")
	}
	return sr.SessionID, sr
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t)
	id, sr := createSession(t, ts)
	if sr.State.Stage != workflow.StageTopicGeneration {
		t.Fatalf("initial stage = %s", sr.State.Stage)
	}

	resp, sr := postJSON(t, ts.URL+"/api/sessions/"+id+"/topics",
		map[string]any{"keyword": "tea"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("topics: status %d", resp.StatusCode)
	}
	if len(sr.State.Topics) != 3 {
		t.Fatalf("topics = %v", sr.State.Topics)
	}

	resp, sr = postJSON(t, ts.URL+"/api/sessions/"+id+"/topic",
		map[string]any{"title": "T1"})
	if resp.StatusCode != http.StatusOK || sr.State.Stage != workflow.StagePostSetup {
		t.Fatalf("select topic: status %d stage %s", resp.StatusCode, sr.State.Stage)
	}

	resp, sr = postJSON(t, ts.URL+"/api/sessions/"+id+"/setup",
		map[string]any{"body": sr.State.Draft.Body, "count": 2, "source": "generate"})
	if resp.StatusCode != http.StatusOK || sr.State.Stage != workflow.StageImageCustomization {
		t.Fatalf("setup: status %d stage %s", resp.StatusCode, sr.State.Stage)
	}
	if len(sr.State.Paragraphs) != 2 {
		t.Fatalf("paragraphs = %d", len(sr.State.Paragraphs))
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/sessions/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestValidationMapsTo400(t *testing.T) {
	ts := newTestServer(t)
	id, _ := createSession(t, ts)
	postJSON(t, ts.URL+"/api/sessions/"+id+"/topics", map[string]any{"keyword": "tea"})
	postJSON(t, ts.URL+"/api/sessions/"+id+"/topic", map[string]any{"title": "T1"})

	resp, _ := postJSON(t, ts.URL+"/api/sessions/"+id+"/setup",
		map[string]any{"body": "x", "count": 99, "source": "generate"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestFinalizeOverWebsocket(t *testing.T) {
	ts := newTestServer(t)
	id, _ := createSession(t, ts)
	postJSON(t, ts.URL+"/api/sessions/"+id+"/topics", map[string]any{"keyword": "tea"})
	postJSON(t, ts.URL+"/api/sessions/"+id+"/topic", map[string]any{"title": "T1"})
	postJSON(t, ts.URL+"/api/sessions/"+id+"/setup",
		map[string]any{"body": "body", "count": 3, "source": "generate"})

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/api/sessions/" + id + "/finalize"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	items := 0
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		switch msg.Type {
		case "item":
			if msg.Progress.Index != items {
				t.Fatalf("out-of-order progress: got index %d at position %d", msg.Progress.Index, items)
			}
			items++
		case "done":
			if items != 3 {
				t.Fatalf("got %d item frames", items)
			}
			if msg.State.Stage != workflow.StageResults {
				t.Fatalf("final stage = %s", msg.State.Stage)
			}
			return
		case "error":
			t.Fatalf("finalize error: %s", msg.Error)
		}
	}
}

func TestUploadAndImageDownload(t *testing.T) {
	ts := newTestServer(t)
	id, _ := createSession(t, ts)
	postJSON(t, ts.URL+"/api/sessions/"+id+"/topics", map[string]any{"keyword": "tea"})
	postJSON(t, ts.URL+"/api/sessions/"+id+"/topic", map[string]any{"title": "T1"})
	postJSON(t, ts.URL+"/api/sessions/"+id+"/setup",
		map[string]any{"body": "body", "count": 1, "source": "upload"})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="image"; filename="photo.png"`)
	hdr.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("my-photo-bytes"))
	mw.Close()

	resp, err := http.Post(ts.URL+"/api/sessions/"+id+"/paragraphs/0/upload",
		mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	var sr stateResp
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	if sr.State.Paragraphs[0].EditStage != workflow.EditUploaded {
		t.Fatalf("edit stage = %s", sr.State.Paragraphs[0].EditStage)
	}

	postJSON(t, ts.URL+"/api/sessions/"+id+"/paragraphs/0/mode", map[string]any{"mode": "keep"})

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/api/sessions/" + id + "/finalize"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type == "done" {
			break
		}
		if msg.Type == "error" {
			t.Fatalf("finalize error: %s", msg.Error)
		}
	}
	conn.Close()

	img, err := http.Get(ts.URL + "/api/sessions/" + id + "/paragraphs/0/image")
	if err != nil {
		t.Fatal(err)
	}
	defer img.Body.Close()
	body, _ := io.ReadAll(img.Body)
	if string(body) != "my-photo-bytes" {
		t.Fatalf("downloaded image = %q", body)
	}
	if ct := img.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type = %q", ct)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	srv, err := New(stubGen{}, stubSearch{}, &memSettings{m: map[string]string{}})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	body, _ := json.Marshal(map[string]string{"client_id": "abc", "client_secret": "s3cret"})
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/settings", bytes.NewReader(body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d", resp.StatusCode)
	}

	got, err := http.Get(ts.URL + "/api/settings")
	if err != nil {
		t.Fatal(err)
	}
	defer got.Body.Close()
	raw, _ := io.ReadAll(got.Body)
	var sr settingsResp
	if err := json.Unmarshal(raw, &sr); err != nil {
		t.Fatal(err)
	}
	if sr.ClientID != "abc" || !sr.HasSecret {
		t.Fatalf("settings = %+v", sr)
	}
	if strings.Contains(string(raw), "s3cret") {
		t.Fatal("secret echoed back to the client")
	}
}

func TestExportRequiresResults(t *testing.T) {
	ts := newTestServer(t)
	id, _ := createSession(t, ts)
	resp, err := http.Get(ts.URL + "/api/sessions/" + id + "/export")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
