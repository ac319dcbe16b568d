package server

import (
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"blog_visual_assistant/workflow"
)

//go:embed web/static
var embeddedStatic embed.FS

// SettingsStore is what the server needs from the settings layer: the
// engine only reads, the settings endpoints also write.
type SettingsStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

type Server struct {
	gen      workflow.Generator
	searcher workflow.Searcher
	settings SettingsStore
	store    *sessionStore
	staticFS http.Handler
	upgrader websocket.Upgrader
}

func New(gen workflow.Generator, searcher workflow.Searcher, settings SettingsStore) (*Server, error) {
	if gen == nil {
		return nil, errors.New("generator is required")
	}
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if settings == nil {
		return nil, errors.New("settings store is required")
	}

	sub, err := fs.Sub(embeddedStatic, "web/static")
	if err != nil {
		return nil, err
	}

	return &Server{
		gen:      gen,
		searcher: searcher,
		settings: settings,
		store:    newStore(),
		staticFS: http.FileServer(http.FS(sub)),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sessions", s.handleSessionCreate)
	mux.HandleFunc("/api/sessions/", s.handleSessionByID)
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.Handle("/", s.staticHandler())
	return logMiddleware(mux)
}

func (s *Server) staticHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		if r.URL.Path == "/" {
			r.URL.Path = "/index.html"
		}
		s.staticFS.ServeHTTP(w, r)
	})
}

// --- session plumbing ---

type stateResp struct {
	SessionID string         `json:"session_id"`
	State     workflow.State `json:"state"`
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := newSessionID()
	eng := workflow.New(s.gen, s.searcher, s.settings)
	s.store.set(id, eng)
	writeJSON(w, stateResp{SessionID: id, State: eng.State()})
}

func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.Split(rest, "/")
	if parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	eng, ok := s.store.get(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, stateResp{SessionID: id, State: eng.State()})
	case "search":
		s.handleSearch(w, r, id, eng)
	case "topics":
		s.handleTopics(w, r, id, eng)
	case "topic":
		s.handleSelectTopic(w, r, id, eng)
	case "setup":
		s.handleSetup(w, r, id, eng)
	case "paragraphs":
		s.handleParagraph(w, r, id, eng, parts[2:])
	case "finalize":
		s.handleFinalize(w, r, eng)
	case "reset":
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		eng.Reset()
		writeJSON(w, stateResp{SessionID: id, State: eng.State()})
	case "advisories":
		s.handleDismissAdvisory(w, r, id, eng, parts[2:])
	case "export":
		s.handleExport(w, r, id, eng)
	default:
		http.NotFound(w, r)
	}
}

// --- intent handlers ---

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, id string, eng *workflow.Engine) {
	var req struct {
		Query string `json:"query"`
	}
	if !decodePost(w, r, &req) {
		return
	}
	if err := eng.RunSearch(r.Context(), req.Query); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, stateResp{SessionID: id, State: eng.State()})
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request, id string, eng *workflow.Engine) {
	var req struct {
		Keyword     string   `json:"keyword"`
		SubKeywords []string `json:"sub_keywords"`
	}
	if !decodePost(w, r, &req) {
		return
	}
	if _, err := eng.GenerateTopics(r.Context(), req.Keyword, req.SubKeywords); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, stateResp{SessionID: id, State: eng.State()})
}

func (s *Server) handleSelectTopic(w http.ResponseWriter, r *http.Request, id string, eng *workflow.Engine) {
	var req struct {
		Title string `json:"title"`
	}
	if !decodePost(w, r, &req) {
		return
	}
	if err := eng.SelectTopic(r.Context(), req.Title); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, stateResp{SessionID: id, State: eng.State()})
}

func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request, id string, eng *workflow.Engine) {
	var req struct {
		Body   string `json:"body"`
		Count  int    `json:"count"`
		Name   string `json:"name"`
		Source string `json:"source"`
	}
	if !decodePost(w, r, &req) {
		return
	}
	if err := eng.SubmitSetup(r.Context(), req.Body, req.Count, req.Name, req.Source); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, stateResp{SessionID: id, State: eng.State()})
}

func (s *Server) handleParagraph(w http.ResponseWriter, r *http.Request, id string, eng *workflow.Engine, parts []string) {
	if len(parts) < 1 {
		http.NotFound(w, r)
		return
	}
	idx, err := strconv.Atoi(parts[0])
	if err != nil {
		http.Error(w, "bad paragraph index", http.StatusBadRequest)
		return
	}
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch action {
	case "upload":
		s.handleUpload(w, r, id, eng, idx)
	case "mode":
		var req struct {
			Mode string `json:"mode"`
		}
		if !decodePost(w, r, &req) {
			return
		}
		if err := eng.SetEditMode(idx, req.Mode); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, stateResp{SessionID: id, State: eng.State()})
	case "directive":
		var req struct {
			Text string `json:"text"`
		}
		if !decodePost(w, r, &req) {
			return
		}
		if err := eng.SetDirective(idx, req.Text); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, stateResp{SessionID: id, State: eng.State()})
	case "translate":
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := eng.TranslateDirective(r.Context(), idx); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, stateResp{SessionID: id, State: eng.State()})
	case "image":
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		img, mimeType, err := eng.Image(idx)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", mimeType)
		w.Header().Set("Content-Disposition", "attachment; filename=paragraph-"+strconv.Itoa(idx+1)+imageExt(mimeType))
		_, _ = w.Write(img)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, id string, eng *workflow.Engine, idx int) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// One extra MiB of slack for the multipart envelope.
	r.Body = http.MaxBytesReader(w, r.Body, workflow.MaxUploadBytes+(1<<20))
	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "missing image file: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "read upload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := eng.Upload(idx, data, header.Header.Get("Content-Type")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, stateResp{SessionID: id, State: eng.State()})
}

func (s *Server) handleDismissAdvisory(w http.ResponseWriter, r *http.Request, id string, eng *workflow.Engine, parts []string) {
	if r.Method != http.MethodDelete || len(parts) < 1 {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	idx, err := strconv.Atoi(parts[0])
	if err != nil {
		http.Error(w, "bad advisory index", http.StatusBadRequest)
		return
	}
	if err := eng.DismissAdvisory(idx); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, stateResp{SessionID: id, State: eng.State()})
}

// --- finalize over websocket ---

type wsMessage struct {
	Type     string             `json:"type"`
	Progress *workflow.Progress `json:"progress,omitempty"`
	State    *workflow.State    `json:"state,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// handleFinalize upgrades the connection and runs the pass, streaming one
// "item" frame per completed paragraph so the browser can render partial
// progress, then "done" with the final state or "error".
func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request, eng *workflow.Engine) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[server] websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	err = eng.Finalize(r.Context(), func(p workflow.Progress) {
		if werr := conn.WriteJSON(wsMessage{Type: "item", Progress: &p}); werr != nil {
			log.Printf("[server] finalize progress write failed: %v", werr)
		}
	})
	if err != nil {
		_ = conn.WriteJSON(wsMessage{Type: "error", Error: err.Error()})
		return
	}
	state := eng.State()
	_ = conn.WriteJSON(wsMessage{Type: "done", State: &state})
}

// --- settings ---

type settingsResp struct {
	ClientID  string `json:"client_id"`
	HasSecret bool   `json:"has_secret"`
}

// handleSettings reads or saves the search credentials. The secret is
// never echoed back; PUT with an empty secret keeps the stored one.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		id, _, err := s.settings.Get(workflow.KeySearchClientID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		secret, hasSecret, err := s.settings.Get(workflow.KeySearchClientSecret)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, settingsResp{ClientID: id, HasSecret: hasSecret && secret != ""})
	case http.MethodPut:
		var req struct {
			ClientID     string `json:"client_id"`
			ClientSecret string `json:"client_secret"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.settings.Set(workflow.KeySearchClientID, req.ClientID); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if req.ClientSecret != "" {
			if err := s.settings.Set(workflow.KeySearchClientSecret, req.ClientSecret); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}
		writeJSON(w, map[string]bool{"saved": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// --- helpers ---

func decodePost(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrBusy):
		http.Error(w, err.Error(), http.StatusConflict)
	case workflow.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

func imageExt(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("[server] %s %s %s", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}
