// Package blinktest runs an in-process fake of the Blink REST API for tests.
package blinktest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Camera is a fake camera and its thumbnail reference
type Camera struct {
	ID        int64
	Name      string
	Thumbnail string
}

// Network is a fake network
type Network struct {
	ID      int64
	Name    string
	Cameras []Camera
}

// Media is one entry of a media page. Deleted is sent verbatim so tests can
// use both booleans and strings.
type Media struct {
	Media       string      `json:"media"`
	CreatedAt   string      `json:"created_at"`
	NetworkName string      `json:"network_name"`
	DeviceName  string      `json:"device_name"`
	Deleted     interface{} `json:"deleted"`
}

// Request records one call received by the fake
type Request struct {
	Method string
	Path   string
	Query  string
	Header http.Header
}

// Server is the fake API. Configure fields before issuing requests.
type Server struct {
	*httptest.Server

	Email     string
	Password  string
	PIN       string
	Token     string
	AccountID int64
	ClientID  int64
	Tier      string

	Networks []Network
	// Pages maps a 1-based page number to its items; missing pages are empty.
	Pages map[int][]Media
	// Files maps a download path to its body.
	Files map[string][]byte

	mu       sync.Mutex
	requests []Request
	failures map[string][]int
}

// NewServer starts a fake with the account used throughout the tests:
// tier "e", account 123, client 456, token "tok", PIN "123456".
func NewServer() *Server {
	s := &Server{
		Email:     "me@example.com",
		Password:  "hunter22",
		PIN:       "123456",
		Token:     "tok",
		AccountID: 123,
		ClientID:  456,
		Tier:      "e",
		Pages:     make(map[int][]Media),
		Files:     make(map[string][]byte),
		failures:  make(map[string][]int),
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

// FailNext makes the next len(statuses) requests to path answer with those statuses
func (s *Server) FailNext(path string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], statuses...)
}

// Requests returns a copy of every request received so far
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Count returns how many requests hit path
func (s *Server) Count(path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}

// PageRequests returns how many times the media listing asked for page
func (s *Server) PageRequests(page int) int {
	want := strconv.Itoa(page)
	n := 0
	for _, r := range s.Requests() {
		if r.Path == s.mediaPath() {
			if q, err := url.ParseQuery(r.Query); err == nil && q.Get("page") == want {
				n++
			}
		}
	}
	return n
}

func (s *Server) mediaPath() string {
	return fmt.Sprintf("/api/v1/accounts/%d/media/changed", s.AccountID)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)
	r.Post("/api/v5/account/login", s.handleLogin)
	r.Post("/api/v4/account/{account}/client/{client}/pin/verify", s.handlePin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Get("/api/v1/camera/usage", s.handleUsage)
		r.Get("/network/{network}/camera/{camera}", s.handleCamera)
		r.Get("/api/v1/accounts/{account}/media/changed", s.handleMedia)
		r.Get("/*", s.handleFile)
	})
	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
		})
		var status int
		if queued := s.failures[r.URL.Path]; len(queued) > 0 {
			status = queued[0]
			s.failures[r.URL.Path] = queued[1:]
		}
		s.mu.Unlock()

		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("TOKEN_AUTH") != s.Token {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		UniqueID string `json:"unique_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}
	if body.Email != s.Email || body.Password != s.Password || body.UniqueID == "" {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	writeJSON(w, map[string]interface{}{
		"account": map[string]interface{}{
			"account_id": s.AccountID,
			"client_id":  s.ClientID,
			"tier":       s.Tier,
		},
		"auth": map[string]interface{}{"token": s.Token},
	})
}

func (s *Server) handlePin(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("TOKEN-AUTH") != s.Token {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	if chi.URLParam(r, "account") != strconv.FormatInt(s.AccountID, 10) ||
		chi.URLParam(r, "client") != strconv.FormatInt(s.ClientID, 10) {
		http.NotFound(w, r)
		return
	}

	var body struct {
		Pin string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Pin != s.PIN {
		http.Error(w, "invalid pin", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]interface{}{"valid": true})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	networks := make([]map[string]interface{}, 0, len(s.Networks))
	for _, n := range s.Networks {
		cameras := make([]map[string]interface{}, 0, len(n.Cameras))
		for _, c := range n.Cameras {
			cameras = append(cameras, map[string]interface{}{"id": c.ID, "name": c.Name})
		}
		networks = append(networks, map[string]interface{}{
			"network_id": n.ID,
			"name":       n.Name,
			"cameras":    cameras,
		})
	}
	writeJSON(w, map[string]interface{}{"networks": networks})
}

func (s *Server) handleCamera(w http.ResponseWriter, r *http.Request) {
	for _, n := range s.Networks {
		if strconv.FormatInt(n.ID, 10) != chi.URLParam(r, "network") {
			continue
		}
		for _, c := range n.Cameras {
			if strconv.FormatInt(c.ID, 10) == chi.URLParam(r, "camera") {
				writeJSON(w, map[string]interface{}{
					"camera_status": map[string]interface{}{"thumbnail": c.Thumbnail},
				})
				return
			}
		}
	}
	http.NotFound(w, r)
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		http.Error(w, "bad page", http.StatusBadRequest)
		return
	}
	items := s.Pages[page]
	if items == nil {
		items = []Media{}
	}
	writeJSON(w, map[string]interface{}{"media": items})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	data, ok := s.Files[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
