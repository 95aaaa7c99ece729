// Package holvitest runs an in-memory stand-in for the Holvi invoice API.
package holvitest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"
)

// Request is a request the server received.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   map[string]any
}

// Server serves /api/pool/{pool}/invoice/ routes from memory.
type Server struct {
	*httptest.Server

	Pool  string
	Token string // when set, requests must carry "Authorization: Token <Token>"

	mu       sync.Mutex
	invoices map[string]map[string]any
	order    []string
	requests []Request
	seq      int
	failNext int
}

// NewServer starts a server for pool and closes it when the test ends.
func NewServer(t testing.TB, pool string) *Server {
	t.Helper()
	s := &Server{
		Pool:     pool,
		invoices: make(map[string]map[string]any),
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api/pool/{pool}/invoice").Subrouter()
	api.Use(s.record, s.auth)
	api.HandleFunc("/", s.list).Methods(http.MethodGet)
	api.HandleFunc("/", s.create).Methods(http.MethodPost)
	api.HandleFunc("/{code}/", s.get).Methods(http.MethodGet)
	api.HandleFunc("/{code}/", s.update).Methods(http.MethodPut)
	api.HandleFunc("/{code}/status/", s.status).Methods(http.MethodPut)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the API root to configure a connection with.
func (s *Server) BaseURL() string {
	return s.URL + "/api/"
}

// AddInvoice stores doc under a fresh code and returns the code.
func (s *Server) AddInvoice(doc map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store(doc)
}

// Invoice returns the stored document for code, or nil.
func (s *Server) Invoice(code string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invoices[code]
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// FailNext makes the next request answer with status.
func (s *Server) FailNext(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = status
}

func (s *Server) store(doc map[string]any) string {
	s.seq++
	code := fmt.Sprintf("inv%04d", s.seq)
	doc["code"] = code
	if doc["number"] == nil {
		doc["number"] = fmt.Sprintf("%d", s.seq)
	}
	if _, ok := doc["status"]; !ok {
		doc["status"] = "draft"
	}
	decorateItems(doc, fmt.Sprint(doc["currency"]))
	s.invoices[code] = doc
	s.order = append(s.order, code)
	return code
}

// decorateItems adds the read-only price fields Holvi returns.
func decorateItems(doc map[string]any, currency string) {
	items, _ := doc["items"].([]any)
	for _, it := range items {
		item, ok := it.(map[string]any)
		if !ok {
			continue
		}
		price, ok := item["detailed_price"].(map[string]any)
		if !ok {
			continue
		}
		price["currency"] = currency
		if _, ok := price["vat_rate"]; !ok {
			price["vat_rate"] = "24.00"
		}
	}
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := Request{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone()}
		var data []byte
		if r.Body != nil {
			data, _ = io.ReadAll(r.Body)
			if len(data) > 0 {
				_ = json.Unmarshal(data, &req.Body)
			}
		}

		s.mu.Lock()
		s.requests = append(s.requests, req)
		fail := s.failNext
		s.failNext = 0
		s.mu.Unlock()

		if fail != 0 {
			writeJSON(w, fail, map[string]any{"detail": http.StatusText(fail)})
			return
		}
		if mux.Vars(r)["pool"] != s.Pool {
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(data))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Token != "" && r.Header.Get("Authorization") != "Token "+s.Token {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Invalid token."})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) list(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	docs := make([]any, 0, len(s.order))
	for _, code := range s.order {
		docs = append(docs, s.invoices[code])
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	doc, ok := s.invoices[mux.Vars(r)["code"]]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var doc map[string]any
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil || rejectItems(doc) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "Invalid payload."})
		return
	}
	s.mu.Lock()
	s.store(doc)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	var doc map[string]any
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil || rejectItems(doc) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "Invalid payload."})
		return
	}

	s.mu.Lock()
	existing, ok := s.invoices[code]
	if ok {
		for k, v := range doc {
			existing[k] = v
		}
		decorateItems(existing, fmt.Sprint(existing["currency"]))
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	doc, ok := s.invoices[code]
	if ok && body["mark_as_sent"] == true {
		doc["status"] = "sent"
		doc["active"] = body["active"]
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "sent",
		"active":     body["active"],
		"send_email": body["send_email"],
	})
}

// rejectItems mirrors Holvi refusing read-only price fields on write.
func rejectItems(doc map[string]any) bool {
	items, _ := doc["items"].([]any)
	for _, it := range items {
		item, _ := it.(map[string]any)
		price, _ := item["detailed_price"].(map[string]any)
		if _, ok := price["vat_rate"]; ok {
			return true
		}
		if _, ok := price["currency"]; ok {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
