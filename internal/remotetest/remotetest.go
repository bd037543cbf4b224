// Package remotetest provides an in-memory fake of the spreadsheet-backed
// remote API for tests.
//
// The fake speaks the same protocol as the real deployment: form-encoded
// POSTs carrying token and action, answered with a bare JSON list for fetch
// and {"success": true} or {"error": "..."} objects otherwise.
package remotetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/fintrack/fintrack/internal/ledger"
)

// Path is the route the fake serves, mirroring an Apps Script /exec URL.
const Path = "/exec"

// Call records one request received by the fake.
type Call struct {
	Action ledger.Action
	Form   url.Values
}

// Failure is a canned response returned instead of normal processing.
type Failure struct {
	Status int
	Body   string
}

// Server is the fake remote API.
type Server struct {
	Token string

	mu       sync.Mutex
	txs      map[string]ledger.Transaction
	calls    []Call
	failures map[ledger.Action][]Failure
	rejectID map[string]string

	srv *httptest.Server
}

// New starts a fake remote accepting token.
func New(token string) *Server {
	s := &Server{
		Token:    token,
		txs:      make(map[string]ledger.Transaction),
		failures: make(map[ledger.Action][]Failure),
		rejectID: make(map[string]string),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post(Path, s.handle)

	s.srv = httptest.NewServer(r)
	return s
}

// URL returns the endpoint to configure a transport client with.
func (s *Server) URL() string {
	return s.srv.URL + Path
}

// Close shuts the server down. Later calls fail with connection errors.
func (s *Server) Close() {
	s.srv.Close()
}

// Seed stores transactions as if they were already in the sheet.
func (s *Server) Seed(txs ...ledger.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range txs {
		s.txs[tx.ID] = tx
	}
}

// Transactions returns the stored transactions ordered by date then id.
func (s *Server) Transactions() []ledger.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

func (s *Server) sortedLocked() []ledger.Transaction {
	out := make([]ledger.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Calls returns every request received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount returns how many requests were received for action.
func (s *Server) CallCount(action ledger.Action) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Action == action {
			n++
		}
	}
	return n
}

// FailNext queues a canned response for the next request with action.
func (s *Server) FailNext(action ledger.Action, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[action] = append(s.failures[action], f)
}

// RejectID makes every request carrying id fail with message until cleared
// with an empty message.
func (s *Server) RejectID(id, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if message == "" {
		delete(s.rejectID, id)
		return
	}
	s.rejectID[id] = message
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	action := ledger.Action(r.PostForm.Get("action"))

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Action: action, Form: r.PostForm})

	if queued := s.failures[action]; len(queued) > 0 {
		f := queued[0]
		s.failures[action] = queued[1:]
		w.WriteHeader(f.Status)
		_, _ = w.Write([]byte(f.Body))
		return
	}

	if r.PostForm.Get("token") != s.Token {
		writeJSON(w, map[string]string{"error": "token invalid"})
		return
	}

	if msg, ok := s.rejectID[r.PostForm.Get("id")]; ok {
		writeJSON(w, map[string]string{"error": msg})
		return
	}

	switch action {
	case ledger.ActionFetch:
		writeJSON(w, s.sortedLocked())

	case ledger.ActionAdd, ledger.ActionUpdate:
		tx, errMsg := txFromForm(r.PostForm)
		if errMsg != "" {
			writeJSON(w, map[string]string{"error": errMsg})
			return
		}
		if _, exists := s.txs[tx.ID]; action == ledger.ActionUpdate && !exists {
			writeJSON(w, map[string]string{"error": "transaction not found"})
			return
		}
		s.txs[tx.ID] = tx
		writeJSON(w, map[string]interface{}{"success": true, "id": tx.ID})

	case ledger.ActionDelete:
		id := r.PostForm.Get("id")
		if _, exists := s.txs[id]; !exists {
			writeJSON(w, map[string]string{"error": "transaction not found"})
			return
		}
		delete(s.txs, id)
		writeJSON(w, map[string]interface{}{"success": true})

	default:
		writeJSON(w, map[string]string{"error": "unknown action"})
	}
}

func txFromForm(form url.Values) (ledger.Transaction, string) {
	id := form.Get("id")
	if id == "" {
		return ledger.Transaction{}, "missing id"
	}
	amount, err := decimal.NewFromString(form.Get("amount"))
	if err != nil {
		return ledger.Transaction{}, "invalid amount"
	}
	date, err := ledger.ParseDate(form.Get("date"))
	if err != nil {
		return ledger.Transaction{}, "invalid date"
	}
	return ledger.Transaction{ID: id, Date: date, Amount: amount, Note: form.Get("note")}, ""
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
