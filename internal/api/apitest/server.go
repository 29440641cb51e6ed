// Package apitest provides an in-memory stand-in for the remote service,
// served over httptest, for use in tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/handiism/cog-bulk/internal/model"
)

const (
	// Token is the only token the server accepts.
	Token = "test-token"
	// Username and Password can be exchanged for Token.
	Username = "admin"
	Password = "secret"
)

type failure struct {
	status    int
	remaining int
}

// Server is a fake remote service.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	objects   map[model.Kind]map[model.ID]model.Object
	children  map[string][]model.ID
	contents  map[model.ID][]byte
	usernames map[string]model.ID
	failures  map[string]*failure
	requests  map[string]int
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	s := &Server{
		objects:   make(map[model.Kind]map[model.ID]model.Object),
		children:  make(map[string][]model.ID),
		contents:  make(map[model.ID][]byte),
		usernames: make(map[string]model.ID),
		failures:  make(map[string]*failure),
		requests:  make(map[string]int),
	}
	for _, k := range model.Kinds() {
		s.objects[k] = make(map[model.ID]model.Object)
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func childKey(parentKind model.Kind, parent model.ID, kind model.Kind) string {
	return fmt.Sprintf("/%s/%s/%s/", parentKind.Collection(), parent, kind.Collection())
}

// Put stores obj under a new id and returns it.
func (s *Server) Put(kind model.Kind, obj model.Object) model.ID {
	id := model.NewID()
	s.PutID(kind, id, obj)
	return id
}

// PutID stores obj under id.
func (s *Server) PutID(kind model.Kind, id model.ID, obj model.Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[kind][id] = obj
	if kind == model.KindUser {
		if name, ok := obj[model.AttrUsername].(string); ok {
			s.usernames[name] = id
		}
	}
}

// Link lists child beneath parent.
func (s *Server) Link(parentKind model.Kind, parent model.ID, kind model.Kind, child model.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := childKey(parentKind, parent, kind)
	s.children[key] = append(s.children[key], child)
}

// AddUser creates a user.
func (s *Server) AddUser(username, first, last string) model.ID {
	return s.Put(model.KindUser, model.Object{
		model.AttrUsername: username,
		model.AttrFirst:    first,
		model.AttrLast:     last,
	})
}

// AddAssignment creates an assignment.
func (s *Server) AddAssignment(name string) model.ID {
	return s.Put(model.KindAssignment, model.Object{model.AttrName: name})
}

// AddTest creates a test beneath an assignment.
func (s *Server) AddTest(asn model.ID, name string) model.ID {
	id := s.Put(model.KindTest, model.Object{
		model.AttrName:       name,
		model.AttrAssignment: asn.String(),
	})
	s.Link(model.KindAssignment, asn, model.KindTest, id)
	return id
}

// AddSubmission creates a submission beneath an assignment.
func (s *Server) AddSubmission(asn, owner model.ID, created float64) model.ID {
	id := s.Put(model.KindSubmission, model.Object{
		model.AttrAssignment:  asn.String(),
		model.AttrOwner:       owner.String(),
		model.AttrCreatedTime: created,
	})
	s.Link(model.KindAssignment, asn, model.KindSubmission, id)
	return id
}

// AddFile creates a file with contents beneath a submission.
func (s *Server) AddFile(sub model.ID, name string, contents []byte) model.ID {
	id := s.Put(model.KindFile, model.Object{model.AttrName: name})
	s.Link(model.KindSubmission, sub, model.KindFile, id)
	s.mu.Lock()
	s.contents[id] = contents
	s.mu.Unlock()
	return id
}

// AddRun creates a run beneath a submission.
func (s *Server) AddRun(sub, test, owner model.ID, status string, score float64, created float64) model.ID {
	id := s.Put(model.KindRun, model.Object{
		model.AttrSubmission:  sub.String(),
		model.AttrTest:        test.String(),
		model.AttrOwner:       owner.String(),
		model.AttrStatus:      status,
		model.AttrScore:       score,
		model.AttrCreatedTime: created,
	})
	s.Link(model.KindSubmission, sub, model.KindRun, id)
	return id
}

// Fail makes the next times requests for method and path answer with status.
// A negative times fails forever. path has the form "/files/<id>/contents/".
func (s *Server) Fail(method, path string, status, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = &failure{status: status, remaining: times}
}

// Requests returns how many times method and path were requested.
func (s *Server) Requests(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[method+" "+path]
}

// Exists reports whether an object is still stored.
func (s *Server) Exists(kind model.Kind, id model.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[kind][id]
	return ok
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := r.Method + " " + r.URL.Path
	s.requests[key]++
	if f, ok := s.failures[key]; ok && f.remaining != 0 {
		f.remaining--
		http.Error(w, "injected failure", f.status)
		return
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.URL.Path == "/my/token/" && user == Username && pass == Password {
		writeJSON(w, map[string]any{"token": Token})
		return
	}
	if user != Token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 2 && parts[0] == "my":
		s.serveMy(w, parts[1])
	case len(parts) == 3 && parts[0] == "usernames" && parts[2] == "useruuid":
		id, ok := s.usernames[parts[1]]
		if !ok {
			http.Error(w, "no such user", http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{"useruuid": id.String()})
	case len(parts) == 1:
		kind, err := model.ParseKind(parts[0])
		if err != nil {
			http.NotFound(w, r)
			return
		}
		ids := make([]model.ID, 0, len(s.objects[kind]))
		for id := range s.objects[kind] {
			ids = append(ids, id)
		}
		writeIDs(w, kind, ids)
	case len(parts) == 2:
		s.serveObject(w, r, parts[0], parts[1])
	case len(parts) == 3 && parts[0] == "files" && parts[2] == "contents":
		id, err := model.ParseID(parts[1])
		data, ok := s.contents[id]
		if err != nil || !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(data)
	case len(parts) == 3:
		kind, err := model.ParseKind(parts[2])
		if err != nil {
			http.NotFound(w, r)
			return
		}
		writeIDs(w, kind, s.children["/"+strings.Join(parts, "/")+"/"])
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) serveMy(w http.ResponseWriter, what string) {
	switch what {
	case "token":
		writeJSON(w, map[string]any{"token": Token})
	case "username":
		writeJSON(w, map[string]any{"username": Username})
	case "useruuid":
		writeJSON(w, map[string]any{"useruuid": s.usernames[Username].String()})
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) serveObject(w http.ResponseWriter, r *http.Request, collection, rawID string) {
	kind, err := model.ParseKind(collection)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	id, err := model.ParseID(rawID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	obj, ok := s.objects[kind][id]
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
	case http.MethodDelete:
		delete(s.objects[kind], id)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]any{id.String(): obj})
}

func writeIDs(w http.ResponseWriter, kind model.Kind, ids []model.ID) {
	sorted := append([]model.ID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })
	writeJSON(w, map[string]any{kind.Collection(): sorted})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
