package eclypse

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/eclypse-bridge/internal/bacnet"
)

const (
	testUser     = "admin"
	testPassword = "secret"
	testSession  = "abc123"
)

// recordedRequest is one request seen by the fake controller.
type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Cookie string
	Body   []byte
}

// fakeController is an httptest stand-in for an Eclypse REST API.
type fakeController struct {
	mu sync.Mutex

	// session is handed out as a cookie on successful Basic requests.
	// Empty means the controller never sets one.
	session string

	// rejectSessions answers 401 to every cookie-authenticated request.
	rejectSessions bool

	// statuses are returned, in order, before requests are served normally.
	statuses []int

	info     DeviceInfo
	catalog  map[string][]catalogEntry // slug -> entries
	values   map[string]any            // "type_instance/property" -> value
	extra    []bacnet.PropertyValue    // appended to every read response
	rawExtra []string                  // appended verbatim after extra
	requests []recordedRequest
	writes   [][]bacnet.WriteDescriptor

	srv *httptest.Server
}

func newFakeController(t *testing.T) *fakeController {
	t.Helper()
	f := &fakeController{
		session: testSession,
		info: DeviceInfo{
			ControllerName:  "Office AHU",
			HostName:        "ECY-OFFICE",
			ModelName:       "ECY-S1000",
			SoftwareVersion: "1.18.21",
		},
		catalog: make(map[string][]catalogEntry),
		values:  make(map[string]any),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serveHTTP))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeController) set(object, property string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[object+"/"+property] = value
}

func (f *fakeController) failNext(statuses ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, statuses...)
}

func (f *fakeController) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func (f *fakeController) recordedWrites() [][]bacnet.WriteDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]bacnet.WriteDescriptor(nil), f.writes...)
}

func (f *fakeController) count(path string) int {
	n := 0
	for _, r := range f.recorded() {
		if strings.HasSuffix(r.Path, path) {
			n++
		}
	}
	return n
}

func basicHeader(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}

func (f *fakeController) serveHTTP(w http.ResponseWriter, r *http.Request) {
	//nolint:errcheck // test server
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Auth:   r.Header.Get("Authorization"),
		Cookie: r.Header.Get("Cookie"),
		Body:   body,
	})

	cookie := r.Header.Get("Cookie")
	switch {
	case cookie != "":
		if f.rejectSessions || cookie != "SESSION="+f.session {
			f.mu.Unlock()
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	case r.Header.Get("Authorization") != basicHeader(testUser, testPassword):
		f.mu.Unlock()
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if len(f.statuses) > 0 {
		status := f.statuses[0]
		f.statuses = f.statuses[1:]
		f.mu.Unlock()
		http.Error(w, "controller busy", status)
		return
	}

	if cookie == "" && f.session != "" {
		http.SetCookie(w, &http.Cookie{Name: "SESSION", Value: f.session})
	}
	f.mu.Unlock()

	f.route(w, r, body)
}

func (f *fakeController) route(w http.ResponseWriter, r *http.Request, body []byte) {
	path := strings.TrimPrefix(r.URL.Path, apiRoot+"/")

	switch {
	case path == deviceInfoPath:
		writeJSON(w, f.info)

	case path == readPropertyMultiple && r.Method == http.MethodPost:
		var req readRequest
		if err := json.Unmarshal(body, &req); err != nil || req.Encode != "text" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		out := make([]any, 0, len(req.PropertyReferences))
		for _, ref := range req.PropertyReferences {
			v, ok := f.values[bacnet.ObjectName(ref.Type, ref.Instance)+"/"+ref.Property]
			if !ok {
				continue
			}
			out = append(out, bacnet.PropertyValue{Type: ref.Type, Instance: ref.Instance, Property: ref.Property, Value: v})
		}
		for _, v := range f.extra {
			out = append(out, v)
		}
		for _, raw := range f.rawExtra {
			out = append(out, json.RawMessage(raw))
		}
		f.mu.Unlock()
		writeJSON(w, out)

	case path == writePropertyMultiple && r.Method == http.MethodPost:
		var req writeRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.writes = append(f.writes, req.PropertyReferences)
		for _, wd := range req.PropertyReferences {
			f.values[wd.ObjectName()+"/"+wd.Property] = wd.Value
		}
		f.mu.Unlock()
		writeJSON(w, map[string]any{})

	case strings.HasPrefix(path, objectsRoot+"/"):
		f.routeObject(w, r, strings.Split(strings.TrimPrefix(path, objectsRoot+"/"), "/"))

	default:
		http.NotFound(w, r)
	}
}

func (f *fakeController) routeObject(w http.ResponseWriter, r *http.Request, parts []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch len(parts) {
	case 1:
		entries, ok := f.catalog[parts[0]]
		if !ok {
			entries = []catalogEntry{}
		}
		writeJSON(w, entries)
	case 2:
		writeJSON(w, map[string]any{"slug": parts[0], "instance": parts[1]})
	case 3:
		if parts[2] != "trend" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		writeJSON(w, map[string]any{
			"bySequenceNumber": q.Get("bySequenceNumber"),
			"start":            q.Get("start"),
			"end":              q.Get("end"),
			"records":          []any{map[string]any{"sequence": 1, "value": 70.1}},
		})
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	//nolint:errcheck // test server
	json.NewEncoder(w).Encode(v)
}

// testRetry keeps retry tests fast.
var testRetry = RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond}

// newTestClient returns a client for f tracking the named objects, each
// with a dynamic presentValue.
func newTestClient(t *testing.T, f *fakeController, names ...string) *Client {
	t.Helper()
	reg := bacnet.NewRegistry()
	for _, name := range names {
		obj, err := bacnet.NewObject(bacnet.ObjectParams{Name: name})
		if err != nil {
			t.Fatalf("NewObject(%q) error = %v", name, err)
		}
		if err := obj.AddProperty(bacnet.NewPropertyRecord(obj.Type(), obj.Instance(), bacnet.PropPresentValue)); err != nil {
			t.Fatal(err)
		}
		reg.Add(obj)
	}

	c, err := NewClient(ClientOptions{
		Host:     f.srv.URL,
		Username: testUser,
		Password: testPassword,
		Registry: reg,
		Retry:    testRetry,
		Timeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}
