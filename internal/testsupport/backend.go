package testsupport

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

// AllocationCall records one upload allocation request seen by Backend.
type AllocationCall struct {
	Variable  string
	Filenames []string
	TargetID  string
	CommitMsg string
}

// Backend is an in-process CDBS GraphQL backend with its own storage
// endpoint. Allocated upload URLs point back at the same server.
type Backend struct {
	Server *httptest.Server
	Token  string

	mu            sync.Mutex
	names         map[string]string
	stored        map[string][]byte
	failPut       map[string]int
	allocations   []AllocationCall
	confirmations [][]string
	confirmErr    string
}

var allocationFields = map[string]string{
	"iptComponentFilesData":              "uploadComponentFiles",
	"iptStandardFilesData":               "uploadStandardFiles",
	"iptServiceFilesData":                "uploadServiceFiles",
	"iptModificationFilesData":           "uploadModificationFiles",
	"iptModificationFileFromFilesetData": "uploadFilesToFileset",
}

// NewBackend starts a fake backend that accepts token "test-token".
func NewBackend(t testing.TB) *Backend {
	t.Helper()

	b := &Backend{
		Token:   "test-token",
		names:   map[string]string{},
		stored:  map[string][]byte{},
		failPut: map[string]int{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /graphql", b.handleGraphQL)
	mux.HandleFunc("PUT /storage/{id}", b.handlePut)
	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the GraphQL endpoint.
func (b *Backend) URL() string { return b.Server.URL + "/graphql" }

// FailPut makes storage answer status for the named file.
func (b *Backend) FailPut(filename string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failPut[filename] = status
}

// FailConfirm makes uploadCompleted answer with a GraphQL error.
func (b *Backend) FailConfirm(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmErr = message
}

// Stored returns the bytes stored for filename, if any.
func (b *Backend) Stored(filename string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, name := range b.names {
		if name == filename {
			data, ok := b.stored[id]
			return data, ok
		}
	}
	return nil, false
}

// Allocations returns every allocation request received.
func (b *Backend) Allocations() []AllocationCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]AllocationCall(nil), b.allocations...)
}

// Confirmations returns the file ids of every uploadCompleted call.
func (b *Backend) Confirmations() [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]string(nil), b.confirmations...)
}

func (b *Backend) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query     string                     `json:"query"`
		Variables map[string]json.RawMessage `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.Header.Get("Authorization") != b.Token {
		writeGraphQL(w, nil, "Unauthorized")
		return
	}

	switch {
	case strings.Contains(req.Query, "__typename"):
		writeGraphQL(w, map[string]any{"__typename": "QueryRoot"}, "")
	case req.Variables["fileUuids"] != nil:
		var ids []string
		_ = json.Unmarshal(req.Variables["fileUuids"], &ids)
		b.mu.Lock()
		b.confirmations = append(b.confirmations, ids)
		confirmErr := b.confirmErr
		count := 0
		for _, id := range ids {
			if _, ok := b.stored[id]; ok {
				count++
			}
		}
		b.mu.Unlock()
		if confirmErr != "" {
			writeGraphQL(w, nil, confirmErr)
			return
		}
		writeGraphQL(w, map[string]any{"uploadCompleted": count}, "")
	default:
		for variable, field := range allocationFields {
			raw, ok := req.Variables[variable]
			if !ok {
				continue
			}
			writeGraphQL(w, map[string]any{field: b.allocate(variable, raw)}, "")
			return
		}
		writeGraphQL(w, nil, "unknown operation")
	}
}

func (b *Backend) allocate(variable string, raw json.RawMessage) []map[string]string {
	var input map[string]any
	_ = json.Unmarshal(raw, &input)
	call := AllocationCall{Variable: variable}
	if names, ok := input["filenames"].([]any); ok {
		for _, n := range names {
			if s, ok := n.(string); ok {
				call.Filenames = append(call.Filenames, s)
			}
		}
	}
	call.CommitMsg, _ = input["commitMsg"].(string)
	for key, value := range input {
		if strings.HasSuffix(key, "Uuid") {
			call.TargetID, _ = value.(string)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.allocations = append(b.allocations, call)
	files := make([]map[string]string, 0, len(call.Filenames))
	// Answer in reverse order; callers must pair by name.
	for i := len(call.Filenames) - 1; i >= 0; i-- {
		id := uuid.NewString()
		b.names[id] = call.Filenames[i]
		files = append(files, map[string]string{
			"fileUuid":  id,
			"filename":  call.Filenames[i],
			"uploadUrl": b.Server.URL + "/storage/" + id,
		})
	}
	return files
}

func (b *Backend) handlePut(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	name, ok := b.names[id]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if status := b.failPut[name]; status != 0 {
		w.WriteHeader(status)
		return
	}
	b.stored[id] = body
	w.WriteHeader(http.StatusOK)
}

func writeGraphQL(w http.ResponseWriter, data map[string]any, message string) {
	w.Header().Set("Content-Type", "application/json")
	payload := map[string]any{"data": data}
	if message != "" {
		payload["errors"] = []map[string]string{{"message": message}}
	}
	_ = json.NewEncoder(w).Encode(payload)
}
