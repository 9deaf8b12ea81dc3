package transload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
)

const rejectedUploadBody = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>InvalidRequest</Code><Message>rejected by fake object store</Message><RequestId>fake</RequestId></Error>`

type recordedPut struct {
	Path   string
	Header http.Header
	Body   []byte
}

// fakeObjectStore answers path style PUT object requests.
type fakeObjectStore struct {
	status int

	mu   sync.Mutex
	puts []recordedPut
}

func newFakeObjectStore(t *testing.T, status int) (*fakeObjectStore, *httptest.Server) {
	store := &fakeObjectStore{status: status}
	server := httptest.NewServer(http.HandlerFunc(store.serveHTTP))
	t.Cleanup(server.Close)
	return store, server
}

func (s *fakeObjectStore) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.puts = append(s.puts, recordedPut{Path: r.URL.Path, Header: r.Header.Clone(), Body: body})
	s.mu.Unlock()

	if s.status != http.StatusOK {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(s.status)
		_, _ = fmt.Fprint(w, rejectedUploadBody)
		return
	}

	w.Header().Set("ETag", `"fake-etag"`)
	w.WriteHeader(http.StatusOK)
}

func (s *fakeObjectStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.puts)
}

func (s *fakeObjectStore) lastPut() recordedPut {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.puts) == 0 {
		return recordedPut{}
	}
	return s.puts[len(s.puts)-1]
}

// fakeSource serves a fixed payload and counts requests.
type fakeSource struct {
	status      int
	payload     []byte
	contentType string

	mu   sync.Mutex
	hits int
}

func newFakeSource(t *testing.T, status int, payload []byte, contentType string) (*fakeSource, *httptest.Server) {
	source := &fakeSource{status: status, payload: payload, contentType: contentType}
	server := httptest.NewServer(http.HandlerFunc(source.serveHTTP))
	t.Cleanup(server.Close)
	return source, server
}

func (s *fakeSource) serveHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits++
	s.mu.Unlock()

	if s.status != http.StatusOK {
		w.WriteHeader(s.status)
		return
	}

	if s.contentType != "" {
		w.Header().Set("Content-Type", s.contentType)
	} else {
		w.Header()["Content-Type"] = nil
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(s.payload)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.payload)
}

func (s *fakeSource) hitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits
}

func iconPayload() []byte {
	payload := make([]byte, 1024)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	return payload
}

// MockDestination ...
type MockDestination struct {
	mock.Mock
}

// Upload ...
func (m *MockDestination) Upload(ctx context.Context, spec ObjectSpec, body io.Reader) (UploadOutput, error) {
	args := m.Called(ctx, spec, body)
	return args.Get(0).(UploadOutput), args.Error(1)
}

// GivenUploadSucceeds ...
func (m *MockDestination) GivenUploadSucceeds(location string) *MockDestination {
	m.On("Upload", mock.Anything, mock.Anything, mock.Anything).
		Run(drainBody).
		Return(UploadOutput{Location: location}, nil)
	return m
}

// GivenUploadFails ...
func (m *MockDestination) GivenUploadFails(reason error) *MockDestination {
	m.On("Upload", mock.Anything, mock.Anything, mock.Anything).
		Run(drainBody).
		Return(UploadOutput{}, reason)
	return m
}

func drainBody(args mock.Arguments) {
	_, _ = io.Copy(io.Discard, args.Get(2).(io.Reader))
}

func givenMockDestination() *MockDestination {
	return new(MockDestination)
}
