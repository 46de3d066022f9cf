// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/chord/internal/models"
	"github.com/desertthunder/chord/internal/services"
	"golang.org/x/oauth2"
)

// MockHistory is a test double for [services.ListeningHistory]
type MockHistory struct {
	Tracks   []models.Track
	Artists  []models.Artist
	Features []models.AudioFeatures
	Err      error

	FeatureCalls atomic.Int32
	requested    []string
	mu           sync.Mutex
}

func (m *MockHistory) TopTracks(ctx context.Context, limit int) ([]models.Track, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Tracks[:min(len(m.Tracks), limit)], nil
}

func (m *MockHistory) TopArtists(ctx context.Context, limit int) ([]models.Artist, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Artists[:min(len(m.Artists), limit)], nil
}

// AudioFeatures returns the configured features whose track was requested.
func (m *MockHistory) AudioFeatures(ctx context.Context, trackIDs []string) ([]models.AudioFeatures, error) {
	m.FeatureCalls.Add(1)
	if m.Err != nil {
		return nil, m.Err
	}

	m.mu.Lock()
	m.requested = append(m.requested, trackIDs...)
	m.mu.Unlock()

	var out []models.AudioFeatures
	for _, f := range m.Features {
		if slices.Contains(trackIDs, f.TrackID) {
			out = append(out, f)
		}
	}
	return out, nil
}

// Requested returns every track ID passed to AudioFeatures.
func (m *MockHistory) Requested() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.requested)
}

func (m *MockHistory) Name() string { return "mock" }

// MockHistoryFactory hands out the same [MockHistory] for every token and records the
// tokens it saw. When Rotated is set it is handed to the refresh callback as if the
// provider had issued a new access token.
type MockHistoryFactory struct {
	History *MockHistory
	Tokens  []*oauth2.Token
	Rotated *oauth2.Token
	mu      sync.Mutex
}

func (f *MockHistoryFactory) ForToken(ctx context.Context, token *oauth2.Token, onRefresh func(*oauth2.Token)) services.ListeningHistory {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Tokens = append(f.Tokens, token)
	if f.Rotated != nil && onRefresh != nil {
		onRefresh(f.Rotated)
	}
	return f.History
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
