// Package mock provides a recording engine.Client for tests.
package mock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kozaktomas/face-swap/internal/engine"
)

// Call records a single engine invocation.
type Call struct {
	Method       string // "SwapImageToImage", "RegisterFace" or "SwapVideo"
	Label        string
	Source       string
	Target       string
	Video        engine.VideoRef
	EnhanceModel string
	Persist      bool
}

// MockClient is an in-memory engine.Client.
type MockClient struct {
	mu    sync.Mutex
	calls []Call
	faces map[string]bool

	// Result returned by SwapImageToImage. A 2x2 grey image when nil.
	Result *engine.RawImage

	// Error injection
	SwapImageError error
	RegisterError  error
	SwapVideoError error
	// FailVideoAt makes the n-th SwapVideo call (1-based) return SwapVideoError.
	// Zero fails every call when SwapVideoError is set.
	FailVideoAt int

	// OnSwapVideo is invoked before a SwapVideo call returns.
	OnSwapVideo func(ctx context.Context, video engine.VideoRef)

	videoCalls int
}

// NewMockClient creates a new mock engine client
func NewMockClient() *MockClient {
	return &MockClient{faces: make(map[string]bool)}
}

func (m *MockClient) record(c Call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

// Calls returns a copy of all recorded calls in invocation order.
func (m *MockClient) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsTo returns recorded calls for one method.
func (m *MockClient) CallsTo(method string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// SwapImageToImage implements engine.Client.
func (m *MockClient) SwapImageToImage(ctx context.Context, sourcePath, targetPath, enhanceModel string) (*engine.RawImage, error) {
	m.record(Call{Method: "SwapImageToImage", Source: sourcePath, Target: targetPath, EnhanceModel: enhanceModel})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.SwapImageError != nil {
		return nil, m.SwapImageError
	}
	if m.Result != nil {
		return m.Result, nil
	}
	return engine.NewRawImage(2, 2, []byte{
		128, 128, 128, 128, 128, 128,
		128, 128, 128, 128, 128, 128,
	})
}

// RegisterFace implements engine.Client.
func (m *MockClient) RegisterFace(ctx context.Context, label string, img *engine.RawImage, persist bool) error {
	m.record(Call{Method: "RegisterFace", Label: label, Persist: persist})
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.RegisterError != nil {
		return m.RegisterError
	}
	m.mu.Lock()
	m.faces[label] = true
	m.mu.Unlock()
	return nil
}

// SwapVideo implements engine.Client. The output is a copy of the input
// written next to it.
func (m *MockClient) SwapVideo(ctx context.Context, label string, video engine.VideoRef, enhanceModel string) (engine.VideoRef, error) {
	m.record(Call{Method: "SwapVideo", Label: label, Video: video, EnhanceModel: enhanceModel})

	m.mu.Lock()
	m.videoCalls++
	n := m.videoCalls
	known := m.faces[label]
	m.mu.Unlock()

	if m.OnSwapVideo != nil {
		m.OnSwapVideo(ctx, video)
	}
	if err := ctx.Err(); err != nil {
		return engine.VideoRef{}, err
	}
	if m.SwapVideoError != nil && (m.FailVideoAt == 0 || m.FailVideoAt == n) {
		return engine.VideoRef{}, m.SwapVideoError
	}
	if !known {
		return engine.VideoRef{}, fmt.Errorf("label %q: %w", label, engine.ErrUnknownFace)
	}

	data, err := os.ReadFile(video.Path)
	if err != nil {
		return engine.VideoRef{}, fmt.Errorf("reading video: %w", err)
	}
	out := filepath.Join(filepath.Dir(video.Path), video.Stem()+"-engine.mp4")
	if err := os.WriteFile(out, data, 0o600); err != nil {
		return engine.VideoRef{}, fmt.Errorf("writing video: %w", err)
	}
	return engine.VideoRef{Name: video.Name, Path: out}, nil
}

var _ engine.Client = (*MockClient)(nil)
