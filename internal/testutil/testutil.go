// Package testutil provides shared test helpers: temp vaults, a
// deterministic fake embedder, and a scripted completion client.
package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/llm"
	"github.com/starford/ansuz/internal/storage"
)

// TestVault creates a temporary vault directory with a storage.FS over it.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	files, err := storage.NewFS(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	return dir, files
}

// WriteDoc writes a markdown file under the vault root, creating parent
// directories as needed.
func WriteDoc(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const fakeDim = 32

// FakeEmbedder derives vectors from term counts, so texts sharing words get
// high cosine similarity. Deterministic and offline.
type FakeEmbedder struct {
	mu    sync.Mutex
	down  bool
	calls int
}

// SetDown switches the embedder into (or out of) unavailable mode.
func (f *FakeEmbedder) SetDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

// CallCount returns how many texts have been embedded so far.
func (f *FakeEmbedder) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeEmbedder) Available(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.down
}

func (f *FakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, apperr.ErrUnavailable
	}
	f.calls++
	return fakeVector(text), nil
}

func (f *FakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, apperr.ErrUnavailable
	}
	out := make([][]float32, len(texts))
	for i, tx := range texts {
		f.calls++
		out[i] = fakeVector(tx)
	}
	return out, nil
}

// fakeVector hashes each word into one of fakeDim buckets and normalizes.
func fakeVector(text string) []float32 {
	vec := make([]float32, fakeDim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%fakeDim]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}

// ScriptedCompleter replays a fixed sequence of responses and records every
// request it saw. Once the script runs out it keeps returning the last
// response; an empty script always answers with a final-answer line.
type ScriptedCompleter struct {
	mu       sync.Mutex
	Script   []llm.Response
	Requests []llm.Request
	pos      int
}

func (s *ScriptedCompleter) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Requests = append(s.Requests, req)
	if len(s.Script) == 0 {
		return &llm.Response{Text: "FINAL_ANSWER: done"}, nil
	}
	resp := s.Script[s.pos]
	if s.pos < len(s.Script)-1 {
		s.pos++
	}
	if req.OnChunk != nil && resp.Text != "" && len(resp.ToolCalls) == 0 {
		req.OnChunk(resp.Text)
	}
	return &resp, nil
}

// RequestCount returns how many completion calls were made.
func (s *ScriptedCompleter) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}
