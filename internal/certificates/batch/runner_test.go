package batch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"certificate-studio/generator-backend/internal/assets"
	"certificate-studio/generator-backend/internal/certificates"
	"certificate-studio/generator-backend/internal/certificates/export"
	"certificate-studio/generator-backend/internal/certificates/render"
	"certificate-studio/generator-backend/internal/templates"
)

// MockGenerator is a mock implementation of Generator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, req *templates.GenerationRequest) (*certificates.GenerationResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*certificates.GenerationResult), args.Error(1)
}

// memorySink keeps results in memory.
type memorySink struct {
	mu      sync.Mutex
	results map[string][]byte
	fail    string
}

func (s *memorySink) Put(ctx context.Context, result *certificates.GenerationResult) (string, error) {
	if result.Code == s.fail {
		return "", errors.New("sink full")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results == nil {
		s.results = make(map[string][]byte)
	}
	s.results[result.Code] = result.PDF
	return "mem://" + result.Code, nil
}

func forName(name string) interface{} {
	return mock.MatchedBy(func(req *templates.GenerationRequest) bool {
		return req.FieldValues["name"] == name
	})
}

func TestRunner_RecordsPerRowOutcomes(t *testing.T) {
	generator := new(MockGenerator)
	sink := &memorySink{fail: "cert_c"}
	runner := NewRunner(generator, sink, RunnerConfig{MaxConcurrent: 2}, zap.NewNop())

	generator.On("Generate", mock.Anything, forName("A")).
		Return(&certificates.GenerationResult{Code: "cert_a", FileName: "certificate-A.pdf", PDF: []byte("a")}, nil)
	generator.On("Generate", mock.Anything, forName("B")).
		Return(nil, errors.New("render failed"))
	generator.On("Generate", mock.Anything, forName("C")).
		Return(&certificates.GenerationResult{Code: "cert_c", FileName: "certificate-C.pdf", PDF: []byte("c")}, nil)

	recipients := []Recipient{
		{Row: 2, Values: map[string]string{"name": "A"}},
		{Row: 3, Values: map[string]string{"name": "B"}, Code: "cert_b"},
		{Row: 4, Values: map[string]string{"name": "C"}},
	}

	report, err := runner.Run(context.Background(), rosterTemplate(), recipients)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
	require.Len(t, report.Outcomes, 3)

	assert.Equal(t, Outcome{Row: 2, Code: "cert_a", FileName: "certificate-A.pdf", Location: "mem://cert_a"}, report.Outcomes[0])
	assert.Equal(t, 3, report.Outcomes[1].Row)
	assert.Equal(t, "cert_b", report.Outcomes[1].Code)
	assert.EqualError(t, report.Outcomes[1].Err, "render failed")
	assert.Equal(t, "failed", report.Outcomes[2].Status())
	assert.Equal(t, "sink full", report.Outcomes[2].Error())

	assert.Equal(t, []byte("a"), sink.results["cert_a"])
	generator.AssertExpectations(t)
}

// countingGenerator tracks how many calls run at once.
type countingGenerator struct {
	active, peak atomic.Int32
}

func (g *countingGenerator) Generate(ctx context.Context, req *templates.GenerationRequest) (*certificates.GenerationResult, error) {
	n := g.active.Add(1)
	defer g.active.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return &certificates.GenerationResult{Code: req.FieldValues["name"], FileName: "x.pdf"}, nil
}

func TestRunner_BoundsConcurrency(t *testing.T) {
	generator := &countingGenerator{}
	runner := NewRunner(generator, &memorySink{}, RunnerConfig{MaxConcurrent: 3}, zap.NewNop())

	recipients := make([]Recipient, 12)
	for i := range recipients {
		recipients[i] = Recipient{Row: i + 2, Values: map[string]string{"name": string(rune('a' + i))}}
	}

	report, err := runner.Run(context.Background(), rosterTemplate(), recipients)
	require.NoError(t, err)

	assert.Equal(t, 12, report.Succeeded)
	assert.LessOrEqual(t, generator.peak.Load(), int32(3))
}

func TestRunner_CanceledContext(t *testing.T) {
	generator := new(MockGenerator)
	runner := NewRunner(generator, &memorySink{}, DefaultRunnerConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := runner.Run(ctx, rosterTemplate(), []Recipient{{Row: 2}, {Row: 3}})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Equal(t, 2, report.Failed)
	generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestRunner_EndToEndDirSink(t *testing.T) {
	fonts, err := render.NewFontBook()
	require.NoError(t, err)
	compositor := render.NewCompositor(assets.NewResolver(assets.ResolverOptions{}, zap.NewNop()), fonts, render.DefaultOptions(), zap.NewNop())
	svc := certificates.NewService(compositor, export.NewPDFExporter(export.DefaultPDFOptions()), nil, zap.NewNop())

	out := t.TempDir()
	runner := NewRunner(svc, &DirSink{Dir: out}, RunnerConfig{MaxConcurrent: 2}, zap.NewNop())

	recipients := []Recipient{
		{Row: 2, Values: map[string]string{"name": "Ada"}, Code: "cert_1"},
		{Row: 3, Values: map[string]string{"name": "Ada"}, Code: "cert_2"},
	}
	report, err := runner.Run(context.Background(), rosterTemplate(), recipients)
	require.NoError(t, err)
	require.Equal(t, 2, report.Succeeded)

	for _, o := range report.Outcomes {
		assert.Equal(t, filepath.Join(out, o.Code+"-certificate-Ada.pdf"), o.Location)
		data, err := os.ReadFile(o.Location)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	}
}
