package monitor

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rustyeddy/tradelab/metrics"
	"gopkg.in/yaml.v3"
)

// Source provides the live portfolio on every cycle.
type Source interface {
	Snapshot(ctx context.Context) (metrics.PortfolioInput, error)
}

type SourceFunc func(ctx context.Context) (metrics.PortfolioInput, error)

func (f SourceFunc) Snapshot(ctx context.Context) (metrics.PortfolioInput, error) { return f(ctx) }

// StaticSource serves a portfolio held in memory. Set replaces it.
type StaticSource struct {
	mu sync.RWMutex
	p  metrics.PortfolioInput
}

func NewStaticSource(p metrics.PortfolioInput) *StaticSource {
	return &StaticSource{p: p}
}

func (s *StaticSource) Set(p metrics.PortfolioInput) {
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
}

func (s *StaticSource) Snapshot(context.Context) (metrics.PortfolioInput, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.p, nil
}

// FileSource re-reads a YAML portfolio file on every cycle, so an external
// process can keep it current.
type FileSource struct {
	Path string
}

func (f FileSource) Snapshot(context.Context) (metrics.PortfolioInput, error) {
	var p metrics.PortfolioInput
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return p, fmt.Errorf("read portfolio: %w", err)
	}
	if err := yaml.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("parse portfolio %s: %w", f.Path, err)
	}
	return p, nil
}
