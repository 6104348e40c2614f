// Package modeltest provides an in-memory model backend for tests.
//
// A model is plain text: comma-separated class scores such as "0.9,0.1".
// The resulting graph ignores its input and always returns those scores.
package modeltest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/Brownie44l1/vision-api/internal/domain"
	"github.com/Brownie44l1/vision-api/internal/model"
)

// Compiler compiles text score lists into Graphs.
type Compiler struct {
	mu     sync.Mutex
	graphs []*Graph
}

var _ model.Compiler = (*Compiler)(nil)

func (c *Compiler) Compile(data []byte, shape domain.InputShape) (model.Graph, error) {
	var scores []float32
	for _, field := range strings.Split(strings.TrimSpace(string(data)), ",") {
		field = strings.TrimSpace(field)
		if field == "nan" {
			scores = append(scores, float32(math.NaN()))
			continue
		}
		v, err := strconv.ParseFloat(field, 32)
		if err != nil {
			return nil, domain.NewLoadError("parsing model", fmt.Errorf("invalid score %q: %w", field, err))
		}
		scores = append(scores, float32(v))
	}

	g := &Graph{Scores: scores, Shape: shape}
	c.mu.Lock()
	c.graphs = append(c.graphs, g)
	c.mu.Unlock()
	return g, nil
}

// Graphs returns every graph compiled so far, oldest first.
func (c *Compiler) Graphs() []*Graph {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Graph(nil), c.graphs...)
}

// Graph returns fixed scores and records what it was run with.
type Graph struct {
	Scores []float32
	Shape  domain.InputShape
	// RunErr, when set, is returned by every Run.
	RunErr error

	mu        sync.Mutex
	runs      int
	lastInput []float32
	closed    bool
}

func (g *Graph) Run(input []float32) ([]float32, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, errors.New("graph is closed")
	}
	g.runs++
	g.lastInput = append([]float32(nil), input...)
	if g.RunErr != nil {
		return nil, g.RunErr
	}
	return append([]float32(nil), g.Scores...), nil
}

func (g *Graph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}

// Runs is the number of forward passes executed.
func (g *Graph) Runs() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.runs
}

// LastInput is a copy of the most recent NCHW input.
func (g *Graph) LastInput() []float32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]float32(nil), g.lastInput...)
}

// Closed reports whether the graph was released.
func (g *Graph) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Source serves fixed model and label bytes.
type Source struct {
	Name     string
	Model    []byte
	Labels   []byte
	ModelErr error
	LabelErr error
}

var _ model.Source = (*Source)(nil)

// NewSource builds a Source from a score list and newline-joined labels.
func NewSource(scores string, labels ...string) *Source {
	return &Source{
		Name:   "test",
		Model:  []byte(scores),
		Labels: []byte(strings.Join(labels, "\n")),
	}
}

func (s *Source) ModelBytes(ctx context.Context) ([]byte, error) {
	if s.ModelErr != nil {
		return nil, s.ModelErr
	}
	return s.Model, nil
}

func (s *Source) LabelBytes(ctx context.Context) ([]byte, error) {
	if s.LabelErr != nil {
		return nil, s.LabelErr
	}
	return s.Labels, nil
}

func (s *Source) String() string {
	return s.Name
}
