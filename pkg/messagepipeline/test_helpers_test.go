package messagepipeline_test

import (
	"context"
	"sync"

	"github.com/illmade-knight/go-mqttnorth/pkg/messagepipeline"
)

// ====================================================================================
// This file contains shared test doubles for the messagepipeline package tests.
// ====================================================================================

type publishCall struct {
	Topic   string
	Payload []byte
	QoS     byte
}

// MockSession records publishes and can fail or block on a given call.
type MockSession struct {
	mu         sync.Mutex
	calls      []publishCall
	closeCalls int
	// PublishFunc, if set, decides the result of the n-th (zero based) publish.
	PublishFunc func(ctx context.Context, n int, topic string) error
	CloseErr    error
}

func (s *MockSession) Publish(ctx context.Context, topic string, payload []byte, qos byte) error {
	s.mu.Lock()
	n := len(s.calls)
	s.calls = append(s.calls, publishCall{Topic: topic, Payload: payload, QoS: qos})
	fn := s.PublishFunc
	s.mu.Unlock()
	if fn != nil {
		return fn(ctx, n, topic)
	}
	return nil
}

func (s *MockSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	return s.CloseErr
}

func (s *MockSession) Calls() []publishCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]publishCall, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *MockSession) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

// MockConnector hands out a fresh MockSession per Connect unless ConnectErr is set.
type MockConnector struct {
	mu         sync.Mutex
	ConnectErr error
	// NewSession customises each session; defaults to an empty MockSession.
	NewSession func() *MockSession
	sessions   []*MockSession
}

func (c *MockConnector) Connect(_ context.Context) (messagepipeline.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ConnectErr != nil {
		return nil, c.ConnectErr
	}
	s := &MockSession{}
	if c.NewSession != nil {
		s = c.NewSession()
	}
	c.sessions = append(c.sessions, s)
	return s, nil
}

func (c *MockConnector) Broker() string { return "mock://broker" }

func (c *MockConnector) Sessions() []*MockSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*MockSession(nil), c.sessions...)
}
