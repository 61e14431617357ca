// Package fake provides in-memory test doubles for the broker ports.
package fake

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/autopeer-io/hmibroker/internal/broker/core"
)

var _ core.Sender = (*Sender)(nil)

// Sender records every request and optionally fails or reacts to sends.
type Sender struct {
	next atomic.Int64

	mu       sync.Mutex
	requests []core.Request

	// Err, when set, is returned by Send for every request.
	Err error

	// OnSend, when set, runs synchronously after a request is recorded.
	OnSend func(req core.Request)
}

// NextCorrelationID returns 1, 2, 3, ...
func (s *Sender) NextCorrelationID() core.CorrelationID {
	return core.CorrelationID(s.next.Add(1))
}

// Send records req.
func (s *Sender) Send(_ context.Context, req core.Request) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	hook := s.OnSend
	s.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	return nil
}

// Requests returns a copy of everything sent so far.
func (s *Sender) Requests() []core.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Request(nil), s.requests...)
}

// Functions returns the function ids sent so far, in order.
func (s *Sender) Functions() []core.FunctionID {
	reqs := s.Requests()
	out := make([]core.FunctionID, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.FunctionID)
	}
	return out
}

// Last returns the most recent request for fn.
func (s *Sender) Last(fn core.FunctionID) (core.Request, bool) {
	reqs := s.Requests()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].FunctionID == fn {
			return reqs[i], true
		}
	}
	return core.Request{}, false
}

// Reset forgets recorded requests.
func (s *Sender) Reset() {
	s.mu.Lock()
	s.requests = nil
	s.mu.Unlock()
}

// Policy is a PolicyChecker backed by a deny list of "app/module" pairs.
type Policy struct {
	mu     sync.Mutex
	denied map[string]bool
}

// Deny rejects every operation of appID on module.
func (p *Policy) Deny(appID, module string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.denied == nil {
		p.denied = map[string]bool{}
	}
	p.denied[appID+"/"+module] = true
}

// IsOperationPermitted implements core.PolicyChecker.
func (p *Policy) IsOperationPermitted(appID, module, _ string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.denied[appID+"/"+module]
}
