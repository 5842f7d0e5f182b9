// Package fake
// Author: momentics <momentics@gmail.com>

package fake

import (
	"context"
	"sync"

	"github.com/momentics/hioload-cmdbuf/api"
	"github.com/momentics/hioload-cmdbuf/core/packet"
)

// Submitter decodes every submitted packet the way the kernel driver would
// and keeps the result.
type Submitter struct {
	mu        sync.Mutex
	submitted []*packet.Decoded
	err       error
}

// NewSubmitter creates a new fake submitter.
func NewSubmitter() *Submitter {
	return &Submitter{}
}

// SetError makes every following Submit fail with err.
func (s *Submitter) SetError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Submit implements api.Submitter.Submit.
func (s *Submitter) Submit(ctx context.Context, info api.BufferInfo, offset, length uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	end := uint64(offset) + uint64(length)
	if end > info.Size() {
		return api.ErrOutOfBounds.WithContext("offset", offset).WithContext("length", length)
	}
	d, err := packet.Decode(info.Data[offset:end])
	if err != nil {
		return err
	}
	s.submitted = append(s.submitted, d)
	return nil
}

// Submitted returns the decoded packets in submission order.
func (s *Submitter) Submitted() []*packet.Decoded {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*packet.Decoded(nil), s.submitted...)
}

var _ api.Submitter = (*Submitter)(nil)
