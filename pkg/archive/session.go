package archive

import (
	"context"

	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/types"
)

// session keeps one decoder open for the length of a read-only transaction.
// The decoder is owned by a single goroutine; reads are sent to it and
// answered over a reply channel.
type session struct {
	requests chan readRequest
	quit     chan struct{}
	stopped  chan struct{}
}

type readRequest struct {
	name  string
	reply chan readReply
}

type readReply struct {
	data []byte
	err  error
}

// BeginReadOnlyTransaction opens the decoder and keeps it open until
// EndReadOnlyTransaction. Sequential formats are extracted into memory up
// front; that step reports to progress and stops when ctx is cancelled.
func (a *Archive) BeginReadOnlyTransaction(ctx context.Context, progress types.Progress) error {
	if progress == nil {
		progress = types.NoProgress{}
	}
	if err := ctx.Err(); err != nil {
		return errors.FromContext(err)
	}

	a.mu.Lock()
	if a.session != nil {
		a.mu.Unlock()
		return errors.New(errors.ErrInvalidState, "read-only transaction already active")
	}
	total := len(a.names)
	a.mu.Unlock()

	s := &session{
		requests: make(chan readRequest),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	ready := make(chan error, 1)
	go s.serve(ctx, a, total, progress, ready)

	if err := <-ready; err != nil {
		return err
	}

	a.mu.Lock()
	a.session = s
	a.mu.Unlock()
	a.logger.Debug().Msg("Read-only transaction started")
	return nil
}

// EndReadOnlyTransaction releases the decoder. It is safe to call when no
// transaction is active.
func (a *Archive) EndReadOnlyTransaction() {
	a.mu.Lock()
	s := a.session
	a.session = nil
	a.mu.Unlock()

	if s == nil {
		return
	}
	close(s.quit)
	<-s.stopped
	a.logger.Debug().Msg("Read-only transaction ended")
}

// InReadOnlyTransaction reports whether a read-only transaction is active.
func (a *Archive) InReadOnlyTransaction() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session != nil
}

func (s *session) serve(ctx context.Context, a *Archive, total int, progress types.Progress, ready chan<- error) {
	defer close(s.stopped)

	c, err := openPath(a.fsys, a.path)
	if err != nil {
		ready <- err
		return
	}
	defer func() { _ = c.close() }()

	var cache map[string][]byte
	if seq, ok := c.(sequential); ok {
		cache, err = preload(ctx, seq, total, progress)
		if err != nil {
			ready <- err
			return
		}
	}
	ready <- nil

	for {
		var req readRequest
		select {
		case req = <-s.requests:
		case <-s.quit:
			return
		}
		if cache != nil {
			data, ok := cache[key(req.name)]
			if !ok {
				req.reply <- readReply{err: errEntryMissing(req.name)}
				continue
			}
			req.reply <- readReply{data: append([]byte(nil), data...)}
			continue
		}
		stored, ok := lookup(c.entries(), req.name)
		if !ok {
			req.reply <- readReply{err: errEntryMissing(req.name)}
			continue
		}
		data, err := c.read(stored)
		req.reply <- readReply{data: data, err: err}
	}
}

func preload(ctx context.Context, seq sequential, total int, progress types.Progress) (map[string][]byte, error) {
	progress.Start("Preparing archive", total)
	defer progress.Done()

	cache := make(map[string][]byte, total)
	err := seq.readAll(func(name string, data []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		cache[key(name)] = data
		progress.Step(name)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.FromContext(ctx.Err())
		}
		return nil, errors.Wrap(err, errors.ErrArchiveRead, "failed to extract archive")
	}
	return cache, nil
}

func (s *session) read(name string) ([]byte, error) {
	reply := make(chan readReply, 1)
	select {
	case s.requests <- readRequest{name: name, reply: reply}:
	case <-s.stopped:
		return nil, errors.New(errors.ErrInvalidState, "read-only transaction has ended")
	}
	r := <-reply
	if r.err != nil {
		return nil, errors.Wrapf(r.err, errors.ErrArchiveRead, "failed to read %s", name)
	}
	return r.data, nil
}
