package store

import (
	"context"
	"fmt"
	"time"

	"github.com/emberhome/ember/internal/auth/storage"
)

// scheduleSave records doc as the latest pending snapshot and wakes the
// flush task. Snapshots within the coalescing window replace each other so
// a burst of mutations produces one physical write of the final state.
func (s *Store) scheduleSave(doc *storage.Document) {
	s.pendingMu.Lock()
	s.pending = doc
	s.pendingMu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// flushLoop is the background flush task. It debounces save requests by the
// configured window, serves explicit Flush calls immediately, and performs
// a final write on Close.
func (s *Store) flushLoop() {
	defer close(s.done)

	var timer *time.Timer
	var timerC <-chan time.Time

	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-s.kick:
			if timerC == nil {
				timer = time.NewTimer(s.saveDelay)
				timerC = timer.C
			}

		case <-timerC:
			timer = nil
			timerC = nil
			if err := s.writePending(context.Background()); err != nil {
				s.logger.Printf("deferred auth save failed: %v", err)
			}

		case req := <-s.flushReq:
			stopTimer()
			req.ack <- s.writePending(req.ctx)

		case <-s.closing:
			stopTimer()
			s.closeErr = s.writePending(context.Background())
			return
		}
	}
}

// writePending saves the latest pending snapshot, if any. On failure the
// snapshot is retained so a later flush can retry.
func (s *Store) writePending(ctx context.Context) error {
	s.pendingMu.Lock()
	doc := s.pending
	s.pending = nil
	s.pendingMu.Unlock()

	if doc == nil {
		return nil
	}
	if err := s.backend.Save(ctx, doc); err != nil {
		s.pendingMu.Lock()
		if s.pending == nil {
			s.pending = doc
		}
		s.pendingMu.Unlock()
		return fmt.Errorf("save auth document: %w", err)
	}
	return nil
}

// Flush forces any pending save to the backend before returning.
func (s *Store) Flush(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	req := flushRequest{ctx: ctx, ack: make(chan error, 1)}
	select {
	case s.flushReq <- req:
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.ack:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes any pending save and stops the flush task. It is safe to
// call more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
	})
	<-s.done
	return s.closeErr
}
