package cart

import (
	"context"
	"time"

	"github.com/wbtio/Amal-Center-sub000/domain"
)

func (s *Store) writeLoop() {
	defer close(s.done)
	for {
		select {
		case snap := <-s.saves:
			s.write(snap)
		case reply := <-s.flushes:
			s.drain()
			close(reply)
		case <-s.stop:
			s.drain()
			return
		}
	}
}

func (s *Store) drain() {
	select {
	case snap := <-s.saves:
		s.write(snap)
	default:
	}
}

// write failures are logged only; the in-memory cart stays authoritative.
func (s *Store) write(snap domain.CartSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
	defer cancel()

	start := time.Now()
	if err := s.persister.Save(ctx, snap); err != nil {
		s.logger.Error("cart persist failed", "items", len(snap.Items), "error", err)
		return
	}
	s.logger.Debug("cart persisted", "items", len(snap.Items), "duration_ms", time.Since(start).Milliseconds())
}

// Flush blocks until every mutation made before the call has been handed to
// the persister, or ctx is done.
func (s *Store) Flush(ctx context.Context) error {
	reply := make(chan struct{})
	select {
	case s.flushes <- reply:
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes any pending snapshot and stops the writer. The cart stays
// readable and mutable afterwards but nothing more is persisted.
func (s *Store) Close(ctx context.Context) error {
	s.closed.Do(func() { close(s.stop) })
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
