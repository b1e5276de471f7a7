package download

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

const chunkSize = 32 * 1024

// ChunkStream is a finite, non-restartable sequence of body chunks. The
// returned slice is only valid until the next call to Next.
type ChunkStream struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
	buf     []byte
	err     error
}

func newChunkStream(ctx context.Context, r io.Reader, limiter *rate.Limiter) *ChunkStream {
	return &ChunkStream{
		ctx:     ctx,
		r:       r,
		limiter: limiter,
		buf:     make([]byte, chunkSize),
	}
}

// Next returns the next chunk, or io.EOF once the body is exhausted.
func (s *ChunkStream) Next() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	for {
		n, err := s.r.Read(s.buf)
		if err != nil {
			s.err = err
		}
		if n > 0 {
			if werr := s.wait(n); werr != nil {
				s.err = werr
				return nil, werr
			}
			return s.buf[:n], nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// wait blocks until the limiter allows n more bytes. WaitN rejects requests
// above the burst size so large chunks are split.
func (s *ChunkStream) wait(n int) error {
	if s.limiter == nil {
		return nil
	}
	burst := s.limiter.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := s.limiter.WaitN(s.ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
