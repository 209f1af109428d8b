package watari

import (
	"context"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DownloadSegments fetches and decrypts segments with up to goroutines
// parallel workers and writes the payloads to w in playlist order. The
// first failing segment cancels the remaining work.
func DownloadSegments(ctx context.Context, segments []Segment, goroutines int, w io.Writer) error {
	if len(segments) == 0 {
		return nil
	}
	if goroutines < 1 {
		goroutines = 1
	}
	if c := segments[0].client; c != nil {
		c.log.Debugf("downloading %d segments with %d goroutines", len(segments), goroutines)
	}

	var (
		mu      sync.Mutex
		pending = make(map[int][]byte)
		next    int
		werr    error
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(goroutines)
	for i := range segments {
		i, segment := i, &segments[i]
		g.Go(func() error {
			data, err := segment.Fetch(ctx)
			if err != nil {
				return err
			}
			data, err = DecryptSegment(data, segment.Key)
			if err != nil {
				return err
			}

			// Completed segments park in pending until every earlier
			// one has been written.
			mu.Lock()
			defer mu.Unlock()
			if werr != nil {
				return werr
			}
			pending[i] = data
			for {
				chunk, ok := pending[next]
				if !ok {
					return nil
				}
				delete(pending, next)
				if _, err := w.Write(chunk); err != nil {
					werr = err
					return err
				}
				next++
			}
		})
	}
	return g.Wait()
}
