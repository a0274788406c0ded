/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package listener

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Run starts every listener concurrently and blocks until ctx is canceled
// or one of them exits with an error, in which case the rest are closed so
// the whole process shuts down together - mirroring ListenWaitNotify's
// wait-for-every-server behavior, but errgroup-coordinated rather than a
// bare sync.WaitGroup so a single listener's failure brings the others down
// instead of leaking goroutines.
func Run(ctx context.Context, listeners ...Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, l := range listeners {
		l := l
		g.Go(func() error {
			err := l.Serve(gctx)
			if gctx.Err() != nil {
				return nil
			}
			return err
		})
	}

	go func() {
		<-gctx.Done()
		for _, l := range listeners {
			_ = l.Close()
		}
	}()

	return g.Wait()
}
