package async

import (
	"context"
	"strings"
	"sync"
)

type Errors struct {
	E []error
}

var _ error = (*Errors)(nil)

func (e Errors) Wrapped() error {
	if len(e.E) == 0 {
		return nil
	}
	return e
}

func (e Errors) Error() string {
	var sb strings.Builder
	l := len(e.E)
	for i, err := range e.E {
		sb.WriteString(err.Error())
		if i < l-1 {
			sb.WriteString(", ")
		}
	}
	return sb.String()
}

func (e Errors) Unwrap() []error {
	return e.E
}

// Map runs f over src with at most concurrencyLimit calls in flight. Unlike errgroup, a failing
// element does not stop the others: Map returns the results of every successful call, in no
// particular order, together with an Errors holding every failure. Elements not yet started
// when ctx is done are skipped and reported as ctx.Err().
func Map[T any, D any](ctx context.Context, src []T, concurrencyLimit int, f func(context.Context, T) (D, error)) ([]D, error) {
	if len(src) == 0 {
		return []D{}, nil
	}

	if concurrencyLimit <= 0 {
		concurrencyLimit = len(src)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make([]D, 0, len(src))
		errs    = Errors{}
	)

	limiter := make(chan struct{}, concurrencyLimit)

	wg.Add(len(src))
	for _, element := range src {
		select {
		case limiter <- struct{}{}:
		case <-ctx.Done():
			mu.Lock()
			errs.E = append(errs.E, ctx.Err())
			mu.Unlock()
			wg.Done()
			continue
		}

		go func(el T) {
			defer func() {
				<-limiter
				wg.Done()
			}()

			r, err := f(ctx, el)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs.E = append(errs.E, err)
				return
			}
			results = append(results, r)
		}(element)
	}

	wg.Wait()

	return results, errs.Wrapped()
}
