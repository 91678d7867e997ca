package ftpsession

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// Parallel runs each job on its own Session, at most limit at a time
// (limit <= 0 means no limit). newSession is called once per job and the
// session is closed when the job finishes.
//
// Every job runs even if others fail. The returned error is a
// *multierror.Error listing each failed job, or nil.
func Parallel(ctx context.Context, limit int, newSession func() (*Session, error), jobs ...Job) error {
	var (
		mu   sync.Mutex
		errs *multierror.Error
	)
	fail := func(j Job, err error) {
		mu.Lock()
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", j, err))
		mu.Unlock()
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for _, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				fail(j, err)
				return nil
			}
			s, err := newSession()
			if err != nil {
				fail(j, err)
				return nil
			}
			defer s.Close()
			if err := s.Run(ctx, j); err != nil {
				fail(j, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return errs.ErrorOrNil()
}
