package check

import (
	"context"
	"errors"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/danpilch/gonytprof/pkg/format"
	"github.com/danpilch/gonytprof/pkg/reader"
)

// Checker verifies trace files concurrently.
type Checker struct {
	workers int
	logger  *logrus.Logger
}

// NewChecker creates a checker running up to workers verifications at
// once; zero or less means GOMAXPROCS.
func NewChecker(workers int, logger *logrus.Logger) *Checker {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	return &Checker{
		workers: workers,
		logger:  logger,
	}
}

// RunAll verifies every path and returns the results in input order.
// A failing file never stops the others; only cancellation of ctx
// returns an error.
func (c *Checker) RunAll(ctx context.Context, paths []string) ([]Check, error) {
	checks := make([]Check, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			checks[i] = c.RunOne(path)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return checks, nil
}

// RunOne verifies a single file.
func (c *Checker) RunOne(path string) Check {
	log := c.logger.WithField("path", path)
	log.Debug("verifying trace")

	res, err := verifyFile(path)
	if err != nil {
		chk := Check{Path: path, Status: StatusCorrupt, Err: err}
		var fe *format.FormatError
		if errors.As(err, &fe) {
			chk.Offset = fe.Offset
		} else {
			chk.Status = StatusUnreadable
		}
		log.WithError(err).Warn("trace failed verification")
		return chk
	}

	log.WithField("chunks", len(res.Chunks)).Debug("trace verified")
	return Check{
		Path:   path,
		Status: StatusOK,
		Chunks: len(res.Chunks),
		Tags:   res.Tags(),
		Size:   res.Size,
	}
}

func verifyFile(path string) (reader.VerifyResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return reader.VerifyResult{}, &format.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()
	return reader.Verify(f)
}
