package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/banshee-data/calibweights/internal/monitoring"
	"github.com/banshee-data/calibweights/internal/weights"
	"golang.org/x/sync/errgroup"
)

// Evaluator composes the weight of one event. *weights.Composer
// implements it and is safe for concurrent use.
type Evaluator interface {
	Evaluate(ev weights.Event) (weights.Result, error)
}

// Summary aggregates the nominal weights of a run.
type Summary struct {
	Events   int
	Sum      float64
	Mean     float64
	Min      float64
	Max      float64
	Adjusted int
	Identity int
	Elapsed  time.Duration
}

func (s *Summary) add(r weights.Result) {
	s.Events++
	s.Sum += r.Value
	s.Min = math.Min(s.Min, r.Value)
	s.Max = math.Max(s.Max, r.Value)
	if r.Adjusted {
		s.Adjusted++
	}
	if r.Identity {
		s.Identity++
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("events=%d mean=%.6g min=%.6g max=%.6g adjusted=%d elapsed=%s",
		s.Events, s.Mean, s.Min, s.Max, s.Adjusted, s.Elapsed.Round(time.Millisecond))
}

type job struct {
	i   int
	rec weights.Record
}

type outcome struct {
	job
	res weights.Result
}

// Run evaluates every event of src with workers goroutines and writes the
// results to sink in source order. The first source, evaluation or sink
// error cancels the run.
func Run(ctx context.Context, src EventSource, eval Evaluator, sink Sink, workers int) (Summary, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	start := time.Now()
	sum := Summary{Min: math.Inf(1), Max: math.Inf(-1)}

	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan job, workers*4)
	results := make(chan outcome, workers*4)

	g.Go(func() error {
		defer close(jobs)
		for i := 0; ; i++ {
			rec, err := src.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("event %d: %w", i, err)
			}
			select {
			case jobs <- job{i: i, rec: rec}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for j := range jobs {
				res, err := eval.Evaluate(j.rec)
				if err != nil {
					return fmt.Errorf("event %d: %w", j.i, err)
				}
				select {
				case results <- outcome{job: j, res: res}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	// Results arrive out of order; hold them until their turn.
	g.Go(func() error {
		pending := make(map[int]outcome)
		next := 0
		for o := range results {
			pending[o.i] = o
			for {
				p, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				if sink != nil {
					if err := sink.Write(p.i, p.rec, p.res); err != nil {
						return fmt.Errorf("sink event %d: %w", p.i, err)
					}
				}
				sum.add(p.res)
				next++
			}
		}
		return nil
	})

	err := g.Wait()
	sum.Elapsed = time.Since(start)
	if sum.Events > 0 {
		sum.Mean = sum.Sum / float64(sum.Events)
	} else {
		sum.Min, sum.Max = 0, 0
	}
	if err != nil {
		return sum, err
	}
	monitoring.Logf("processed %s", sum)
	return sum, nil
}
