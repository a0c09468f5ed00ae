// Command cmf-bench streams a CSV dataset through a Coarse Mondrian
// Forest, sharding rows across worker goroutines and reporting a running
// error rate, following the teacher's convention of a small flag-driven
// CLI over a library package.
package main

import (
	"bufio"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/timandy/routine"

	"github.com/flier/cmf/internal/debug"
	"github.com/flier/cmf/internal/xsync"
	"github.com/flier/cmf/pkg/cmf"
	"github.com/flier/cmf/pkg/cmf/xrand"
	"github.com/flier/cmf/pkg/stats"
	"github.com/flier/cmf/pkg/xiter"
)

var (
	input      = flag.String("input", "", "path to a CSV file; last column is the integer label")
	workers    = flag.Int("workers", 1, "number of worker goroutines, each training its own forest shard")
	trees      = flag.Int("trees", 10, "number of trees per forest")
	capacity   = flag.Int("capacity", 1<<20, "arena byte budget per forest")
	lifetime   = flag.Float64("lifetime", 1.0, "Mondrian process lifetime (tau ceiling)")
	discount   = flag.Float64("gamma", 10.0, "posterior discount factor (gamma)")
	labelCount = flag.Int("labels", 2, "number of distinct labels")
	seed       = flag.Uint64("seed", 0, "RNG seed; 0 means non-deterministic")
)

type workerResult struct {
	worker int
	seen   int
	score  *stats.ErrorRate
}

func main() {
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "cmf-bench: -input is required")
		os.Exit(2)
	}

	rows, featureCount, err := loadCSV(*input)
	if err != nil {
		log.Fatalf("cmf-bench: %v", err)
	}

	shards := shard(rows, *workers)

	results := new(xsync.Map[int, *workerResult])
	var wg sync.WaitGroup

	start := time.Now()

	for w, shard := range shards {
		wg.Add(1)
		go func(w int, rows []row) {
			defer wg.Done()
			results.Store(w, runWorker(w, rows, featureCount))
		}(w, shard)
	}

	wg.Wait()

	report(results, *workers, time.Since(start))
}

type row struct {
	features []float64
	label    int
}

func loadCSV(path string) ([]row, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	reader := csv.NewReader(bufio.NewReader(f))
	reader.FieldsPerRecord = -1

	var rows []row
	featureCount := -1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("reading %s: %w", path, err)
		}
		if len(record) < 2 {
			continue
		}

		n := len(record) - 1
		if featureCount < 0 {
			featureCount = n
		}

		features := make([]float64, n)
		for i := 0; i < n; i++ {
			v, err := strconv.ParseFloat(record[i], 64)
			if err != nil {
				return nil, 0, fmt.Errorf("parsing feature %d in %s: %w", i, path, err)
			}
			features[i] = v
		}

		label, err := strconv.Atoi(record[n])
		if err != nil {
			return nil, 0, fmt.Errorf("parsing label in %s: %w", path, err)
		}

		rows = append(rows, row{features: features, label: label})
	}

	return rows, featureCount, nil
}

func shard(rows []row, n int) [][]row {
	if n < 1 {
		n = 1
	}

	shards := make([][]row, n)
	for i, r := range rows {
		shards[i%n] = append(shards[i%n], r)
	}
	return shards
}

func runWorker(worker int, rows []row, featureCount int) *workerResult {
	cfg := cmf.Config{
		FeatureCount:   featureCount,
		LabelCount:     *labelCount,
		TreeCount:      *trees,
		CapacityBytes:  *capacity,
		Lifetime:       *lifetime,
		DiscountFactor: *discount,
		ExtendType:     cmf.ExtendOriginal,
	}
	if *seed != 0 {
		cfg.Rand = xrand.NewSeeded(*seed, uint64(worker)+1)
	}

	forest, err := cmf.NewForest(cfg)
	if err != nil {
		log.Fatalf("cmf-bench: worker %d: %v", worker, err)
	}

	score := new(stats.ErrorRate)
	probs := make([]float64, *labelCount)

	for i, r := range rows {
		predicted := forest.Predict(r.features, probs)
		score.Update(r.label, predicted)
		forest.Train(r.features, r.label)

		debug.Log(nil, "train", "worker=%d seen=%d label=%d predicted=%d", worker, i+1, r.label, predicted)
	}

	return &workerResult{worker: worker, seen: len(rows), score: score}
}

func report(results *xsync.Map[int, *workerResult], n int, elapsed time.Duration) {
	gathered := make([]*workerResult, 0, n)
	for w := 0; w < n; w++ {
		if r, ok := results.Load(w); ok {
			fmt.Printf("worker %d [g%d]: seen=%d error_rate=%.4f\n", r.worker, routine.Goid(), r.seen, r.score.Score())
			gathered = append(gathered, r)
		}
	}

	totalSeen := xiter.SumBy(slices.Values(gathered), func(r *workerResult) int { return r.seen })
	sumScore := xiter.SumBy(slices.Values(gathered), func(r *workerResult) float64 { return r.score.Score() * float64(r.seen) })

	avg := 0.0
	if totalSeen > 0 {
		avg = sumScore / float64(totalSeen)
	}

	fmt.Printf("total rows=%d avg_error_rate=%.4f elapsed=%s\n", totalSeen, avg, elapsed)
}
