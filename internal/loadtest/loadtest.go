// Package loadtest fires concurrent pay requests at one endpoint and
// summarizes what came back.
package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/iliamunaev/payment-orchestration/internal/model"
)

// Config describes one run.
type Config struct {
	URL         string
	Requests    int
	Concurrency int // 0 = all requests at once
	Amount      float64
	Client      *http.Client
}

// Result summarizes a run. Status 0 counts requests that got no response.
type Result struct {
	Requests  int           `json:"requests"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	ByStatus  map[int]int   `json:"by_status"`
	Elapsed   time.Duration `json:"elapsed"`
	Latency   Latency       `json:"latency"`
}

// Latency holds response time percentiles.
type Latency struct {
	Min  time.Duration `json:"min"`
	P50  time.Duration `json:"p50"`
	P95  time.Duration `json:"p95"`
	Max  time.Duration `json:"max"`
	Mean time.Duration `json:"mean"`
}

type sample struct {
	status  int
	latency time.Duration
}

// Run sends cfg.Requests POSTs of {orderId, amount} to cfg.URL and waits
// for all of them. A request failing is recorded, not returned; Run only
// fails on invalid config or if ctx ends.
func Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.URL == "" {
		return Result{}, errors.New("loadtest: url is required")
	}
	if cfg.Requests <= 0 {
		return Result{}, errors.New("loadtest: requests must be positive")
	}
	if cfg.Amount <= 0 {
		cfg.Amount = 100.0
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}

	samples := make([]sample, cfg.Requests)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Concurrency > 0 {
		g.SetLimit(cfg.Concurrency)
	}

	start := time.Now()
	for i := 0; i < cfg.Requests; i++ {
		i := i
		g.Go(func() error {
			samples[i] = send(gctx, cfg, "order-"+uuid.NewString())
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(start)

	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("loadtest: %w", err)
	}
	return summarize(samples, elapsed), nil
}

func send(ctx context.Context, cfg Config, orderID string) sample {
	body, _ := json.Marshal(model.PaymentRequest{OrderID: orderID, Amount: cfg.Amount})

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return sample{latency: time.Since(start)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := cfg.Client.Do(req)
	if err != nil {
		return sample{latency: time.Since(start)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	return sample{status: resp.StatusCode, latency: time.Since(start)}
}

func summarize(samples []sample, elapsed time.Duration) Result {
	res := Result{
		Requests: len(samples),
		ByStatus: make(map[int]int),
		Elapsed:  elapsed,
	}

	lat := make([]time.Duration, 0, len(samples))
	var total time.Duration
	for _, s := range samples {
		res.ByStatus[s.status]++
		if s.status >= 200 && s.status < 300 {
			res.Succeeded++
		} else {
			res.Failed++
		}
		lat = append(lat, s.latency)
		total += s.latency
	}

	if len(lat) == 0 {
		return res
	}
	sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })
	res.Latency = Latency{
		Min:  lat[0],
		P50:  percentile(lat, 50),
		P95:  percentile(lat, 95),
		Max:  lat[len(lat)-1],
		Mean: total / time.Duration(len(lat)),
	}
	return res
}

// percentile returns the nearest-rank percentile of sorted.
func percentile(sorted []time.Duration, p int) time.Duration {
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

// String formats r for a terminal.
func (r Result) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "requests:  %d in %s\n", r.Requests, r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&b, "succeeded: %d\n", r.Succeeded)
	fmt.Fprintf(&b, "failed:    %d\n", r.Failed)

	codes := make([]int, 0, len(r.ByStatus))
	for c := range r.ByStatus {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	for _, c := range codes {
		label := strconv.Itoa(c)
		if c == 0 {
			label = "no response"
		}
		fmt.Fprintf(&b, "  %-11s %d\n", label, r.ByStatus[c])
	}

	l := r.Latency
	fmt.Fprintf(&b, "latency:   min=%s p50=%s p95=%s max=%s mean=%s\n",
		l.Min.Round(time.Millisecond), l.P50.Round(time.Millisecond), l.P95.Round(time.Millisecond),
		l.Max.Round(time.Millisecond), l.Mean.Round(time.Millisecond))
	return b.String()
}
