package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Result gathers aggregated metrics for the run. Atomic counters avoid
// lock contention on hot paths; latencies are in nanoseconds.
type Result struct {
	TotalRequests int64
	SuccessCount  int64
	ErrorCount    int64
	LatencySum    int64
	P95Latency    int64
}

const (
	baseURL        = "http://localhost:8080"
	fixedWorkers   = 50
	fixedRPSTarget = 500
	fixedDuration  = 30 * time.Second
	defaultTimeout = 30 * time.Second
)

// donationAmount is small and constant so the consistency check can
// predict the expected raised total exactly.
var donationAmount = decimal.RequireFromString("0.0100")

func main() {
	workers := fixedWorkers
	rps := fixedRPSTarget
	duration := fixedDuration

	transport := &http.Transport{
		MaxIdleConns:        workers * 4,
		MaxIdleConnsPerHost: workers * 4,
		IdleConnTimeout:     90 * time.Second,
	}
	httpClient := &http.Client{
		Transport: transport,
		Timeout:   defaultTimeout,
	}

	campaignID, err := createCampaign(httpClient)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create campaign: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("created campaign %d\n", campaignID)

	fmt.Println("==========================================")
	fmt.Println("chango donation load generator")
	fmt.Println("==========================================")
	fmt.Printf("campaign id : %d\n", campaignID)
	fmt.Printf("target RPS  : %d\n", rps)
	fmt.Printf("duration    : %v\n", duration)
	fmt.Printf("workers     : %d\n", workers)
	fmt.Println("==========================================")

	burst := rps / workers
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var result Result
	var wg sync.WaitGroup

	// latencyChan collects latencies for P95 estimation.
	latencyChan := make(chan time.Duration, 4096)
	var trackWg sync.WaitGroup
	trackWg.Add(1)
	go func() {
		defer trackWg.Done()
		trackP95(latencyChan, &result)
	}()

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			donor := fmt.Sprintf("load-donor-%03d", worker)
			for {
				if err := limiter.Wait(ctx); err != nil { // context cancelled
					return
				}
				doDonation(httpClient, campaignID, donor, &result, latencyChan)
			}
		}(i)
	}

	start := time.Now()
	<-ctx.Done()
	wg.Wait()
	close(latencyChan)
	trackWg.Wait()

	totalDur := time.Since(start)

	fmt.Println("==========================================")
	fmt.Println("results")
	fmt.Println("==========================================")
	fmt.Printf("elapsed          : %.2fs\n", totalDur.Seconds())
	fmt.Printf("total requests   : %d\n", result.TotalRequests)
	fmt.Printf("successful       : %d\n", result.SuccessCount)
	fmt.Printf("failed           : %d\n", result.ErrorCount)

	actualRPS := float64(result.SuccessCount) / totalDur.Seconds()
	var avgLatency time.Duration
	if result.SuccessCount > 0 {
		avgLatency = time.Duration(result.LatencySum / result.SuccessCount)
	}
	fmt.Printf("actual RPS       : %.2f\n", actualRPS)
	fmt.Printf("avg latency      : %v\n", avgLatency)
	fmt.Printf("p95 latency      : %v\n", time.Duration(result.P95Latency))
	fmt.Println("==========================================")

	if err := verifyConsistency(httpClient, campaignID, result.SuccessCount); err != nil {
		fmt.Printf("consistency check failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("ledger consistency verified")
}

// createCampaign creates a long-deadline campaign big enough that the run
// never reaches the goal or the deadline.
func createCampaign(httpClient *http.Client) (int64, error) {
	body := map[string]any{
		"creator":         "loadgen",
		"goal_display":    "100000000",
		"deadline":        time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		"conversion_rate": "100",
		"conversion_at":   time.Now().Format(time.RFC3339),
		"milestones": []map[string]any{
			{"amount_display": "100000000"},
		},
	}
	raw, _ := json.Marshal(body)

	resp, err := httpClient.Post(baseURL+"/v1/campaigns", "application/json", bytes.NewReader(raw))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var campaign struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&campaign); err != nil {
		return 0, err
	}
	return campaign.ID, nil
}

// doDonation performs a single donation request and collects metrics.
func doDonation(httpClient *http.Client, campaignID int64, donor string, result *Result, latencyChan chan<- time.Duration) {
	body, _ := json.Marshal(map[string]any{
		"donor":         donor,
		"amount_native": donationAmount,
	})

	start := time.Now()
	atomic.AddInt64(&result.TotalRequests, 1)

	url := fmt.Sprintf("%s/v1/campaigns/%d/donations", baseURL, campaignID)
	resp, err := httpClient.Post(url, "application/json", bytes.NewReader(body))
	latency := time.Since(start)

	if err != nil {
		atomic.AddInt64(&result.ErrorCount, 1)
		return
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusCreated {
		atomic.AddInt64(&result.SuccessCount, 1)
		atomic.AddInt64(&result.LatencySum, latency.Nanoseconds())
		select {
		case latencyChan <- latency:
		default:
		}
	} else {
		atomic.AddInt64(&result.ErrorCount, 1)
	}
}

// trackP95 maintains a best-effort P95 estimate over a bounded reservoir.
func trackP95(latencies <-chan time.Duration, result *Result) {
	const size = 1000
	buf := make([]int64, 0, size)

	for lat := range latencies {
		if len(buf) < size {
			buf = append(buf, lat.Nanoseconds())
		} else {
			copy(buf, buf[1:])
			buf[size-1] = lat.Nanoseconds()
		}
	}

	if len(buf) == 0 {
		return
	}
	sorted := make([]int64, len(buf))
	copy(sorted, buf)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	atomic.StoreInt64(&result.P95Latency, sorted[len(sorted)*95/100])
}

// verifyConsistency fetches the campaign and checks that the raised total
// equals exactly successCount * donationAmount: no lost and no
// double-applied donations.
func verifyConsistency(httpClient *http.Client, campaignID int64, successCount int64) error {
	resp, err := httpClient.Get(fmt.Sprintf("%s/v1/campaigns/%d", baseURL, campaignID))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var campaign struct {
		TotalRaisedNative decimal.Decimal `json:"total_raised_native"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&campaign); err != nil {
		return err
	}

	expected := donationAmount.Mul(decimal.NewFromInt(successCount))
	if !campaign.TotalRaisedNative.Equal(expected) {
		return fmt.Errorf("raised total %s, expected %s for %d donations",
			campaign.TotalRaisedNative, expected, successCount)
	}
	return nil
}
