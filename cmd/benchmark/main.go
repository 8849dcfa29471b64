package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the benchmark settings
var (
	targetURL     string
	concurrency   int
	duration      time.Duration
	workload      string
	stores        int
	itemsPerStore int
	payment       string
	replayRate    float64
)

// Metrics
var (
	totalRequests uint64
	success200    uint64 // Idempotent replays
	success201    uint64 // Purchases
	reject402     uint64 // Underpaid
	reject409     uint64 // Wrong store or duplicate
	reject422     uint64 // Self purchase or key mismatch
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.IntVar(&stores, "stores", 10, "Stores created by the seeder")
	flag.IntVar(&itemsPerStore, "items-per-store", 100, "Items per store created by the seeder")
	flag.StringVar(&payment, "payment", "100", "Payment attached to every purchase")
	flag.Float64Var(&replayRate, "replay-rate", 0.05, "Fraction of purchases retried with the same Idempotency-Key")
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(i, &wg, start)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func worker(id int, wg *sync.WaitGroup, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))

	for n := 0; time.Since(start) < duration; n++ {
		store, item := pickItem(rng)
		// Each worker buys as its own account, so items circulate between workers.
		buyer := fmt.Sprintf("buyer-%03d", id)
		key := fmt.Sprintf("bench-%d-%d-%d", id, n, time.Now().UnixNano())

		payload := map[string]string{
			"store_id": fmt.Sprintf("store-%03d", store),
			"payment":  payment,
		}
		body, _ := json.Marshal(payload)
		url := fmt.Sprintf("%s/api/v1/items/item-%03d-%03d/buy", targetURL, store, item)

		attempts := 1
		if rng.Float64() < replayRate {
			attempts = 2
		}
		for a := 0; a < attempts; a++ {
			send(client, url, buyer, key, body)
		}
	}
}

func send(client *http.Client, url, buyer, key string, body []byte) {
	req, _ := http.NewRequest("POST", url, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Account-ID", buyer)
	req.Header.Set("Idempotency-Key", key)

	resp, err := client.Do(req)
	if err != nil {
		atomic.AddUint64(&failOther, 1)
		return
	}
	defer resp.Body.Close()

	atomic.AddUint64(&totalRequests, 1)
	switch resp.StatusCode {
	case 201:
		atomic.AddUint64(&success201, 1)
	case 200:
		atomic.AddUint64(&success200, 1)
	case 402:
		atomic.AddUint64(&reject402, 1)
	case 409:
		atomic.AddUint64(&reject409, 1)
	case 422:
		atomic.AddUint64(&reject422, 1)
	default:
		atomic.AddUint64(&failOther, 1)
	}
}

func pickItem(rng *rand.Rand) (int, int) {
	if workload == "hotspot" {
		// Hotspot: 90% of traffic goes to the first two items of store 0
		if rng.Float32() < 0.90 {
			return 0, rng.Intn(2)
		}
	}
	return rng.Intn(stores), rng.Intn(itemsPerStore)
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s201 := atomic.LoadUint64(&success201)
	s200 := atomic.LoadUint64(&success200)
	r402 := atomic.LoadUint64(&reject402)
	r409 := atomic.LoadUint64(&reject409)
	r422 := atomic.LoadUint64(&reject422)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	var rejectRate float64
	if total > 0 {
		rejectRate = float64(r402+r409+r422) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":           workload,
		"duration_sec":       d.Seconds(),
		"total_requests":     total,
		"throughput_tps":     tps,
		"purchases":          s201,
		"replays":            s200,
		"rejected_underpaid": r402,
		"rejected_conflict":  r409,
		"rejected_self_buy":  r422,
		"reject_rate_pct":    rejectRate,
		"errors":             fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("Could not save %s: %v", filename, err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
