package main

import (
	"bytes"
	"crypto/rand"
	"flag"
	"fmt"
	"io"
	mrand "math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
)

type result struct {
	latency time.Duration
	bytes   int64
	err     error
}

type summary struct {
	requests  int64
	errors    int64
	bytes     int64
	latencies []time.Duration
}

func main() {
	var (
		gatewayURL = flag.String("gateway-url", "http://localhost:8080", "Gateway base URL")
		key        = flag.String("key", "loadtest/probe.bin", "Object key used for the test")
		objectSize = flag.Int64("object-size", 50*1024*1024, "Size of the seeded object in bytes")
		maxRange   = flag.Int64("max-range", 1024*1024, "Maximum range length per request")
		workers    = flag.Int("workers", 5, "Number of worker goroutines")
		qps        = flag.Int("qps", 25, "Queries per second per worker")
		duration   = flag.Duration("duration", 30*time.Second, "Test duration")
		verify     = flag.Bool("verify", true, "Verify each response body against the seeded plaintext")
		keep       = flag.Bool("keep", false, "Leave the test object in place after the run")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	client := &http.Client{Timeout: 60 * time.Second}

	logger.WithFields(logrus.Fields{
		"gateway": *gatewayURL,
		"key":     *key,
		"size":    *objectSize,
	}).Info("Seeding test object")

	plaintext := make([]byte, *objectSize)
	if _, err := rand.Read(plaintext); err != nil {
		logger.WithError(err).Fatal("Failed to generate test data")
	}
	if err := putObject(client, *gatewayURL, *key, plaintext); err != nil {
		logger.WithError(err).Fatal("Failed to seed test object")
	}
	if !*keep {
		defer deleteObject(client, *gatewayURL, *key, logger)
	}

	logger.WithFields(logrus.Fields{
		"workers":  *workers,
		"qps":      *qps,
		"duration": *duration,
	}).Info("Starting ranged read load")

	results := make(chan result, (*workers)*(*qps))
	var wg sync.WaitGroup
	deadline := time.Now().Add(*duration)

	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := mrand.New(mrand.NewSource(seed))
			interval := time.Second / time.Duration(*qps)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for time.Now().Before(deadline) {
				<-ticker.C
				start := rng.Int63n(*objectSize)
				length := 1 + rng.Int63n(*maxRange)
				if start+length > *objectSize {
					length = *objectSize - start
				}

				began := time.Now()
				n, err := getRange(client, *gatewayURL, *key, start, length, plaintext, *verify)
				results <- result{latency: time.Since(began), bytes: n, err: err}
			}
		}(time.Now().UnixNano() + int64(i))
	}

	done := make(chan summary)
	go collect(results, done, logger)

	wg.Wait()
	close(results)
	s := <-done

	printSummary(s, *duration)
	if err := printGatewayMetrics(client, *gatewayURL); err != nil {
		logger.WithError(err).Warn("Failed to scrape gateway metrics")
	}

	if s.errors > 0 {
		os.Exit(1)
	}
}

func collect(results <-chan result, done chan<- summary, logger *logrus.Logger) {
	var s summary
	for r := range results {
		s.requests++
		if r.err != nil {
			s.errors++
			logger.WithError(r.err).Debug("Request failed")
			continue
		}
		s.bytes += r.bytes
		s.latencies = append(s.latencies, r.latency)
	}
	done <- s
}

func putObject(client *http.Client, baseURL, key string, body []byte) error {
	req, err := http.NewRequest(http.MethodPut, objectURL(baseURL, key), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("put returned %s", resp.Status)
	}
	return nil
}

func getRange(client *http.Client, baseURL, key string, start, length int64, plaintext []byte, verify bool) (int64, error) {
	req, err := http.NewRequest(http.MethodGet, objectURL(baseURL, key), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, start+length-1))

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("range %d+%d returned %s", start, length, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return int64(len(body)), err
	}
	if int64(len(body)) != length {
		return int64(len(body)), fmt.Errorf("range %d+%d returned %d bytes", start, length, len(body))
	}
	if verify && !bytes.Equal(body, plaintext[start:start+length]) {
		return int64(len(body)), fmt.Errorf("range %d+%d returned wrong bytes", start, length)
	}
	return length, nil
}

func deleteObject(client *http.Client, baseURL, key string, logger *logrus.Logger) {
	req, err := http.NewRequest(http.MethodDelete, objectURL(baseURL, key), nil)
	if err != nil {
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		logger.WithError(err).Warn("Failed to delete test object")
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
}

func objectURL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/objects/" + key
}

func printSummary(s summary, duration time.Duration) {
	fmt.Println()
	fmt.Println("=== Ranged Read Load Test Results ===")
	fmt.Printf("Requests:     %d\n", s.requests)
	fmt.Printf("Errors:       %d\n", s.errors)
	fmt.Printf("Bytes read:   %d\n", s.bytes)
	fmt.Printf("Throughput:   %.2f MB/s\n", float64(s.bytes)/duration.Seconds()/(1024*1024))
	fmt.Printf("Request rate: %.1f req/s\n", float64(s.requests)/duration.Seconds())

	if len(s.latencies) == 0 {
		return
	}
	sort.Slice(s.latencies, func(i, j int) bool { return s.latencies[i] < s.latencies[j] })
	fmt.Printf("Latency p50:  %v\n", percentile(s.latencies, 50))
	fmt.Printf("Latency p95:  %v\n", percentile(s.latencies, 95))
	fmt.Printf("Latency p99:  %v\n", percentile(s.latencies, 99))
	fmt.Printf("Latency max:  %v\n", s.latencies[len(s.latencies)-1])
}

func percentile(sorted []time.Duration, p int) time.Duration {
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// printGatewayMetrics scrapes the gateway's Prometheus endpoint and prints the
// decryption and pool counters accumulated during the run.
func printGatewayMetrics(client *http.Client, baseURL string) error {
	resp, err := client.Get(strings.TrimRight(baseURL, "/") + "/metrics")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("metrics endpoint returned %s", resp.Status)
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to parse metrics: %w", err)
	}

	interesting := []string{
		"decrypt_operations_total",
		"decrypt_bytes_total",
		"decrypt_errors_total",
		"pool_checkouts_total",
		"range_requests_total",
		"http_requests_total",
	}

	fmt.Println()
	fmt.Println("=== Gateway Metrics ===")
	for _, name := range interesting {
		family, ok := families[name]
		if !ok {
			continue
		}
		for _, m := range family.GetMetric() {
			var labels []string
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			value := m.GetCounter().GetValue()
			if m.GetCounter() == nil {
				value = m.GetGauge().GetValue()
			}
			if len(labels) == 0 {
				fmt.Printf("%s %.0f\n", name, value)
				continue
			}
			fmt.Printf("%s{%s} %.0f\n", name, strings.Join(labels, ","), value)
		}
	}
	return nil
}
