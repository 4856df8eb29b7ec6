// Package testing also provides a small concurrent load-test harness, used to
// drive the kernel's worker-pool-backed event dispatch and the introspection
// HTTP API under load.
package testing

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// LoadTestConfig represents load test configuration
type LoadTestConfig struct {
	Concurrency   int
	TotalRequests int64
	Duration      time.Duration
	RampUp        time.Duration
	TargetRPS     float64
}

// DefaultLoadTestConfig creates a default load test configuration
func DefaultLoadTestConfig() LoadTestConfig {
	return LoadTestConfig{
		Concurrency:   10,
		TotalRequests: 1000,
		Duration:      30 * time.Second,
		RampUp:        5 * time.Second,
		TargetRPS:     0, // unlimited
	}
}

// LoadTestResult represents a load test result
type LoadTestResult struct {
	Config         LoadTestConfig
	TotalRequests  int64
	Successful     int64
	Failed         int64
	TotalDuration  time.Duration
	AverageLatency time.Duration
	MinLatency     time.Duration
	MaxLatency     time.Duration
	RequestsPerSec float64
	StatusCodes    map[int]int64
	Errors         []string
}

// String returns a string representation
func (lr *LoadTestResult) String() string {
	return fmt.Sprintf(
		"Load Test Results:\n"+
			"  Total Requests: %d\n"+
			"  Successful: %d\n"+
			"  Failed: %d\n"+
			"  Duration: %v\n"+
			"  RPS: %.2f\n"+
			"  Avg Latency: %v\n"+
			"  Min Latency: %v\n"+
			"  Max Latency: %v\n"+
			"  Status Codes: %v",
		lr.TotalRequests, lr.Successful, lr.Failed, lr.TotalDuration,
		lr.RequestsPerSec, lr.AverageLatency, lr.MinLatency, lr.MaxLatency,
		lr.StatusCodes,
	)
}

// LoadTest runs a load test
type LoadTest struct {
	config   LoadTestConfig
	workload func() error
}

// NewLoadTest creates a new load test
func NewLoadTest(config LoadTestConfig, workload func() error) *LoadTest {
	return &LoadTest{
		config:   config,
		workload: workload,
	}
}

// Run executes the load test
func (lt *LoadTest) Run() *LoadTestResult {
	start := time.Now()
	var wg sync.WaitGroup
	var successful, failed int64
	var totalLatency time.Duration
	var minLatency, maxLatency time.Duration = time.Hour, 0
	statusCodes := make(map[int]int64)
	var errorsMu sync.Mutex
	errors := make([]string, 0)

	// Rate limiter
	var rateLimiter *time.Ticker
	if lt.config.TargetRPS > 0 {
		interval := time.Duration(float64(time.Second) / lt.config.TargetRPS)
		rateLimiter = time.NewTicker(interval)
		defer rateLimiter.Stop()
	}

	// Semaphore for concurrency control
	sem := make(chan struct{}, lt.config.Concurrency)

	// Ramp up
	if lt.config.RampUp > 0 {
		rampUpInterval := lt.config.RampUp / time.Duration(lt.config.Concurrency)
		for i := 0; i < lt.config.Concurrency; i++ {
			go func() {
				time.Sleep(rampUpInterval * time.Duration(i))
				sem <- struct{}{}
			}()
		}
	} else {
		// Fill semaphore immediately
		for i := 0; i < lt.config.Concurrency; i++ {
			sem <- struct{}{}
		}
	}

	// Request counter
	var requestCount int64
	done := make(chan struct{})

	// Time-based limit
	if lt.config.Duration > 0 {
		go func() {
			time.Sleep(lt.config.Duration)
			close(done)
		}()
	}

	// Request-based limit
	requestLimit := lt.config.TotalRequests

	// Worker function
	worker := func() {
		defer wg.Done()

		for {
			// Check limits
			if requestLimit > 0 && atomic.LoadInt64(&requestCount) >= requestLimit {
				return
			}

			select {
			case <-done:
				return
			default:
			}

			// Rate limiting
			if rateLimiter != nil {
				<-rateLimiter.C
			}

			// Acquire semaphore
			select {
			case <-sem:
			case <-done:
				return
			}

			// Increment request count
			reqNum := atomic.AddInt64(&requestCount, 1)
			if requestLimit > 0 && reqNum > requestLimit {
				sem <- struct{}{}
				return
			}

			// Execute workload
			reqStart := time.Now()
			err := lt.workload()
			latency := time.Since(reqStart)

			// Update stats
			totalLatency += latency

			// Update min/max latency
			for {
				if latency < minLatency {
					if atomic.CompareAndSwapInt64((*int64)(&minLatency), int64(minLatency), int64(latency)) {
						break
					}
				} else {
					break
				}
			}
			for {
				if latency > maxLatency {
					if atomic.CompareAndSwapInt64((*int64)(&maxLatency), int64(maxLatency), int64(latency)) {
						break
					}
				} else {
					break
				}
			}

			// Handle error
			if err != nil {
				atomic.AddInt64(&failed, 1)
				errorsMu.Lock()
				if len(errors) < 100 { // Limit error storage
					errors = append(errors, err.Error())
				}
				errorsMu.Unlock()
				// Simulate status code 500 for errors
				statusCodes[500]++
			} else {
				atomic.AddInt64(&successful, 1)
				// Simulate status code 200 for success
				statusCodes[200]++
			}

			// Release semaphore
			sem <- struct{}{}
		}
	}

	// Start workers
	for i := 0; i < lt.config.Concurrency; i++ {
		wg.Add(1)
		go worker()
	}

	// Wait for completion
	wg.Wait()
	close(done)

	duration := time.Since(start)

	// Calculate results
	totalReqs := atomic.LoadInt64(&successful) + atomic.LoadInt64(&failed)
	var avgLatency time.Duration
	if totalReqs > 0 {
		avgLatency = time.Duration(totalLatency.Nanoseconds() / totalReqs)
	}

	return &LoadTestResult{
		Config:         lt.config,
		TotalRequests:  totalReqs,
		Successful:     atomic.LoadInt64(&successful),
		Failed:         atomic.LoadInt64(&failed),
		TotalDuration:  duration,
		AverageLatency: avgLatency,
		MinLatency:     minLatency,
		MaxLatency:     maxLatency,
		RequestsPerSec: float64(totalReqs) / duration.Seconds(),
		StatusCodes:    statusCodes,
		Errors:         errors,
	}
}

