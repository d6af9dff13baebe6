// Command simulator drives concurrent load against a running
// command-api instance: a pool of workers issuing deposit/withdraw/
// transfer requests against a fixed set of wallets, reporting a live
// summary every few seconds. Grounded on the teacher's perf-test
// loadtest generator/worker shape (perf-test/internal/generator), cut
// down from its configurable-scenario/Prometheus-scraping form to a
// single fixed wallet-traffic scenario against this service's own
// three operations.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
)

type stats struct {
	total   int64
	success int64
	failed  int64
}

func (s *stats) recordSuccess() { atomic.AddInt64(&s.total, 1); atomic.AddInt64(&s.success, 1) }
func (s *stats) recordFailure() { atomic.AddInt64(&s.total, 1); atomic.AddInt64(&s.failed, 1) }

func (s *stats) snapshot() (total, success, failed int64) {
	return atomic.LoadInt64(&s.total), atomic.LoadInt64(&s.success), atomic.LoadInt64(&s.failed)
}

func main() {
	var (
		apiURL   = flag.String("api-url", "http://localhost:8080", "command-api base URL")
		workers  = flag.Int("workers", 20, "number of concurrent workers")
		wallets  = flag.Int("wallets", 50, "number of distinct wallet IDs to exercise")
		duration = flag.Duration("duration", 60*time.Second, "how long to run")
		seed     = flag.Float64("initial-balance", 1000, "initial deposit made into every wallet before load starts")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCtx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	client := &http.Client{Timeout: 10 * time.Second}
	walletIDs := make([]string, *wallets)
	for i := range walletIDs {
		walletIDs[i] = fmt.Sprintf("sim-wallet-%s", uuid.NewString())
	}

	log.Printf("seeding %d wallets with an initial deposit of %.2f", len(walletIDs), *seed)
	for _, id := range walletIDs {
		if err := deposit(ctx, client, *apiURL, id, *seed); err != nil {
			log.Printf("seed deposit for %s failed: %v", id, err)
		}
	}

	var s stats
	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			worker(runCtx, client, *apiURL, walletIDs, &s)
		}(i)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				total, success, failed := s.snapshot()
				log.Printf("requests=%d success=%d failed=%d", total, success, failed)
			case <-runCtx.Done():
				return
			}
		}
	}()

	wg.Wait()

	total, success, failed := s.snapshot()
	fmt.Printf("\n=== simulation complete ===\n")
	fmt.Printf("total requests: %d\n", total)
	fmt.Printf("successful:     %d\n", success)
	fmt.Printf("failed:         %d\n", failed)
}

// worker repeatedly picks a random operation (deposit, withdraw, or
// transfer between two distinct wallets) until ctx is cancelled.
func worker(ctx context.Context, client *http.Client, apiURL string, walletIDs []string, s *stats) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var err error
		switch rand.Intn(3) {
		case 0:
			err = deposit(ctx, client, apiURL, randomWallet(walletIDs), randomAmount())
		case 1:
			err = withdraw(ctx, client, apiURL, randomWallet(walletIDs), randomAmount())
		case 2:
			from, to := distinctWallets(walletIDs)
			err = transfer(ctx, client, apiURL, from, to, randomAmount())
		}

		if err != nil {
			s.recordFailure()
			continue
		}
		s.recordSuccess()
	}
}

func randomWallet(walletIDs []string) string {
	return walletIDs[rand.Intn(len(walletIDs))]
}

func distinctWallets(walletIDs []string) (string, string) {
	from := randomWallet(walletIDs)
	to := randomWallet(walletIDs)
	for to == from {
		to = randomWallet(walletIDs)
	}
	return from, to
}

func randomAmount() float64 {
	return 1 + rand.Float64()*99
}

func deposit(ctx context.Context, client *http.Client, apiURL, walletID string, amount float64) error {
	return post(ctx, client, apiURL+"/deposit", map[string]any{
		"walletId": walletID, "amount": amount,
	})
}

func withdraw(ctx context.Context, client *http.Client, apiURL, walletID string, amount float64) error {
	return post(ctx, client, apiURL+"/withdraw", map[string]any{
		"walletId": walletID, "amount": amount,
	})
}

func transfer(ctx context.Context, client *http.Client, apiURL, fromWalletID, toWalletID string, amount float64) error {
	return post(ctx, client, apiURL+"/transfer", map[string]any{
		"fromWalletId": fromWalletID, "toWalletId": toWalletID, "amount": amount,
	})
}

func post(ctx context.Context, client *http.Client, url string, body map[string]any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", uuid.NewString())

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%s: server error %d", url, resp.StatusCode)
	}
	return nil
}
