package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aridsondez/SHARE-RELAY/internal/queue"
	"github.com/aridsondez/SHARE-RELAY/internal/queue/store/memory"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// Standalone walkthrough of the retry queue: no server, no database, a fake
// clock and a flaky upstream. Run it to watch dedup, backoff and expiry.
func main() {
	printHeader()

	// Fake clock we can advance by hand.
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	policy := queue.DefaultPolicy()
	mgr := queue.NewManager(memory.New(), policy, queue.WithNowFunc(clock))
	flusher := queue.NewFlusher(mgr, 5*time.Second)
	ctx := context.Background()

	// Upstream that fails its first two calls, then recovers.
	calls := 0
	flaky := func(ctx context.Context, it queue.Item) error {
		calls++
		if calls <= 2 {
			return errors.New("upstream unreachable")
		}
		return nil
	}

	printScenario("Scenario 1: Dedup — sharing the same link twice")
	mgr.Enqueue(ctx, "https://example.com/places/42", queue.Payload{
		URL: "https://example.com/places/42", Source: "ios-share-sheet",
	})
	mgr.Enqueue(ctx, "https://example.com/places/42", queue.Payload{
		URL: "https://example.com/places/42", Source: "ios-share-sheet", Note: "second share wins",
	})
	pending := mgr.Pending(ctx)
	fmt.Printf("%s  ✓ pending=%d note=%q%s\n\n", colorGreen, len(pending), pending[0].Payload.Note, colorReset)

	printScenario("Scenario 2: Backoff — failed attempts wait before retrying")
	res := flusher.Flush(ctx, flaky)
	fmt.Printf("%s  ✗ first flush: succeeded=%d failed=%d%s\n", colorRed, res.Succeeded, res.Failed, colorReset)

	res = flusher.Flush(ctx, flaky)
	fmt.Printf("%s  • immediate retry skipped (backoff): succeeded=%d failed=%d%s\n", colorYellow, res.Succeeded, res.Failed, colorReset)

	now = now.Add(policy.BackoffBase)
	res = flusher.Flush(ctx, flaky)
	fmt.Printf("%s  ✗ after %s: succeeded=%d failed=%d%s\n", colorRed, policy.BackoffBase, res.Succeeded, res.Failed, colorReset)

	now = now.Add(2 * policy.BackoffBase)
	res = flusher.Flush(ctx, flaky)
	fmt.Printf("%s  ✓ upstream recovered: succeeded=%d failed=%d, pending=%d%s\n\n",
		colorGreen, res.Succeeded, res.Failed, mgr.PendingCount(ctx), colorReset)

	printScenario("Scenario 3: Expiry — week-old shares are abandoned")
	mgr.Enqueue(ctx, "https://example.com/places/13", queue.Payload{URL: "https://example.com/places/13"})
	now = now.Add(8 * 24 * time.Hour)
	res = flusher.Flush(ctx, flaky)
	fmt.Printf("%s  ✓ swept before delivery: succeeded=%d failed=%d, pending=%d%s\n",
		colorGreen, res.Succeeded, res.Failed, mgr.PendingCount(ctx), colorReset)

	log.Println("demo complete")
}

func printHeader() {
	fmt.Print(colorCyan + colorBold)
	fmt.Println("╔════════════════════════════════════════════════════════════╗")
	fmt.Println("║         SHARE RELAY - RETRY QUEUE DEMO                     ║")
	fmt.Println("║         Dedup, Backoff & Expiry                            ║")
	fmt.Println("╚════════════════════════════════════════════════════════════╝")
	fmt.Print(colorReset)
	fmt.Println()
}

func printScenario(title string) {
	fmt.Printf("%s%s── %s%s\n", colorBold, colorCyan, title, colorReset)
}
