package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rl1809/gift-market/internal/adapter/storage"
	"github.com/rl1809/gift-market/internal/core/domain"
	"github.com/rl1809/gift-market/internal/core/service"
)

const itemName = "Lunar Hare"

func main() {
	initialStock := flag.Int64("stock", 20, "initial stock of the item")
	totalRequests := flag.Int("requests", 50, "concurrent purchases, one per user")
	price := flag.Int64("price", 50_000, "item price")
	flag.Parse()

	ctx := context.Background()

	dir, err := os.MkdirTemp("", "gift-market-stress-")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(dir)

	store, err := storage.NewSQLiteStore(filepath.Join(dir, "market.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to migrate: %v\n", err)
		os.Exit(1)
	}

	market := service.NewMarketService(store, service.Options{StartingBalance: service.DefaultStartingBalance})

	itemID, err := market.AddItem(ctx, domain.NewItem{Name: itemName, Price: *price, Stock: *initialStock, ArtworkRef: "lunar-hare.tgs"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to add item: %v\n", err)
		os.Exit(1)
	}

	// Counters
	var successCount, soldOutCount, failCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 1; i <= *totalRequests; i++ {
		wg.Add(1)
		go func(userID domain.UserID) {
			defer wg.Done()

			_, err := market.Purchase(ctx, userID, itemID)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrOutOfStock):
				soldOutCount.Add(1)
			default:
				failCount.Add(1)
			}
		}(domain.UserID(i))
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := int64(successCount.Load())
	soldOut := int64(soldOutCount.Load())
	fail := failCount.Load()

	expectedSuccess := min(*initialStock, int64(*totalRequests))

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", *initialStock)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Committed:        %d\n", success)
	fmt.Printf("Sold Out:         %d\n", soldOut)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	ok := true
	check := func(cond bool, pass, failMsg string) {
		if cond {
			fmt.Println("PASS: " + pass)
			return
		}
		fmt.Println("FAIL: " + failMsg)
		ok = false
	}

	check(success == expectedSuccess && fail == 0,
		fmt.Sprintf("exactly %d purchases committed", expectedSuccess),
		fmt.Sprintf("expected %d committed and 0 failed, got %d/%d", expectedSuccess, success, fail))

	item, err := market.GetItem(ctx, itemID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read item: %v\n", err)
		os.Exit(1)
	}
	check(item.Stock == *initialStock-success,
		fmt.Sprintf("final stock %d", item.Stock),
		fmt.Sprintf("expected stock %d, got %d", *initialStock-success, item.Stock))

	// Read the store directly so that verification provisions nobody.
	var holders, provisioned int64
	for i := 1; i <= *totalRequests; i++ {
		userID := domain.UserID(i)
		user, err := store.GetUser(ctx, userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read user %d: %v\n", i, err)
			os.Exit(1)
		}
		holdings, err := store.ListHoldings(ctx, userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read holdings %d: %v\n", i, err)
			os.Exit(1)
		}
		if user == nil {
			if len(holdings) > 0 {
				ok = false
				fmt.Printf("FAIL: user %d holds items without a ledger row\n", i)
			}
			continue
		}
		provisioned++

		var spent int64
		for _, h := range holdings {
			holders += h.Quantity
			spent += h.Quantity * (*price)
		}
		if user.Balance != service.DefaultStartingBalance-spent {
			ok = false
			fmt.Printf("FAIL: user %d balance %d does not match holdings\n", i, user.Balance)
		}
	}
	check(holders == success,
		"units held match committed purchases",
		fmt.Sprintf("expected %d units held, got %d", success, holders))
	check(provisioned == success,
		"only buyers with a committed purchase were provisioned",
		fmt.Sprintf("expected %d provisioned users, got %d", success, provisioned))

	if !ok {
		os.Exit(1)
	}
}
