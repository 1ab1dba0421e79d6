// Command bench drives an in-process engine with a synthetic order feed
// and reports per-order latency statistics, in the same
// mean/standard-deviation style as the teacher pack's QuantCup replay
// harness — but feeding the engine directly instead of fetching orders
// from a database, since persistence is out of scope here.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"time"

	"github.com/grd/stat"

	"bourse/internal/common"
	"bourse/internal/engine"
)

func main() {
	orderCount := flag.Int("orders", 100000, "number of synthetic orders to feed")
	accounts := flag.Int("accounts", 50, "number of distinct accounts to spread orders across")
	seed := flag.Int64("seed", 1, "PRNG seed for the synthetic feed")
	flag.Parse()

	eng := engine.New("BENCH", "SYN", uint32(*accounts), uint64(*orderCount)+1, nil)
	rng := rand.New(rand.NewSource(*seed))

	latencies := make([]time.Duration, *orderCount)
	begin := time.Now()
	for i := 0; i < *orderCount; i++ {
		name, acctID, qty, price, side, typ := syntheticOrder(rng, *accounts)
		start := time.Now()
		eng.PlaceOrder(name, acctID, qty, price, side, typ)
		latencies[i] = time.Since(start)
	}
	total := time.Since(begin)

	durations := DurationSlice(latencies)
	mean := stat.Mean(durations)
	stdDev := stat.SdMean(durations, mean)

	fmt.Printf("[engine] mean(latency) = %1.0fns, sd(latency) = %1.0fns\n", mean, stdDev)
	fmt.Printf("[throughput] %1.1f orders/sec over %d orders\n", float64(*orderCount)/total.Seconds(), *orderCount)
}

// syntheticOrder generates one pseudo-random order clustered around a
// central price, the way QuantCup's replay feed synthesizes its order
// stream, so the book sees realistic crossing activity rather than a
// monotonic ladder.
func syntheticOrder(rng *rand.Rand, accounts int) (name string, acctID uint32, qty uint64, price int64, side common.Side, typ common.OrderType) {
	const centerPrice = 10000
	const spread = 50

	acctID = uint32(rng.Intn(accounts))
	name = fmt.Sprintf("acct-%d", acctID)
	qty = uint64(1 + rng.Intn(100))
	price = int64(centerPrice + rng.Intn(2*spread) - spread)

	if rng.Intn(2) == 0 {
		side = common.Buy
	} else {
		side = common.Sell
	}

	switch rng.Intn(10) {
	case 0:
		typ = common.Market
	case 1:
		typ = common.IOC
	case 2:
		typ = common.FOK
	default:
		typ = common.Limit
	}
	return
}

// DurationSlice adapts a []time.Duration to stat.Float64Slice, exactly
// as the teacher pack's QuantCup harness does.
type DurationSlice []time.Duration

func (f DurationSlice) Get(i int) float64 { return float64(f[i]) }
func (f DurationSlice) Len() int          { return len(f) }
