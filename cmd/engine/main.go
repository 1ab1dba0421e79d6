// Command engine runs one matching engine for a single (venue, symbol)
// pair: two TCP listeners (command, event) and a Prometheus /metrics
// endpoint. Positional args remain exactly `venue symbol`; everything
// else is environment-configured with defaults so the minimal
// invocation keeps working.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"bourse/internal/engine"
	"bourse/internal/events"
	"bourse/internal/metrics"
	"bourse/internal/server"
)

func main() {
	if len(os.Args) != 3 {
		log.Fatal().Msg("usage: engine <venue> <symbol>")
	}
	venue, symbol := os.Args[1], os.Args[2]

	configureLogging(envOr("BOURSE_LOG_LEVEL", "info"))

	cmdAddr := envOr("BOURSE_CMD_ADDR", ":9001")
	eventAddr := envOr("BOURSE_EVENT_ADDR", ":9002")
	metricsAddr := envOr("BOURSE_METRICS_ADDR", ":9090")
	acctCap := envUint32("BOURSE_ACCOUNT_CAP", 5000)
	idCeiling := envUint64("BOURSE_ORDER_ID_CEILING", 2_000_000_000)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink := events.NewBroadcastSink()
	eng := engine.New(venue, symbol, acctCap, idCeiling, sink)

	coll := metrics.New()
	eng.WithMetrics(coll)

	go serveMetrics(metricsAddr, coll)

	srv := server.New(cmdAddr, eventAddr, eng, sink)
	log.Info().Str("venue", venue).Str("symbol", symbol).Msg("starting engine")
	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func serveMetrics(addr string, coll *metrics.Collector) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", coll.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("metrics server exited")
	}
}

func configureLogging(level string) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if lvl, err := zerolog.ParseLevel(level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envUint32(key string, def uint32) uint32 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			return uint32(n)
		}
	}
	return def
}

func envUint64(key string, def uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}
