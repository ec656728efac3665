// Command fasttrade-server runs a TradingCore behind a wire.Server,
// adapted from the teacher's cmd/server/server.go. The teacher wired
// eng.SetReporter(srv) on a method that does not exist anywhere in
// internal/engine — this entrypoint never repeats that mistake since
// trading.Core drives its own callbacks rather than being handed a
// reporter.
package main

import (
	"context"
	"flag"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/Jss-on/fasttrade/internal/clock"
	"github.com/Jss-on/fasttrade/internal/marketdata"
	"github.com/Jss-on/fasttrade/internal/trading"
	"github.com/Jss-on/fasttrade/internal/wire"
)

func main() {
	address := flag.String("address", "0.0.0.0:9001", "TCP address to listen on")
	marketDataURL := flag.String("market-data-url", "", "WebSocket URL of a market data feed (optional)")
	marketDataSymbols := flag.String("market-data-symbols", "", "comma-separated symbols to subscribe to, e.g. BTC-USDT,ETH-USDT")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	core := trading.NewCore()
	core.Initialize(clock.Live)
	core.Start()
	defer core.Stop()

	// Routing market data through core, not just the hub subscription
	// API, so strategies wired only via trading.Callbacks still see
	// OnMarketData/OnTrade notifications.
	router := marketdata.NewRouter(core.Registry(), core)

	if *marketDataURL != "" {
		connector := marketdata.NewWebSocketConnector(*marketDataURL, router)
		if err := connector.Connect(ctx); err != nil {
			log.Fatal().Err(err).Str("url", *marketDataURL).Msg("fasttrade-server: market data connect failed")
		}
		defer connector.Disconnect()
		for _, symbol := range strings.Split(*marketDataSymbols, ",") {
			symbol = strings.TrimSpace(symbol)
			if symbol == "" {
				continue
			}
			if err := connector.SubscribeOrderBook(symbol); err != nil {
				log.Error().Err(err).Str("symbol", symbol).Msg("fasttrade-server: subscribe order book failed")
			}
			if err := connector.SubscribeTrades(symbol); err != nil {
				log.Error().Err(err).Str("symbol", symbol).Msg("fasttrade-server: subscribe trades failed")
			}
		}
	}

	server := wire.NewServer(*address, core)
	log.Info().Str("address", *address).Msg("fasttrade-server: starting")

	if err := server.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("fasttrade-server: exited with error")
	}
}
