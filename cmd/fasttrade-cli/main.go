// Command fasttrade-cli is a one-shot client for a fasttrade-server,
// adapted from the teacher's cmd/client/client.go. The teacher decoded
// a fixed 53-byte float64-based report header by hand; this client
// instead hands off to wire.Client, which speaks the decimal-string
// protocol internal/wire defines.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Jss-on/fasttrade/internal/decimal"
	"github.com/Jss-on/fasttrade/internal/order"
	"github.com/Jss-on/fasttrade/internal/wire"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "Address of the fasttrade-server")
	action := flag.String("action", "place", "Action to perform: 'place' or 'cancel'")
	clientOrderID := flag.String("id", "", "Client order ID (compulsory)")
	pair := flag.String("pair", "BTC-USDT", "Trading pair, e.g. BTC-USDT")
	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	typeStr := flag.String("type", "limit", "Order type: 'limit' or 'market'")
	priceStr := flag.String("price", "0", "Limit price")
	quantityStr := flag.String("qty", "0", "Quantity")
	timeout := flag.Duration("timeout", 5*time.Second, "Round-trip timeout")
	flag.Parse()

	if *clientOrderID == "" {
		fmt.Fprintln(os.Stderr, "error: -id is compulsory")
		flag.Usage()
		os.Exit(1)
	}

	client := wire.NewClient(*serverAddr, *timeout)

	switch *action {
	case "place":
		side, err := order.ParseSide(strings.ToUpper(*sideStr))
		if err != nil {
			fail(err)
		}
		orderType, err := order.ParseType(strings.ToUpper(*typeStr))
		if err != nil {
			fail(err)
		}
		price, err := decimal.New(*priceStr)
		if err != nil {
			fail(fmt.Errorf("invalid price: %w", err))
		}
		quantity, err := decimal.New(*quantityStr)
		if err != nil {
			fail(fmt.Errorf("invalid quantity: %w", err))
		}

		report, err := client.SubmitNewOrder(wire.NewOrderMessage{
			ClientOrderID: *clientOrderID,
			TradingPair:   *pair,
			Side:          side,
			OrderType:     orderType,
			Price:         price,
			Quantity:      quantity,
		})
		if err != nil {
			fail(err)
		}
		printReport(report)

	case "cancel":
		report, err := client.CancelOrder(wire.CancelOrderMessage{ClientOrderID: *clientOrderID})
		if err != nil {
			fail(err)
		}
		printReport(report)

	default:
		fmt.Fprintf(os.Stderr, "error: unknown action %q\n", *action)
		os.Exit(1)
	}
}

func printReport(report wire.Report) {
	if report.Type == wire.ErrorReport {
		fmt.Printf("error: %s\n", report.Err)
		return
	}
	fmt.Printf("order %s accepted=%t\n", report.ClientOrderID, report.Accepted)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
