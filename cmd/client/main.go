package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/defistate/defistate-maker-go/cmd/maker/config"
	"github.com/defistate/defistate-maker-go/streams/jsonrpc/client"
)

const (
	DefaultClientNotificationBufferSize = 100
)

func main() {
	// create the log handler
	rootLogHandler := slog.NewJSONHandler(os.Stdout, nil)
	close := func() {
		os.Exit(1)
	}

	rootLogger := slog.New(rootLogHandler)
	cfg, from, err := loadConfig()
	if err != nil {
		rootLogger.Error("Failed to load configuration", "error", err)
		close()
	}

	// Create a context that cancels when the OS sends an interrupt (Ctrl+C) or termination signal.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokens := cfg.Index()
	details := func(n client.Notification) []any {
		var attrs []any
		if n.Convert != nil {
			t0, _ := tokens.GetByAddress(n.Convert.Token0)
			t1, _ := tokens.GetByAddress(n.Convert.Token1)
			attrs = append(attrs,
				"token0", t0.Symbol, "token1", t1.Symbol,
				"amount0", t0.FormatAmount(n.Convert.Amount0), "amount1", t1.FormatAmount(n.Convert.Amount1),
				"amountTarget", n.Convert.AmountTarget.String(), "server", n.Convert.Server.Hex())
		}
		return attrs
	}

	client, err := client.NewClient(
		ctx,
		client.Config{
			URL:        "ws://" + cfg.RPCAddr,
			Logger:     rootLogger.With("component", "jsonrpc-client"),
			BufferSize: DefaultClientNotificationBufferSize,
			From:       from,
		},
	)
	if err != nil {
		rootLogger.Error("Failed to initialize Client", "error", err)
		close()
	}

	for {
		select {
		case n := <-client.Notifications():
			rootLogger.Info("Maker notification", append([]any{"index", n.Log.Index, "event", n.Name}, details(n)...)...)
		case err, ok := <-client.Err():
			if ok {
				rootLogger.Error("Fatal client error", "error", err)
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

func loadConfig() (*config.MakerConfig, uint, error) {
	configPath := flag.String("config", "config.yaml", "Path to the maker configuration file.")
	from := flag.Uint("from", 0, "Index of the first log to follow.")
	flag.Parse()
	log.Printf("Loading configuration from: %s", *configPath)
	cfg, err := config.LoadConfig(*configPath)
	return cfg, *from, err
}
