// Command guardian runs the Bubble Protocol Guardian: an HTTP JSON-RPC
// 2.0 server and a WebSocket server, both backed by the same
// guardian.Guardian instance, reading its blockchain state from either a
// live node (CHAIN_RPC_URL set) or an in-memory DevChainView.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bubbleprotocol/guardian/config"
	"github.com/bubbleprotocol/guardian/internal/chainview"
	"github.com/bubbleprotocol/guardian/internal/dataserver"
	"github.com/bubbleprotocol/guardian/internal/guardian"
	"github.com/bubbleprotocol/guardian/internal/subscription"
	"github.com/bubbleprotocol/guardian/internal/transport/httpserver"
	"github.com/bubbleprotocol/guardian/internal/transport/wsserver"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	cv, err := buildChainView(ctx, cfg)
	if err != nil {
		slog.Error("failed to build chain view", "err", err)
		os.Exit(1)
	}
	if closer, ok := cv.(*chainview.EthChainView); ok {
		defer closer.Close()
	}

	ds := buildDataServer(cfg)

	tokens := subscription.NewTokenIssuer(cfg.SubscriptionTokenSecret, cfg.SubscriptionTokenTTL)
	g := guardian.New(cv, ds, cfg.HostDomain).WithTokens(tokens)

	httpSrv := &http.Server{Addr: cfg.HTTPListenAddr, Handler: httpserver.New(g)}
	wsSrv := &http.Server{Addr: cfg.WSListenAddr, Handler: wsserver.New(g)}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.Info("http json-rpc listening", "addr", cfg.HTTPListenAddr)
		return httpSrv.ListenAndServe()
	})
	eg.Go(func() error {
		slog.Info("websocket listening", "addr", cfg.WSListenAddr)
		return wsSrv.ListenAndServe()
	})

	if err := eg.Wait(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

func buildChainView(ctx context.Context, cfg *config.Config) (chainview.ChainView, error) {
	if cfg.ChainRPCURL == "" {
		slog.Info("chain view: dev mode (no CHAIN_RPC_URL set)", "chain_id", cfg.ChainID)
		return chainview.NewDevChainView(cfg.ChainID), nil
	}
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	slog.Info("chain view: connecting to rpc endpoint", "url", cfg.ChainRPCURL)
	return chainview.NewEthChainView(dialCtx, cfg.ChainRPCURL, cfg.ChainID)
}

func buildDataServer(cfg *config.Config) dataserver.DataServer {
	if cfg.UpstreamDataServerURL == "" {
		slog.Info("data server: in-memory reference implementation")
		return dataserver.NewMemory()
	}
	slog.Info("data server: remote backend", "url", cfg.UpstreamDataServerURL)
	return dataserver.NewRemote(cfg.UpstreamDataServerURL, nil)
}
