package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"lob/config"
	"lob/domain/orderbook"
	"lob/infra/kafka"
	"lob/infra/logging"
	"lob/infra/metrics"
	"lob/infra/nats"
	"lob/infra/outbox"
	"lob/infra/sequence"
	"lob/jobs/broadcaster"
	"lob/jobs/simulator"
	"lob/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var cfg config.Config
	if err := config.Load(&cfg); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("exit", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New("lob")

	// ---------------- Outbox ----------------

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithMetrics(m),
		service.WithSymbol(cfg.Engine.Symbol),
		service.WithInboxSize(cfg.Engine.InboxSize),
		service.WithInvariantChecks(cfg.Engine.CheckInvariants),
	}

	var bc *broadcaster.Broadcaster
	if cfg.Outbox.Enabled {
		box, err := outbox.Open(cfg.Outbox.Dir)
		if err != nil {
			return err
		}
		defer box.Close()

		last, err := box.LastSeq()
		if err != nil {
			return err
		}
		logger.Info("outbox opened", zap.String("dir", cfg.Outbox.Dir), zap.Uint64("last_seq", last))
		opts = append(opts, service.WithReporter(box), service.WithSequencer(sequence.New(last)))

		publisher, err := newPublisher(cfg, logger)
		if err != nil {
			return err
		}
		bc = broadcaster.New(box, publisher, broadcaster.Config{
			Interval:   cfg.Outbox.ScanInterval,
			MaxRetries: cfg.Outbox.MaxRetries,
		}, logger, m)
	}

	// ---------------- Engine ----------------

	engine := service.NewEngine(orderbook.NewOrderBook(), opts...)
	engine.Start(context.Background())
	engine.StartDepthJob(ctx, cfg.Engine.DepthInterval)

	bctx, bcancel := context.WithCancel(context.Background())
	defer bcancel()
	if bc != nil {
		bc.Start(bctx)
	}

	// ---------------- HTTP ----------------

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/depth", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(engine.Depth())
	})
	srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.Metrics.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", zap.Error(err))
			stop()
		}
	}()

	// ---------------- Simulator ----------------

	if cfg.Sim.Enabled {
		go func() {
			sim := simulator.New(simulator.Config{
				Orders:      cfg.Sim.Orders,
				Seed:        cfg.Sim.Seed,
				MidPrice:    cfg.Sim.MidPrice,
				Spread:      cfg.Sim.Spread,
				Tick:        cfg.Sim.Tick,
				MaxQuantity: cfg.Sim.MaxQuantity,
				MarketRatio: cfg.Sim.MarketRatio,
				CancelRatio: cfg.Sim.CancelRatio,
			}, engine, logger)
			if _, err := sim.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("simulation", zap.Error(err))
			}
		}()
	}

	logger.Info("engine running", zap.String("symbol", cfg.Engine.Symbol))
	<-ctx.Done()
	logger.Info("shutting down")

	// ---------------- Shutdown ----------------

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := engine.Stop(sctx); err != nil {
		logger.Warn("engine stop", zap.Error(err))
	}
	if bc != nil {
		bcancel()
		<-bc.Done()
		if n, err := bc.Drain(sctx); err != nil {
			logger.Warn("final drain", zap.Int("published", n), zap.Error(err))
		}
		if err := bc.Close(); err != nil {
			logger.Warn("publisher close", zap.Error(err))
		}
	}
	return nil
}

func newPublisher(cfg config.Config, logger *zap.Logger) (broadcaster.Publisher, error) {
	k, n := cfg.Kafka, cfg.NATS
	switch {
	case len(k.Brokers) > 0:
		logger.Info("publishing reports to kafka",
			zap.Strings("brokers", k.Brokers), zap.String("topic", k.Topic), zap.String("client", k.Client))
		if k.Client == "kafka-go" {
			return kafka.NewProducer(k.Brokers, k.Topic), nil
		}
		return broadcaster.NewSaramaPublisher(k.Brokers, k.Topic)
	case n.URL != "":
		logger.Info("publishing reports to nats", zap.String("url", n.URL), zap.String("subject", n.Subject))
		return nats.Connect(n.URL, n.Subject, n.FlushTimeout)
	default:
		logger.Info("no broker configured, reports go to the log")
		return broadcaster.NewLogPublisher(logging.Named(logger, "reports")), nil
	}
}
