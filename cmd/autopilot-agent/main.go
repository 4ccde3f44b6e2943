// autopilot-agent — агент автоматизации: Run Controller, Fleet Manager,
// HTTP API и (при наличии RABBITMQ_URL) приём команд из брокера.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Autopilot/internal/actuator"
	"github.com/shaiso/Autopilot/internal/api"
	"github.com/shaiso/Autopilot/internal/config"
	"github.com/shaiso/Autopilot/internal/control"
	"github.com/shaiso/Autopilot/internal/domain"
	"github.com/shaiso/Autopilot/internal/events"
	"github.com/shaiso/Autopilot/internal/fleet"
	"github.com/shaiso/Autopilot/internal/mq"
	"github.com/shaiso/Autopilot/internal/orchestrator"
	"github.com/shaiso/Autopilot/internal/repo"
	"github.com/shaiso/Autopilot/internal/scheduler"
	"github.com/shaiso/Autopilot/internal/steps"
	"github.com/shaiso/Autopilot/internal/telemetry"
	"github.com/shaiso/Autopilot/internal/worker"
)

func main() {
	logger := telemetry.SetupLogger("autopilot-agent")
	logger.Info("starting autopilot-agent")

	if err := run(logger); err != nil {
		logger.Error("agent failed", "error", err)
		os.Exit(1)
	}

	logger.Info("stopped")
}

func run(logger *slog.Logger) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// База данных
	pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("connected to database")

	if err := repo.Migrate(ctx, pool); err != nil {
		return err
	}

	settingsRepo := repo.NewSettingsRepo(pool)
	logRepo := repo.NewLogRepo(pool)

	minTTL, maxTTL := loadTTLBounds(ctx, cfg, settingsRepo, logger)

	// Шина событий
	bus := events.NewBus(cfg.EventBuffer, logger)

	// Actuator
	act := newActuator(cfg, logger)

	// Fleet Manager
	fleetMgr := fleet.New(fleet.Config{
		Actuator:       act,
		Events:         bus,
		MaxSlots:       cfg.FleetMaxSlots,
		MinTTL:         minTTL,
		MaxTTL:         maxTTL,
		SweepInterval:  cfg.FleetSweepInterval,
		RotateInterval: cfg.FleetRotateInterval,
		CallTimeout:    cfg.FleetCallTimeout,
		EvictGrace:     cfg.FleetEvictGrace,
		TouchPoint:     fleet.Point{X: cfg.FleetTouchX, Y: cfg.FleetTouchY},
		Logger:         logger,
	})

	// Execution Engine и Run Controller
	engine := worker.New(worker.Config{
		Registry:     steps.DefaultRegistry(),
		Actuator:     act,
		Events:       bus,
		StrictCycles: cfg.StrictCycles,
		Logger:       logger,
	})

	workSource := repo.NewWorkSource(pool, cfg.TargetBinary)
	accountRepo := repo.NewAccountRepo(pool)
	channelRepo := repo.NewChannelRepo(pool)
	requestRepo := repo.NewJoinRequestRepo(pool)

	orch := orchestrator.New(orchestrator.Config{
		WorkSource: workSource,
		Fleet:      fleetMgr,
		Engine:     engine,
		Events:     bus,
		Defaults: orchestrator.Options{
			ItemsPerIdentity: cfg.ItemsPerIdentity,
			ExcludeCompleted: cfg.ExcludeCompleted,
		},
		KeepFleetOnStop: cfg.KeepFleetOnStop,
		LoopDelay:       cfg.LoopDelay,
		Logger:          logger,
	})

	service := control.NewService(control.Config{
		Controller:   orch,
		Fleet:        fleetMgr,
		Store:        settingsRepo,
		Channels:     channelRepo,
		Requests:     requestRepo,
		Accounts:     accountRepo,
		Preview:      workSource,
		Registry:     steps.DefaultRegistry(),
		TargetBinary: cfg.TargetBinary,
		AccountsDir:  cfg.AccountsDir,
		Logger:       logger,
	})

	// Брокер необязателен
	var publisher *mq.Publisher
	var consumer *mq.Consumer
	if cfg.RabbitMQURL != "" {
		conn, err := connectBroker(ctx, cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Warn("running without message broker", "error", err)
		} else {
			defer func() {
				if err := conn.Close(); err != nil {
					logger.Warn("failed to close broker connection", "error", err)
				}
			}()
			publisher = mq.NewPublisher(conn, logger)
			consumer = mq.NewConsumer(conn, logger, mq.ConsumerConfig{
				Queue:   mq.QueueControlCommands,
				Handler: control.NewDispatcher(service, logger).Handle,
			})
		}
	}

	// HTTP API
	handler := api.NewHandler(api.Config{
		Control:   service,
		Workflows: repo.NewWorkflowRepo(pool),
		Accounts:  accountRepo,
		Channels:  channelRepo,
		Requests:  requestRepo,
		Logs:      logRepo,
		Stats:     requestRepo,
		Logger:    logger,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	fleetMgr.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		drain(bus.C(), logRepo, publisher, logger)
	}()

	g.Go(func() error {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if consumer != nil {
		g.Go(func() error {
			if err := consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("control consumer: %w", err)
			}
			return nil
		})
	}

	if cfg.CampaignCron != "" {
		campaign, err := scheduler.New(scheduler.Config{
			Controller: orch,
			Expr:       cfg.CampaignCron,
			Timezone:   cfg.CampaignTZ,
			Options:    orch.Defaults,
			Logger:     logger,
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			return campaign.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer shutdownCancel()

		if err := orch.Stop(shutdownCtx); err != nil && !errors.Is(err, orchestrator.ErrNotRunning) {
			logger.Warn("failed to stop automation", "error", err)
		}
		fleetMgr.Stop()

		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	bus.Close()
	<-drained

	return err
}

// loadTTLBounds возвращает сохранённые границы TTL или значения из окружения.
func loadTTLBounds(ctx context.Context, cfg *config.Config, store *repo.SettingsRepo, logger *slog.Logger) (time.Duration, time.Duration) {
	minTTL, maxTTL, ok, err := store.LoadTTLBounds(ctx)
	switch {
	case err != nil:
		logger.Warn("failed to load fleet settings", "error", err)
	case ok:
		logger.Info("loaded fleet settings", "min_ttl", minTTL, "max_ttl", maxTTL)
		return minTTL, maxTTL
	}
	return cfg.FleetMinTTL, cfg.FleetMaxTTL
}

func newActuator(cfg *config.Config, logger *slog.Logger) actuator.Actuator {
	if cfg.Actuator == config.ActuatorSimulate {
		logger.Warn("actuator in simulate mode: no processes will be started")
		return actuator.NewRecorder()
	}
	return actuator.NewLocal(actuator.LocalConfig{
		Input:  actuator.NewLogInput(logger),
		Logger: logger,
	})
}

func connectBroker(ctx context.Context, url string, logger *slog.Logger) (*mq.Connection, error) {
	conn, err := mq.NewConnection(url, logger)
	if err != nil {
		return nil, err
	}
	if err := mq.SetupTopology(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// drain разбирает шину событий до её закрытия: пишет журнал в БД
// и пересылает события в брокер.
func drain(ch <-chan domain.Event, logs *repo.LogRepo, publisher *mq.Publisher, logger *slog.Logger) {
	ctx := context.Background()
	for e := range ch {
		logger.Debug("event", "type", e.Type, "identity", e.Identity, "node_id", e.NodeID)

		if err := logs.Append(ctx, e); err != nil {
			telemetry.EventsForwarded.WithLabelValues("log", "error").Inc()
			logger.Warn("failed to append log entry", "type", e.Type, "error", err)
		} else {
			telemetry.EventsForwarded.WithLabelValues("log", "ok").Inc()
		}

		if publisher != nil {
			result := "ok"
			if err := publisher.Forward(ctx, e); err != nil {
				result = "error"
			}
			telemetry.EventsForwarded.WithLabelValues("mq", result).Inc()
		}
	}
}
