package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/flemzord/tgrelay/internal/bus"
	"github.com/flemzord/tgrelay/internal/core"
	"github.com/flemzord/tgrelay/internal/cron"
	"github.com/flemzord/tgrelay/internal/handle"
	"github.com/flemzord/tgrelay/internal/metrics"
)

// Names of the services every module can rely on.
const (
	ServiceBus             = "bus"
	ServiceHandles         = "handles"
	ServiceScheduler       = "cron.scheduler"
	ServiceRelayMetrics    = "metrics.relay"
	ServiceMetricsRegistry = "metrics.registry"
)

// dispatchModule runs the event bus and the cron scheduler as part of the
// App lifecycle.
type dispatchModule struct {
	bus       *bus.Bus
	scheduler *cron.Scheduler
	logger    *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func (m *dispatchModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "app.dispatch"}
}

func (m *dispatchModule) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go func() {
		defer close(m.done)
		if err := m.bus.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("event bus stopped", "error", err)
		}
	}()

	if err := m.scheduler.Start(); err != nil {
		cancel()
		<-m.done
		return err
	}
	return nil
}

func (m *dispatchModule) Stop(ctx context.Context) error {
	err := m.scheduler.Stop(ctx)
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
	m.bus.Close()
	return err
}

// registerShared creates the bus, handle registry, scheduler and metrics,
// registers them on appCtx and returns the module that drives them.
func registerShared(appCtx *core.AppContext, logger *slog.Logger) *dispatchModule {
	b := bus.New(logger.With("component", "bus"), 0)
	scheduler := cron.NewScheduler(logger.With("component", "cron"))
	registry, relayMetrics := metrics.NewRegistry()

	appCtx.RegisterService(ServiceBus, b)
	appCtx.RegisterService(ServiceHandles, handle.NewRegistry())
	appCtx.RegisterService(ServiceScheduler, scheduler)
	appCtx.RegisterService(ServiceRelayMetrics, relayMetrics)
	appCtx.RegisterService(ServiceMetricsRegistry, registry)

	return &dispatchModule{bus: b, scheduler: scheduler, logger: logger}
}
