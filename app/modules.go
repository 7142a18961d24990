package app

import (
	"context"
	"fmt"
	"os"

	kitlog "github.com/go-kit/log"
	"github.com/grafana/dskit/modules"
	"github.com/grafana/dskit/server"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"

	"github.com/zachfi/onair/modules/api"
	"github.com/zachfi/onair/modules/poller"
	"github.com/zachfi/onair/modules/relay"
	"github.com/zachfi/onair/modules/tuner"
)

const (
	Server string = "server"

	Relay  string = "relay"
	Tuner  string = "tuner"
	Poller string = "poller"
	API    string = "api"

	All string = "all"
)

func (a *App) setupModuleManager() error {
	mm := modules.NewManager(kitlog.NewLogfmtLogger(os.Stderr))
	mm.RegisterModule(Server, a.initServer, modules.UserInvisibleModule)

	mm.RegisterModule(Relay, a.initRelay)
	mm.RegisterModule(Tuner, a.initTuner)
	mm.RegisterModule(Poller, a.initPoller)
	mm.RegisterModule(API, a.initAPI)

	mm.RegisterModule(All, nil)

	deps := map[string][]string{
		// Server:       nil,
		Relay:  {Server},
		Tuner:  {Relay},
		Poller: {Server},
		API:    {Server, Tuner},

		All: {API, Poller},
	}

	for mod, targets := range deps {
		if err := mm.AddDependency(mod, targets...); err != nil {
			return err
		}
	}

	a.ModuleManager = mm

	return nil
}

func (a *App) initRelay() (services.Service, error) {
	r, err := relay.New(a.cfg.Relay, a.logger, nil)
	if err != nil {
		return nil, errors.Wrap(err, "unable to init "+Relay)
	}
	a.relay = r

	return r, nil
}

func (a *App) initTuner() (services.Service, error) {
	t, err := tuner.New(a.cfg.Tuner, a.logger, a.relay, a.machine, a.store)
	if err != nil {
		return nil, errors.Wrap(err, "unable to init "+Tuner)
	}
	a.tuner = t

	return t, nil
}

func (a *App) initPoller() (services.Service, error) {
	// without a tuner in this process nothing is ever live
	live := a.machine.Live

	p, err := poller.New(a.cfg.Poller, a.logger, nil, a.store, live)
	if err != nil {
		return nil, errors.Wrap(err, "unable to init "+Poller)
	}

	return p, nil
}

func (a *App) initAPI() (services.Service, error) {
	s, err := api.New(a.cfg.API, a.logger, a.Server.HTTP, a.tuner, a.machine, a.store)
	if err != nil {
		return nil, errors.Wrap(err, "unable to init "+API)
	}
	a.tuner.SubscribeAlerts(s.PublishAlert)

	return s, nil
}

func (a *App) initServer() (services.Service, error) {
	a.cfg.Server.MetricsNamespace = metricsNamespace
	a.cfg.Server.ExcludeRequestInLog = true
	a.cfg.Server.RegisterInstrumentation = true
	a.cfg.Server.Log = kitlog.NewLogfmtLogger(os.Stderr)
	// event stream clients hold their response open
	a.cfg.Server.HTTPServerWriteTimeout = 0

	server, err := server.New(a.cfg.Server)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create server")
	}

	servicesToWaitFor := func() []services.Service {
		svs := []services.Service(nil)
		for m, s := range a.serviceMap {
			// Server should not wait for itself.
			if m != Server {
				svs = append(svs, s)
			}
		}

		return svs
	}

	a.Server = server

	serverDone := make(chan error, 1)

	runFn := func(ctx context.Context) error {
		go func() {
			defer close(serverDone)
			serverDone <- server.Run()
		}()

		select {
		case <-ctx.Done():
			return nil
		case err := <-serverDone:
			if err != nil {
				return err
			}

			return fmt.Errorf("server stopped unexpectedly")
		}
	}

	stoppingFn := func(_ error) error {
		// wait until all modules are done, and then shutdown server.
		for _, s := range servicesToWaitFor() {
			_ = s.AwaitTerminated(context.Background())
		}

		// shutdown HTTP and gRPC servers (this also unblocks Run)
		server.Shutdown()

		// if not closed yet, wait until server stops.
		<-serverDone
		a.logger.Info("server stopped")
		return nil
	}

	return services.NewBasicService(nil, runFn, stoppingFn), nil
}
