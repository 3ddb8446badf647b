package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"goa.design/clue/debug"
	"goa.design/clue/log"
	goahttp "goa.design/goa/v3/http"

	"github.com/nwalker85/agentfoundry-sub000/channel/api"
	"github.com/nwalker85/agentfoundry-sub000/channel/chat"
	"github.com/nwalker85/agentfoundry-sub000/channel/voice"
	"github.com/nwalker85/agentfoundry-sub000/internal/config"
)

// serveHTTP mounts the chat/api/voice channel adapters on one mux and
// serves them until a SIGINT/SIGTERM arrives, then drains in-flight work
// within cfg.ShutdownGracePeriod before returning — mirroring the
// teacher's handleHTTPServer/main signal-handling split
// (_examples/goadesign-goa-ai/example/cmd/assistant/{main,http}.go), with
// shutdownFns standing in for that teacher's single srv.Shutdown call so
// every long-lived background task (audit flusher, draft sweeper, Temporal
// worker) gets the same grace window.
func serveHTTP(ctx context.Context, cfg config.Config, chatAdapter *chat.Adapter, apiAdapter *api.Adapter, voiceAdapter *voice.Adapter, shutdownFns []func(context.Context) error) error {
	mux := goahttp.NewMuxer()
	if cfg.Debug {
		debug.MountPprofHandlers(debug.Adapt(mux))
		debug.MountDebugLogEnabler(debug.Adapt(mux))
	}

	chat.Mount(mux, chatAdapter)
	api.Mount(mux, apiAdapter)
	voice.Mount(mux, voiceAdapter)

	var handler http.Handler = mux
	if cfg.Debug {
		handler = debug.HTTP()(handler)
	}
	handler = log.HTTP(ctx)(handler)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: handler, ReadHeaderTimeout: 60 * time.Second}

	errc := make(chan error, 1)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	var wg sync.WaitGroup
	runCtx, cancel := context.WithCancel(ctx)

	wg.Add(1)
	go func() {
		defer wg.Done()
		go func() {
			log.Printf(ctx, "HTTP server listening on %q", cfg.HTTPAddr)
			errc <- srv.ListenAndServe()
		}()
		<-runCtx.Done()
		log.Printf(ctx, "shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf(ctx, "HTTP server shutdown: %v", err)
		}
	}()

	log.Printf(ctx, "exiting (%v)", <-errc)
	cancel()
	wg.Wait()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer drainCancel()
	for _, stop := range shutdownFns {
		if err := stop(drainCtx); err != nil {
			log.Printf(ctx, "shutdown task failed: %v", err)
		}
	}

	log.Printf(ctx, "exited")
	return nil
}
