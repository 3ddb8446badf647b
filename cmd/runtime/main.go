// Command runtime is the Agent Foundry process entrypoint: it reads
// boot-time configuration (§4.1), wires C1 through C10 against their
// production or in-memory backends depending on what cfg configures, loads
// and compiles the instance's manifest/bundle (C8), and serves the chat,
// api, and voice channel adapters (C9) over HTTP until a SIGINT/SIGTERM
// asks it to stop. Grounded on the teacher's main.go/http.go split
// (_examples/goadesign-goa-ai/example/cmd/assistant/main.go), adapted from
// flag-driven configuration to the env-driven configuration §4.1 requires
// for container deployment.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	tclient "go.temporal.io/sdk/client"
	tworker "go.temporal.io/sdk/worker"
	"goa.design/clue/log"

	"github.com/nwalker85/agentfoundry-sub000/audit"
	auditinmem "github.com/nwalker85/agentfoundry-sub000/audit/inmem"
	"github.com/nwalker85/agentfoundry-sub000/authz"
	authzhttp "github.com/nwalker85/agentfoundry-sub000/authz/httpbackend"
	authzinmem "github.com/nwalker85/agentfoundry-sub000/authz/inmem"
	"github.com/nwalker85/agentfoundry-sub000/bundle"
	"github.com/nwalker85/agentfoundry-sub000/channel/api"
	"github.com/nwalker85/agentfoundry-sub000/channel/chat"
	"github.com/nwalker85/agentfoundry-sub000/channel/voice"
	"github.com/nwalker85/agentfoundry-sub000/graph/engine"
	engineinmem "github.com/nwalker85/agentfoundry-sub000/graph/engine/inmem"
	enginetemporal "github.com/nwalker85/agentfoundry-sub000/graph/engine/temporal"
	"github.com/nwalker85/agentfoundry-sub000/internal/config"
	"github.com/nwalker85/agentfoundry-sub000/registry"
	"github.com/nwalker85/agentfoundry-sub000/secretstore"
	secretstorehttp "github.com/nwalker85/agentfoundry-sub000/secretstore/httpbackend"
	secretstoreinmem "github.com/nwalker85/agentfoundry-sub000/secretstore/inmem"
	"github.com/nwalker85/agentfoundry-sub000/store"
	storeinmem "github.com/nwalker85/agentfoundry-sub000/store/inmem"
	"github.com/nwalker85/agentfoundry-sub000/store/mongostore"
	"github.com/nwalker85/agentfoundry-sub000/store/pgstore"
	"github.com/nwalker85/agentfoundry-sub000/telemetry"
	"github.com/nwalker85/agentfoundry-sub000/toolclient"
	toolclientinmem "github.com/nwalker85/agentfoundry-sub000/toolclient/inmem"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeForError(err))
	}

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if cfg.Debug {
		ctx = log.Context(ctx, log.WithDebug())
	}

	if err := run(ctx, cfg); err != nil {
		log.Printf(ctx, "boot failed: %v", err)
		os.Exit(exitCodeForError(err))
	}
}

func run(ctx context.Context, cfg config.Config) error {
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}

	metrics := telemetry.NewClueMetrics()
	logger := telemetry.NewClueLogger()
	tracer := telemetry.NewClueTracer()

	auditBackend := auditinmem.New()
	auditLog := audit.New(auditBackend, metrics, valueRedactor{}, 0)
	recorder := newAuditRecorder(auditLog)

	reg, err := registry.Load([]string{registry.RoleSecretStore, registry.RoleAuthz})
	if err != nil {
		return err
	}

	az, err := buildAuthzClient(reg, rdb, cfg.Debug)
	if err != nil {
		return err
	}

	secrets, err := buildSecretstoreClient(reg, rdb, az, recorder, cfg.Debug)
	if err != nil {
		return err
	}

	tools, err := buildToolClient(ctx, cfg, rdb, recorder, logger, tracer)
	if err != nil {
		return err
	}

	storeClient, sweeper, err := buildStore(ctx, cfg, metrics)
	if err != nil {
		return err
	}
	_ = storeClient // bound for future graph-version endpoints; exercised by its own package tests today.

	manifestYAML, bundleVal, err := loadBundleFromDisk(cfg.ManifestPath, cfg.BundlePath)
	if err != nil {
		return err
	}
	resolver := newManifestResolver(tools, az, secrets)
	manifest, compiled, err := bundle.Load(manifestYAML, bundleVal, resolver)
	if err != nil {
		return err
	}
	log.Printf(ctx, "loaded manifest %s/%s/%s", manifest.Tenant, manifest.Domain, manifest.Instance)

	eng, stopEngine, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	runner, err := newEngineRunner(eng, compiled, 0)
	if err != nil {
		return err
	}

	newReqID := func() string { return uuid.NewString() }
	chatAdapter := &chat.Adapter{Runner: runner, NewReqID: newReqID}
	apiAdapter := &api.Adapter{Runner: runner, NewReqID: newReqID}
	voiceAdapter := &voice.Adapter{Runner: runner, Tools: tools, NewReqID: newReqID}

	shutdownFns := []func(context.Context) error{
		func(ctx context.Context) error { return auditLog.Stop(ctx) },
	}
	if stopEngine != nil {
		shutdownFns = append(shutdownFns, stopEngine)
	}
	if sweeper != nil {
		stop := sweeper.Start(cfg.DraftSweepInterval)
		shutdownFns = append(shutdownFns, func(context.Context) error { stop(); return nil })
	}

	return serveHTTP(ctx, cfg, chatAdapter, apiAdapter, voiceAdapter, shutdownFns)
}

func buildAuthzClient(reg *registry.Registry, rdb *redis.Client, debug bool) (*authz.Client, error) {
	ep, err := reg.Resolve(registry.RoleAuthz)
	if err != nil {
		return nil, err
	}
	backend := authzhttp.New("http://"+ep.String(), nil, debug)
	var cache authz.Cache
	if rdb != nil {
		cache = authz.NewRedisCache(rdb, "authz:", authz.MaxCacheTTL)
	} else {
		cache = authzinmem.NewCache(authz.MaxCacheTTL)
	}
	return authz.New(backend, cache), nil
}

func buildSecretstoreClient(reg *registry.Registry, rdb *redis.Client, az *authz.Client, recorder *auditRecorder, debug bool) (*secretstore.Client, error) {
	ep, err := reg.Resolve(registry.RoleSecretStore)
	if err != nil {
		return nil, err
	}
	backend := secretstorehttp.New("http://"+ep.String(), nil, debug)
	const defaultSecretCacheTTL = 30 * time.Second
	var cache secretstore.Cache
	if rdb != nil {
		cache = secretstore.NewRedisCache(rdb, "secretstore:", defaultSecretCacheTTL)
	} else {
		cache = secretstoreinmem.NewCache(defaultSecretCacheTTL)
	}
	return secretstore.New(backend, cache, newSecretChecker(az), recorder), nil
}

func buildToolClient(ctx context.Context, cfg config.Config, rdb *redis.Client, recorder *auditRecorder, logger telemetry.Logger, tracer telemetry.Tracer) (*toolclient.Client, error) {
	reg := toolclientinmem.NewRegistry()
	if err := registerLLMProviders(ctx, cfg, reg); err != nil {
		return nil, err
	}
	var cache toolclient.IdempotencyCache
	if rdb != nil {
		cache = toolclient.NewRedisIdempotencyCache(rdb, "toolclient:")
	} else {
		cache = toolclientinmem.NewCache()
	}
	return toolclient.New(reg, cache, recorder, toolclient.WithLogger(logger), toolclient.WithTracer(tracer)), nil
}

// draftSweeper periodically evicts expired drafts from the in-memory
// DraftBackend (§4.7 "per-key TTL 24h"); the Mongo backend needs no
// equivalent since its TTL index expires documents server-side.
type draftSweeper struct {
	backend *storeinmem.DraftBackend
}

func (d *draftSweeper) Start(interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case now := <-ticker.C:
				d.backend.Sweep(now)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}

func buildStore(ctx context.Context, cfg config.Config, metrics telemetry.Metrics) (*store.Store, *draftSweeper, error) {
	var (
		drafts   store.DraftBackend
		versions store.VersionBackend
		sweeper  *draftSweeper
	)

	if cfg.MongoURI != "" {
		mongoClient, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("cmd/runtime: connect mongo: %w", err)
		}
		coll := mongoClient.Database(cfg.MongoDatabase).Collection("drafts")
		mongoDrafts := mongostore.NewDraftBackend(coll)
		if err := mongoDrafts.EnsureIndexes(ctx); err != nil {
			return nil, nil, fmt.Errorf("cmd/runtime: ensure mongo indexes: %w", err)
		}
		drafts = mongoDrafts
	} else {
		inmemDrafts := storeinmem.NewDraftBackend()
		drafts = inmemDrafts
		sweeper = &draftSweeper{backend: inmemDrafts}
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("cmd/runtime: connect postgres: %w", err)
		}
		versions = pgstore.NewVersionBackend(pool)
	} else {
		versions = storeinmem.NewVersionBackend()
	}

	return store.New(drafts, versions, metrics), sweeper, nil
}

func buildEngine(cfg config.Config) (engine.Engine, func(context.Context) error, error) {
	if cfg.TemporalHostPort == "" {
		return engineinmem.New(), nil, nil
	}

	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalHostPort, Namespace: cfg.TemporalNamespace})
	if err != nil {
		return nil, nil, fmt.Errorf("cmd/runtime: dial temporal: %w", err)
	}
	w := tworker.New(tc, cfg.TemporalTaskQueue, tworker.Options{})
	eng := enginetemporal.New(tc, w, cfg.TemporalTaskQueue)
	if err := w.Start(); err != nil {
		return nil, nil, fmt.Errorf("cmd/runtime: start temporal worker: %w", err)
	}
	stop := func(context.Context) error {
		w.Stop()
		tc.Close()
		return nil
	}
	return eng, stop, nil
}
