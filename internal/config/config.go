// Package config reads the runtime's boot-time configuration from the
// process environment, grounded on the teacher's main.go flag/env handling
// (_examples/goadesign-goa-ai/example/cmd/assistant/main.go), but
// env-driven rather than flag-driven since runtime instances are deployed
// as containers (§4.1 "Inputs come from configuration read at process
// start"). Missing required values fail boot with ConfigurationError
// (§6.1 exit code 65), never defaulting to localhost (§4.1).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/nwalker85/agentfoundry-sub000/apperr"
)

// Config is the full set of boot-time settings a cmd/runtime process
// needs to wire C1 through C10.
type Config struct {
	HTTPAddr string

	ManifestPath string
	BundlePath   string

	RedisAddr string

	MongoURI        string
	MongoDatabase   string
	PostgresDSN     string

	TemporalHostPort  string
	TemporalNamespace string
	TemporalTaskQueue string

	AnthropicAPIKey string
	OpenAIAPIKey    string
	AWSRegion       string

	DraftSweepInterval  time.Duration
	AuditFlushInterval  time.Duration
	ShutdownGracePeriod time.Duration

	Debug bool
}

// These constants name the environment variables this package
// reads, matching §4.1's service-registry pattern of fixed, named inputs.
const (
	envHTTPAddr     = "AGENTFOUNDRY_HTTP_ADDR"
	envManifestPath = "AGENTFOUNDRY_MANIFEST_PATH"
	envBundlePath   = "AGENTFOUNDRY_BUNDLE_PATH"
	envRedisAddr    = "AGENTFOUNDRY_REDIS_ADDR"
	envMongoURI     = "AGENTFOUNDRY_MONGO_URI"
	envMongoDB      = "AGENTFOUNDRY_MONGO_DATABASE"
	envPostgresDSN  = "AGENTFOUNDRY_POSTGRES_DSN"
	envTemporalHost = "AGENTFOUNDRY_TEMPORAL_HOST_PORT"
	envTemporalNS   = "AGENTFOUNDRY_TEMPORAL_NAMESPACE"
	envTemporalTQ   = "AGENTFOUNDRY_TEMPORAL_TASK_QUEUE"
	envAnthropicKey = "AGENTFOUNDRY_ANTHROPIC_API_KEY"
	envOpenAIKey    = "AGENTFOUNDRY_OPENAI_API_KEY"
	envAWSRegion    = "AGENTFOUNDRY_AWS_REGION"
	envDebug        = "AGENTFOUNDRY_DEBUG"
)

// requiredVars must be set for the process to boot at all; their absence
// is a ConfigurationError (§6.1 exit code 65 "configuration error").
var requiredVars = []string{envHTTPAddr, envManifestPath, envBundlePath}

// Load reads Config from the process environment.
func Load() (Config, error) {
	var missing []string
	for _, name := range requiredVars {
		if os.Getenv(name) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Config{}, apperr.New(apperr.KindConfiguration, "", fmt.Sprintf("config: missing required environment variables: %v", missing))
	}

	debug, err := parseBool(os.Getenv(envDebug), false)
	if err != nil {
		return Config{}, apperr.Wrap(apperr.KindConfiguration, "", "config: invalid "+envDebug, err)
	}

	return Config{
		HTTPAddr:     os.Getenv(envHTTPAddr),
		ManifestPath: os.Getenv(envManifestPath),
		BundlePath:   os.Getenv(envBundlePath),

		RedisAddr: os.Getenv(envRedisAddr),

		MongoURI:      os.Getenv(envMongoURI),
		MongoDatabase: envOr(envMongoDB, "agentfoundry"),
		PostgresDSN:   os.Getenv(envPostgresDSN),

		TemporalHostPort:  os.Getenv(envTemporalHost),
		TemporalNamespace: envOr(envTemporalNS, "default"),
		TemporalTaskQueue: envOr(envTemporalTQ, "agentfoundry-runtime"),

		AnthropicAPIKey: os.Getenv(envAnthropicKey),
		OpenAIAPIKey:    os.Getenv(envOpenAIKey),
		AWSRegion:       envOr(envAWSRegion, "us-east-1"),

		DraftSweepInterval:  60 * time.Second,  // §5 "draft-sweeper task ... every 60 s"
		AuditFlushInterval:  100 * time.Millisecond, // §5 "audit-flusher task ... at 100 ms intervals"
		ShutdownGracePeriod: 5 * time.Second,   // §5 "drain in-flight work within a 5 s grace"

		Debug: debug,
	}, nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func parseBool(v string, fallback bool) (bool, error) {
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}
