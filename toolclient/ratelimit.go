package toolclient

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedServer wraps a Server with a per-tool token-bucket limit on how
// often calls may start, built on golang.org/x/time/rate. It does not bound
// the number of calls in flight: a call that has been admitted holds no slot
// while it runs.
type RateLimitedServer struct {
	inner   Server
	limiter *rate.Limiter
}

// NewRateLimitedServer wraps inner with a token-bucket limiter allowing a
// burst of up to burst call starts and refilling at ratePerSecond tokens/sec.
func NewRateLimitedServer(inner Server, ratePerSecond float64, burst int) *RateLimitedServer {
	return &RateLimitedServer{inner: inner, limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Call implements Server, blocking until the limiter admits the call or the
// context is cancelled/deadline elapses.
func (s *RateLimitedServer) Call(ctx context.Context, req Request) (Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("toolclient: rate limit wait: %w", err)
	}
	return s.inner.Call(ctx, req)
}
