package harvest

import (
	"context"
	"io"
	"time"

	"locscraper/pkg/loc"
	"locscraper/pkg/metrics"
	"locscraper/pkg/ratelimit"
)

// pacedClient passes the engine's asset traffic through the shared rate
// limiter and the request duration histogram. The engine's client
// interface carries no context, so the run context is installed on the
// wrapper at the start of each run; the pipeline is strictly sequential,
// nothing reads it concurrently.
type pacedClient struct {
	client  *loc.Client
	limiter ratelimit.Limiter
	metrics *metrics.Metrics
	ctx     context.Context
}

func (p *pacedClient) Probe(rawURL string) loc.AssetInfo {
	if err := p.limiter.Wait(p.ctx); err != nil {
		return loc.NoInfo()
	}
	started := time.Now()
	info := p.client.Probe(rawURL)
	p.metrics.ObserveRequestDuration(time.Since(started))
	return info
}

func (p *pacedClient) FetchAsset(rawURL string) (io.ReadCloser, loc.AssetInfo, error) {
	if err := p.limiter.Wait(p.ctx); err != nil {
		return nil, loc.NoInfo(), err
	}
	started := time.Now()
	body, info, err := p.client.FetchAsset(rawURL)
	p.metrics.ObserveRequestDuration(time.Since(started))
	return body, info, err
}
