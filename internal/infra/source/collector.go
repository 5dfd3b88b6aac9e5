package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/syncwatch/internal/core/domain"
	"github.com/vietddude/syncwatch/internal/indexing/metrics"
	"github.com/vietddude/syncwatch/internal/infra/rpc/provider"
)

// Endpoints are the two indexer URLs used for one cycle.
type Endpoints struct {
	FastURL       string
	DownstreamURL string
}

// Snapshot is the result of one poll cycle.
type Snapshot struct {
	CycleID   string
	StartedAt time.Time
	Duration  time.Duration
	Readings  []domain.ChainReading
	// SourceErrors holds the failure of each source that was unavailable
	// for the whole cycle.
	SourceErrors map[domain.Source]string
}

// CollectorConfig configures a Collector.
type CollectorConfig struct {
	Chains         []domain.Chain
	FastName       string
	DownstreamName string
	Timeout        time.Duration
	Heads          HeadSource    // nil when heads are derived or disabled
	Derived        DerivedSource // nil unless mock mode
	Nodes          *NodeClient   // closed with the collector
	Pool           pond.Pool     // bounds concurrent head fetches
}

// Collector fetches all three sources concurrently and assembles one reading per chain.
type Collector struct {
	cfg        CollectorConfig
	httpClient *http.Client
	providers  *xsync.Map[string, *provider.GraphQLProvider]
	log        *slog.Logger
}

// NewCollector creates a collector. GraphQL providers are created per URL on
// demand so request-time endpoint overrides keep their own health stats.
func NewCollector(cfg CollectorConfig, logger *slog.Logger) *Collector {
	if cfg.Pool == nil {
		cfg.Pool = pond.NewPool(8)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Collector{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		providers: xsync.NewMap[string, *provider.GraphQLProvider](),
		log:       logger.With("component", "collector"),
	}
}

// Close releases RPC and idle HTTP connections.
func (c *Collector) Close() {
	c.providers.Range(func(key string, p *provider.GraphQLProvider) bool {
		if err := p.Close(); err != nil {
			c.log.Warn("Failed to close provider", "provider", key, "error", err)
		}
		return true
	})
	if c.cfg.Nodes != nil {
		c.cfg.Nodes.Close()
	}
}

// Chains returns the registry the collector reads.
func (c *Collector) Chains() []domain.Chain {
	return c.cfg.Chains
}

func (c *Collector) provider(name, url string) *provider.GraphQLProvider {
	key := name + "|" + url
	p, _ := c.providers.LoadOrStore(key, provider.NewGraphQLProvider(name, url, c.httpClient))
	return p
}

// Providers returns the health of every GraphQL provider used so far.
func (c *Collector) Providers() map[string]provider.HealthStatus {
	out := make(map[string]provider.HealthStatus)
	c.providers.Range(func(_ string, p *provider.GraphQLProvider) bool {
		h := p.GetHealth()
		// A throttled or blocked provider skips calls even with a low error rate.
		h.Available = h.Available && p.IsAvailable()
		out[p.GetName()+" "+p.Endpoint()] = h
		return true
	})
	return out
}

// Collect runs one poll cycle against the given endpoints.
func (c *Collector) Collect(ctx context.Context, ep Endpoints) (*Snapshot, error) {
	if ep.FastURL == "" || ep.DownstreamURL == "" {
		return nil, fmt.Errorf("%w: missing fast or downstream url", ErrPipeline)
	}
	fast := NewFastIndexerSource(c.provider(c.cfg.FastName, ep.FastURL))
	downstream := NewDownstreamSource(c.provider(c.cfg.DownstreamName, ep.DownstreamURL))
	return c.CollectFrom(ctx, fast, downstream)
}

// CollectFrom runs one poll cycle against explicit indexer sources.
func (c *Collector) CollectFrom(ctx context.Context, fast, downstream IndexerSource) (*Snapshot, error) {
	snap := &Snapshot{
		CycleID:      uuid.NewString(),
		StartedAt:    time.Now(),
		SourceErrors: make(map[domain.Source]string),
	}
	log := c.log.With("cycle", snap.CycleID)

	var (
		fastHeights, downHeights IndexerHeights
		fastErr, downErr         error
		heads                    = make([]domain.Height, len(c.cfg.Chains))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fastHeights, fastErr = c.fetch(gctx, fast)
		return fatal(fastErr)
	})
	g.Go(func() error {
		downHeights, downErr = c.fetch(gctx, downstream)
		return fatal(downErr)
	})
	if c.cfg.Heads != nil {
		g.Go(func() error {
			heads = c.fetchHeads(gctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPipeline, err)
	}

	if fastErr != nil && downErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrPipeline, errors.Join(fastErr, downErr))
	}
	if fastErr != nil {
		log.Warn("Fast indexer unavailable", "source", fast.Name(), "error", fastErr)
		snap.SourceErrors[domain.SourceFast] = fastErr.Error()
	}
	if downErr != nil {
		log.Warn("Downstream indexer unavailable", "source", downstream.Name(), "error", downErr)
		snap.SourceErrors[domain.SourceDownstream] = downErr.Error()
	}

	snap.Readings = make([]domain.ChainReading, 0, len(c.cfg.Chains))
	for i, ch := range c.cfg.Chains {
		r := domain.ChainReading{
			ChainID:       ch.ID,
			Authoritative: heads[i],
			FastIndexer:   fastHeights.Height(ch.ID),
			Downstream:    downHeights.Height(ch.ID),
		}
		if ev, ok := fastHeights.Events[ch.ID]; ok {
			r.EventsProcessed = &ev
		}
		if c.cfg.Derived != nil {
			r.Authoritative = c.cfg.Derived.Derive(ch.ID, r.FastIndexer)
		}
		recordReading(ch, r)
		snap.Readings = append(snap.Readings, r)
	}

	snap.Duration = time.Since(snap.StartedAt)
	log.Debug("Poll cycle collected", "chains", len(snap.Readings), "duration", snap.Duration)
	return snap, nil
}

// fatal keeps malformed responses fatal for the whole cycle; other
// failures only make one source unavailable.
func fatal(err error) error {
	if errors.Is(err, ErrMalformedResponse) {
		return err
	}
	return nil
}

func (c *Collector) fetch(ctx context.Context, src IndexerSource) (IndexerHeights, error) {
	start := time.Now()
	h, err := src.FetchHeights(ctx)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.SourceRequestLatency.WithLabelValues(src.Name(), result).Observe(time.Since(start).Seconds())
	return h, err
}

func (c *Collector) fetchHeads(ctx context.Context) []domain.Height {
	heads := make([]domain.Height, len(c.cfg.Chains))
	group := c.cfg.Pool.NewGroup()
	for i, ch := range c.cfg.Chains {
		group.Submit(func() {
			start := time.Now()
			h, err := c.cfg.Heads.Head(ctx, ch)
			if err != nil {
				metrics.SourceRequestLatency.WithLabelValues("rpc", "error").Observe(time.Since(start).Seconds())
				if errors.Is(err, ErrNoRPC) {
					c.log.Debug("No RPC endpoint for chain", "chain", ch.ID)
				} else {
					c.log.Warn("Failed to fetch chain head", "chain", ch.ID, "error", err)
				}
				return
			}
			metrics.SourceRequestLatency.WithLabelValues("rpc", "ok").Observe(time.Since(start).Seconds())
			heads[i] = domain.At(h)
		})
	}
	_ = group.Wait()
	return heads
}

func recordReading(ch domain.Chain, r domain.ChainReading) {
	for src, h := range map[domain.Source]domain.Height{
		domain.SourceAuthoritative: r.Authoritative,
		domain.SourceFast:          r.FastIndexer,
		domain.SourceDownstream:    r.Downstream,
	} {
		if !h.Available {
			metrics.SourceUnavailableTotal.WithLabelValues(ch.ID, string(src)).Inc()
			continue
		}
		metrics.SourceHeight.WithLabelValues(ch.ID, string(src)).Set(float64(h.Value))
	}
}
