package alert

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/syncwatch/internal/core/domain"
	"github.com/vietddude/syncwatch/internal/indexing/metrics"
	"github.com/vietddude/syncwatch/internal/indexing/reconcile"
)

// Evaluation is one chain's status in one cycle.
type Evaluation struct {
	ChainID   domain.ChainID
	ChainName string
	Status    domain.SyncStatus
}

// NotifierConfig configures a Notifier.
type NotifierConfig struct {
	ThresholdPercent float64
	Names            reconcile.SourceNames
	Policy           Policy     // defaults to NoSuppression
	Store            StateStore // defaults to a MemoryStore
}

// Notifier turns evaluations into alerts. Dispatch failures are logged and
// never returned.
type Notifier struct {
	alerter Alerter
	cfg     NotifierConfig
	log     *slog.Logger
	now     func() time.Time
}

func NewNotifier(alerter Alerter, cfg NotifierConfig, logger *slog.Logger) *Notifier {
	if cfg.Policy == nil {
		cfg.Policy = NoSuppression{}
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Names == (reconcile.SourceNames{}) {
		cfg.Names = reconcile.DefaultSourceNames
	}
	return &Notifier{
		alerter: alerter,
		cfg:     cfg,
		log:     logger.With("component", "alerter"),
		now:     time.Now,
	}
}

// Result summarizes one Notify call.
type Result struct {
	Sent       int
	Failed     int
	Suppressed int
}

// Notify evaluates every chain once and dispatches what the policy allows.
func (n *Notifier) Notify(ctx context.Context, cycleID string, evals []Evaluation) Result {
	var res Result
	for _, ev := range evals {
		if ctx.Err() != nil {
			n.log.Warn("Alert run cancelled", "cycle", cycleID, "error", ctx.Err())
			break
		}
		n.notifyOne(ctx, cycleID, ev, &res)
	}
	return res
}

func (n *Notifier) notifyOne(ctx context.Context, cycleID string, ev Evaluation, res *Result) {
	unhealthy := reconcile.ShouldAlert(ev.Status, n.cfg.ThresholdPercent)

	var prev ChainState
	if n.cfg.Policy.Stateful() {
		s, err := n.cfg.Store.Get(ctx, ev.ChainID)
		if err != nil {
			n.log.Warn("Failed to load alert state", "chain", ev.ChainID, "error", err)
		}
		prev = s
	}

	next, action := n.cfg.Policy.Decide(prev, unhealthy, n.now())

	if n.cfg.Policy.Stateful() && next != prev {
		if err := n.cfg.Store.Put(ctx, ev.ChainID, next); err != nil {
			n.log.Warn("Failed to save alert state", "chain", ev.ChainID, "error", err)
		}
	}

	a := Alert{
		ChainID:   ev.ChainID,
		ChainName: ev.ChainName,
		Status:    ev.Status,
		CycleID:   cycleID,
	}
	switch action {
	case ActionAlert:
		a.Kind = KindSync
		a.Text = reconcile.FormatAlert(ev.ChainName, ev.Status, n.cfg.Names)
	case ActionRecovery:
		a.Kind = KindRecovery
		a.Text = reconcile.FormatRecovery(ev.ChainName, ev.Status, n.cfg.Names)
	case ActionSuppress:
		res.Suppressed++
		metrics.AlertsSuppressedTotal.WithLabelValues(ev.ChainID).Inc()
		n.log.Debug("Alert suppressed", "chain", ev.ChainID, "phase", next.Phase)
		return
	default:
		return
	}

	if err := n.alerter.Send(ctx, a); err != nil {
		res.Failed++
		metrics.AlertsFailedTotal.WithLabelValues(ev.ChainID).Inc()
		n.log.Warn("Alert send failed",
			"channel", alerterName(n.alerter),
			"chain", ev.ChainID,
			"kind", a.Kind,
			"error", err,
		)
		return
	}
	res.Sent++
	metrics.AlertsSentTotal.WithLabelValues(ev.ChainID, string(a.Kind)).Inc()
	n.log.Info("Alert sent", "chain", ev.ChainID, "name", ev.ChainName, "kind", a.Kind, "cycle", cycleID)
}
