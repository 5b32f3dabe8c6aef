// Package notify records arbitrage outcomes for operator visibility: every
// submitted or rejected opportunity gets one ArbReport, logged through
// logrus and retained in a bounded in-memory ring so the status surface
// can serve recent activity without a database.
package notify

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"sui-arb-engine/internal/types"
)

// PathHop is one hop of an ArbReport's path, enough for an operator to see
// which pools and coins a reported opportunity actually walked without
// re-resolving the originating trade.Path.
type PathHop struct {
	Protocol types.ProtocolTag
	PoolID   types.ObjectId
	CoinIn   types.TypeTag
	CoinOut  types.TypeTag
}

// ArbReport is the canonical record of one opportunity's lifecycle outcome,
// whether or not it was ultimately submitted.
type ArbReport struct {
	SourceTxDigest string
	ArbTxDigest    string
	CoinType       types.TypeTag
	AmountIn       uint64
	Profit         int64
	Path           []PathHop

	ElapsedTotalMs     int64
	ElapsedCtxCreateMs int64
	ElapsedGridSearchMs int64
	ElapsedGSSMs        int64
	CacheMisses         uint64

	SimulatorName string
	Source        types.Source
	BuildVersion  string

	Submitted bool
	Err       string
}

// Sink receives ArbReports. The strategy package reports each submission
// attempt through this interface rather than depending on a concrete
// notifier.
type Sink interface {
	Notify(ArbReport)
}

// Notifier logs every report and retains the most recent maxRecent in
// memory, oldest dropped first, mirroring this codebase's Emit-then-List
// event manager shape without a ledger-backed persistence layer, since
// reports here are operational telemetry, not ledger state.
type Notifier struct {
	mu        sync.Mutex
	logger    *log.Logger
	maxRecent int
	recent    []ArbReport
}

// New returns a Notifier that logs via logger and retains maxRecent
// reports for List.
func New(logger *log.Logger, maxRecent int) *Notifier {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if maxRecent <= 0 {
		maxRecent = 256
	}
	return &Notifier{logger: logger, maxRecent: maxRecent}
}

// Notify logs r at Info (submitted) or Warn (rejected) level and appends it
// to the in-memory ring, evicting the oldest entry once maxRecent is
// exceeded.
func (n *Notifier) Notify(r ArbReport) {
	entry := n.logger.WithFields(log.Fields{
		"coin_type":     r.CoinType,
		"source":        r.Source.String(),
		"source_tx":     r.SourceTxDigest,
		"arb_tx":        r.ArbTxDigest,
		"amount_in":     r.AmountIn,
		"profit":        r.Profit,
		"elapsed_total": r.ElapsedTotalMs,
		"cache_misses":  r.CacheMisses,
		"simulator":     r.SimulatorName,
		"submitted":     r.Submitted,
	})
	if r.Submitted {
		entry.Info("opportunity submitted")
	} else if r.Err != "" {
		entry.WithField("err", r.Err).Warn("opportunity rejected")
	} else {
		entry.Debug("opportunity evaluated, not submitted")
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.recent = append(n.recent, r)
	if len(n.recent) > n.maxRecent {
		n.recent = n.recent[len(n.recent)-n.maxRecent:]
	}
}

// List returns a copy of the most recently notified reports, newest last.
func (n *Notifier) List() []ArbReport {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]ArbReport, len(n.recent))
	copy(out, n.recent)
	return out
}
