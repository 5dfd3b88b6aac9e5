package reconcile

import (
	"fmt"

	"github.com/vietddude/syncwatch/internal/core/domain"
)

// ShouldAlert reports whether any edge of s is unhealthy. It is stricter than
// the chain's aggregate view: one bad edge is enough.
func ShouldAlert(s domain.SyncStatus, thresholdPercent float64) bool {
	for _, ratio := range s.Values() {
		if !EdgeHealthy(ratio, thresholdPercent) {
			return true
		}
	}
	return false
}

// SourceNames are the display names used in alert text.
type SourceNames struct {
	Authoritative string
	Fast          string
	Downstream    string
}

// DefaultSourceNames matches the labels of the original dashboard.
var DefaultSourceNames = SourceNames{Authoritative: "RPC", Fast: "Envio", Downstream: "Indexer"}

// FormatAlert renders the alert text for one chain with ratios to two decimals.
func FormatAlert(chainName string, s domain.SyncStatus, names SourceNames) string {
	return fmt.Sprintf("🚨 Alert: Sync issues detected for %s\n", chainName) +
		fmt.Sprintf("%s → %s: %s\n", names.Fast, names.Authoritative, FormatPercentage(s.FastVsAuthoritative)) +
		fmt.Sprintf("%s → %s: %s\n", names.Downstream, names.Fast, FormatPercentage(s.DownstreamVsFast)) +
		fmt.Sprintf("%s → %s: %s", names.Downstream, names.Authoritative, FormatPercentage(s.DownstreamVsAuthoritative))
}

// FormatRecovery renders the text sent when a chain leaves the alerted state.
func FormatRecovery(chainName string, s domain.SyncStatus, names SourceNames) string {
	return fmt.Sprintf("✅ Recovered: %s is back in sync\n", chainName) +
		fmt.Sprintf("%s → %s: %s\n", names.Fast, names.Authoritative, FormatPercentage(s.FastVsAuthoritative)) +
		fmt.Sprintf("%s → %s: %s\n", names.Downstream, names.Fast, FormatPercentage(s.DownstreamVsFast)) +
		fmt.Sprintf("%s → %s: %s", names.Downstream, names.Authoritative, FormatPercentage(s.DownstreamVsAuthoritative))
}

// FormatPercentage formats a ratio with two decimals and a percent sign.
func FormatPercentage(p float64) string {
	return fmt.Sprintf("%.2f%%", p)
}
