// Package fraud implements the fraud consumer's sliding-window rule
// evaluation from spec §4.8: three rules over a short window of recent
// wallet events, each producing at most one deduplicated alert and a
// monotonically increasing per-wallet risk score.
package fraud

import (
	"time"

	"github.com/shopspring/decimal"
)

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

const (
	RuleLargeTransaction = "large-transaction"
	RuleHighVelocity     = "high-velocity"
	RuleRapidWithdrawal  = "rapid-withdrawal"
)

var largeTransactionThreshold = decimal.NewFromInt(10000)

const (
	velocityWindow  = 10 * time.Minute
	velocityCount   = 5
	rapidWithdrawalWindow = 5 * time.Minute
)

// RecentEvent is one row of the sliding window, per spec §3's
// "Fraud — Recent event row".
type RecentEvent struct {
	WalletID      string
	EventType     string
	Amount        decimal.Decimal
	TransactionID string
	CreatedAt     time.Time
}

// Alert is a single rule violation, deduplicated by (TransactionID, RuleID).
type Alert struct {
	WalletID      string
	RuleID        string
	RuleName      string
	Severity      Severity
	TransactionID string
	EventType     string
	CreatedAt     time.Time
}

// scoreFor maps a severity to the risk-score delta from spec §4.8.
func scoreFor(s Severity) int {
	switch s {
	case SeverityLow:
		return 5
	case SeverityMedium:
		return 15
	case SeverityHigh:
		return 30
	case SeverityCritical:
		return 50
	default:
		return 0
	}
}

// LevelFor buckets a clamped [0,100] score into a risk level.
func LevelFor(score int) Severity {
	switch {
	case score <= 25:
		return SeverityLow
	case score <= 50:
		return SeverityMedium
	case score <= 75:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// Evaluate runs all three rules for the incoming event against its
// wallet's recent window (which already includes the incoming event,
// appended by the caller before evaluation) and returns every alert
// that fired.
func Evaluate(incoming RecentEvent, window []RecentEvent) []Alert {
	var alerts []Alert

	if incoming.Amount.GreaterThan(largeTransactionThreshold) {
		alerts = append(alerts, newAlert(incoming, RuleLargeTransaction, "Large Transaction", SeverityHigh))
	}

	if countSince(window, incoming.WalletID, incoming.CreatedAt.Add(-velocityWindow)) > velocityCount {
		alerts = append(alerts, newAlert(incoming, RuleHighVelocity, "High Velocity", SeverityMedium))
	}

	if incoming.EventType == "MoneyWithdrawn" && hasDepositSince(window, incoming.WalletID, incoming.CreatedAt.Add(-rapidWithdrawalWindow), incoming.TransactionID) {
		alerts = append(alerts, newAlert(incoming, RuleRapidWithdrawal, "Rapid Withdrawal", SeverityHigh))
	}

	return alerts
}

// ScoreDelta sums the risk contribution of a batch of alerts, clamped
// by the caller against the wallet's current score ceiling of 100.
func ScoreDelta(alerts []Alert) int {
	total := 0
	for _, a := range alerts {
		total += scoreFor(a.Severity)
	}
	return total
}

func newAlert(e RecentEvent, ruleID, ruleName string, severity Severity) Alert {
	return Alert{
		WalletID:      e.WalletID,
		RuleID:        ruleID,
		RuleName:      ruleName,
		Severity:      severity,
		TransactionID: e.TransactionID,
		EventType:     e.EventType,
		CreatedAt:     e.CreatedAt,
	}
}

func countSince(window []RecentEvent, walletID string, since time.Time) int {
	count := 0
	for _, e := range window {
		if e.WalletID == walletID && !e.CreatedAt.Before(since) {
			count++
		}
	}
	return count
}

func hasDepositSince(window []RecentEvent, walletID string, since time.Time, excludeTxID string) bool {
	for _, e := range window {
		if e.WalletID == walletID && e.EventType == "MoneyDeposited" &&
			e.TransactionID != excludeTxID && !e.CreatedAt.Before(since) {
			return true
		}
	}
	return false
}
