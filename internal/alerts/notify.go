package alerts

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"sports-analytics/internal/analysis"
	"sports-analytics/internal/bets"
	"sports-analytics/internal/logger"
)

// Notifier handles alert notifications
type Notifier struct {
	mu         sync.Mutex
	lastAlerts map[string]time.Time // Dedupe alerts
	cooldown   time.Duration        // Minimum time between same alerts
}

// NewNotifier creates a new notifier
func NewNotifier(cooldown time.Duration) *Notifier {
	return &Notifier{
		lastAlerts: make(map[string]time.Time),
		cooldown:   cooldown,
	}
}

// checkCooldown records key and reports whether it already fired within the
// cooldown window.
func (n *Notifier) checkCooldown(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if lastTime, ok := n.lastAlerts[key]; ok && time.Since(lastTime) < n.cooldown {
		return true
	}
	n.lastAlerts[key] = time.Now()
	return false
}

// AlertBetArbitrage reports that a tracked bet can now be hedged for a
// guaranteed profit. Returns false when the alert was suppressed.
func (n *Notifier) AlertBetArbitrage(alert bets.ArbitrageAlert) bool {
	key := fmt.Sprintf("bet-%s-%s-%d", alert.Bet.ID, alert.Bookmaker, alert.OppositeAmerican)
	if n.checkCooldown(key) {
		return false
	}

	logger.Info("ARB BET: %s | return=%.2f%% hedge=$%s guaranteed=$%s",
		alert.Message(), alert.Return*100,
		alert.HedgeStake.StringFixed(2), alert.Guaranteed.StringFixed(2),
	)
	return true
}

// AlertOpportunity reports a two-book arbitrage found by the line scanner.
func (n *Notifier) AlertOpportunity(opp analysis.ArbitrageOpportunity) bool {
	key := fmt.Sprintf("arb-%s-%s-%s-%s-%s@%d-%s@%d",
		opp.Key.GameID, opp.Key.Market, opp.Key.Player, opp.Key.Point,
		opp.A.Bookmaker, opp.A.American, opp.B.Bookmaker, opp.B.American)
	if n.checkCooldown(key) {
		return false
	}

	subject := opp.Key.Market
	if opp.Key.Player != "" {
		subject = opp.Key.Player + " " + subject
	}
	if opp.Key.Point != "" {
		subject += " " + opp.Key.Point
	}

	logger.Info("ARB: %s (%s) | %s %+d @%s $%.2f + %s %+d @%s $%.2f profit=$%.2f (%.2f%%)",
		subject, opp.Key.GameID,
		strings.ToUpper(opp.A.Outcome), opp.A.American, opp.A.Bookmaker, opp.A.Stake,
		strings.ToUpper(opp.B.Outcome), opp.B.American, opp.B.Bookmaker, opp.B.Stake,
		opp.Profit, opp.ProfitPct,
	)
	return true
}

// AlertValueBet reports a price that beats the consensus fair line.
func (n *Notifier) AlertValueBet(v analysis.ValueBet) bool {
	key := fmt.Sprintf("value-%s-%s-%s-%s-%d", v.GameID, v.Market, v.Side, v.Bookmaker, v.American)
	if n.checkCooldown(key) {
		return false
	}

	logger.Info("+EV: %s %s (%s) @%s %+d | fair=%.1f%%/%dbk implied=%.1f%% ev=%.2f%%",
		strings.ToUpper(v.Side), v.Market, v.GameID, v.Bookmaker, v.American,
		v.FairProbability*100, v.Books, v.ImpliedProbability*100, v.EVPercent,
	)
	return true
}

// AlertHedge reports a hedge sized for a tracked bet.
func (n *Notifier) AlertHedge(bet bets.Bet, hedgeAmerican int, h analysis.HedgeResult) bool {
	key := fmt.Sprintf("hedge-%s-%d", bet.ID, hedgeAmerican)
	if n.checkCooldown(key) {
		return false
	}

	action := "LOCK"
	if h.Guaranteed < 0 {
		action = "LIMIT LOSS"
	}

	logger.Info("HEDGE %s: %s %+d $%s -> hedge $%.2f at %+d | if original=$%.2f if hedge=$%.2f",
		action, bet.Team, bet.American, bet.Stake.StringFixed(2),
		h.HedgeStake, hedgeAmerican, h.ProfitIfOriginalWins, h.ProfitIfHedgeWins,
	)
	return true
}

// LogScan logs a scan completion
func (n *Notifier) LogScan(quotes, arbs, values int) {
	logger.Info("Scan complete: %d quotes, %d arbs, %d value bets", quotes, arbs, values)
}

// LogError logs an error
func (n *Notifier) LogError(context string, err error) {
	logger.Error("[%s]: %v", context, err)
}

// LogStartup logs server startup
func (n *Notifier) LogStartup(config string) {
	logger.Info("Server started |%s", config)
}

// CleanupOldAlerts removes stale alert records
func (n *Notifier) CleanupOldAlerts() {
	n.mu.Lock()
	defer n.mu.Unlock()
	cutoff := time.Now().Add(-1 * time.Hour)
	if n.cooldown > time.Hour {
		cutoff = time.Now().Add(-n.cooldown)
	}
	for key, t := range n.lastAlerts {
		if t.Before(cutoff) {
			delete(n.lastAlerts, key)
		}
	}
}
