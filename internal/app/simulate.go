package app

import (
	"context"
	"errors"
	"time"

	"fundamentals-merge/internal/alerting"
)

// SimulateAlert sends a synthetic batch summary for the given symbols through the configured notifier.
func (a *App) SimulateAlert(ctx context.Context, skipped, failed []string) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}
	if len(skipped) == 0 && len(failed) == 0 {
		return errors.New("at least one --skipped or --failed symbol is required")
	}

	now := time.Now().UTC()
	note := alerting.Notification{
		StartedAt:  now.Add(-time.Minute),
		FinishedAt: now,
		Skipped:    simulatedIssues(skipped, "simulated date alignment failure"),
		Failed:     simulatedIssues(failed, "simulated workbook failure"),
	}
	return notifier.Notify(ctx, note)
}

func simulatedIssues(symbols []string, reason string) []alerting.Issue {
	issues := make([]alerting.Issue, 0, len(symbols))
	for _, symbol := range symbols {
		issues = append(issues, alerting.Issue{Symbol: symbol, Reason: reason})
	}
	return issues
}
