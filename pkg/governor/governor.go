// Package governor enforces per-identity request-rate and casual-turn budgets
// for the conversational orchestration service. Counters and cooldowns live
// in an external shared counter store so horizontally scaled workers observe
// consistent counts; everything is scoped by the full (tenant, customer)
// pair.
package governor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/convoguard/convoguard/pkg/logging"
	"github.com/convoguard/convoguard/pkg/metrics"
	"github.com/convoguard/convoguard/pkg/resilience"
	"github.com/convoguard/convoguard/pkg/store"
)

// Block reasons, in check order
const (
	ReasonAbuseCooldown  = "abuse_cooldown"
	ReasonSpamCooldown   = "spam_cooldown"
	ReasonHourlyExceeded = "hourly_limit_exceeded"
	ReasonMinuteExceeded = "minute_limit_exceeded"
	ReasonAllowed        = "allowed"
)

// Config holds governor limits and cooldown durations
type Config struct {
	MinuteLimit   int           `json:"minute_limit"`
	HourlyLimit   int           `json:"hourly_limit"`
	SpamCooldown  time.Duration `json:"spam_cooldown"`
	AbuseCooldown time.Duration `json:"abuse_cooldown"`
	KeyPrefix     string        `json:"key_prefix"`
}

// DefaultConfig returns the default governor configuration
func DefaultConfig() *Config {
	return &Config{
		MinuteLimit:   10,
		HourlyLimit:   60,
		SpamCooldown:  30 * time.Minute,
		AbuseCooldown: 24 * time.Hour,
		KeyPrefix:     "convoguard:governor:",
	}
}

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed           bool   `json:"allowed"`
	Reason            string `json:"reason"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
	MinuteCount       int64  `json:"minute_count"`
	HourCount         int64  `json:"hour_count"`
}

// Governor enforces per-(tenant, customer) rate limits and cooldowns
type Governor struct {
	store   store.CounterStore
	config  *Config
	logger  *logging.Logger
	metrics *metrics.Metrics
	alerts  *resilience.AlertManager
}

// New creates a governor over the given counter store. metrics and alerts may
// be nil.
func New(counterStore store.CounterStore, config *Config, logger *logging.Logger, m *metrics.Metrics, alerts *resilience.AlertManager) *Governor {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &Governor{
		store:   counterStore,
		config:  config,
		logger:  logger,
		metrics: m,
		alerts:  alerts,
	}
}

// Check evaluates the identity against cooldowns and window limits, first
// match wins: abuse cooldown, spam cooldown, hourly limit, minute limit.
// Check never increments.
func (g *Governor) Check(ctx context.Context, tenantID, customerID string, now time.Time) (*Decision, error) {
	if blocked, retryAfter, err := g.cooldownRemaining(ctx, g.abuseKey(tenantID, customerID), now); err != nil {
		return nil, err
	} else if blocked {
		return g.deny(ctx, tenantID, customerID, ReasonAbuseCooldown, retryAfter, 0, 0), nil
	}

	if blocked, retryAfter, err := g.cooldownRemaining(ctx, g.spamKey(tenantID, customerID), now); err != nil {
		return nil, err
	} else if blocked {
		return g.deny(ctx, tenantID, customerID, ReasonSpamCooldown, retryAfter, 0, 0), nil
	}

	minuteCount, err := g.count(ctx, g.minuteKey(tenantID, customerID, now))
	if err != nil {
		return nil, err
	}
	hourCount, err := g.count(ctx, g.hourKey(tenantID, customerID, now))
	if err != nil {
		return nil, err
	}

	if hourCount >= int64(g.config.HourlyLimit) {
		return g.deny(ctx, tenantID, customerID, ReasonHourlyExceeded, 3600, minuteCount, hourCount), nil
	}
	if minuteCount >= int64(g.config.MinuteLimit) {
		return g.deny(ctx, tenantID, customerID, ReasonMinuteExceeded, 60, minuteCount, hourCount), nil
	}

	g.metrics.RecordGovernorDecision(ReasonAllowed)
	return &Decision{
		Allowed:     true,
		Reason:      ReasonAllowed,
		MinuteCount: minuteCount,
		HourCount:   hourCount,
	}, nil
}

// Increment bumps the current minute and hour buckets for the identity using
// the store's atomic increment-with-expire primitive.
func (g *Governor) Increment(ctx context.Context, tenantID, customerID string, now time.Time) error {
	if _, err := g.store.IncrWithTTL(ctx, g.minuteKey(tenantID, customerID, now), time.Minute); err != nil {
		return err
	}
	if _, err := g.store.IncrWithTTL(ctx, g.hourKey(tenantID, customerID, now), time.Hour); err != nil {
		return err
	}
	return nil
}

// Usage returns the current minute and hour counts without incrementing
func (g *Governor) Usage(ctx context.Context, tenantID, customerID string, now time.Time) (minute, hour int64, err error) {
	minute, err = g.count(ctx, g.minuteKey(tenantID, customerID, now))
	if err != nil {
		return 0, 0, err
	}
	hour, err = g.count(ctx, g.hourKey(tenantID, customerID, now))
	if err != nil {
		return 0, 0, err
	}
	return minute, hour, nil
}

// ApplySpamCooldown suspends the identity for the configured spam cooldown
func (g *Governor) ApplySpamCooldown(ctx context.Context, tenantID, customerID string, now time.Time) error {
	return g.applyCooldown(ctx, g.spamKey(tenantID, customerID), "spam", tenantID, customerID, now, g.config.SpamCooldown)
}

// ApplyAbuseCooldown suspends the identity for the configured abuse cooldown
func (g *Governor) ApplyAbuseCooldown(ctx context.Context, tenantID, customerID string, now time.Time) error {
	if err := g.applyCooldown(ctx, g.abuseKey(tenantID, customerID), "abuse", tenantID, customerID, now, g.config.AbuseCooldown); err != nil {
		return err
	}

	if g.alerts != nil {
		alert := resilience.Alert{
			Severity:    resilience.SeverityWarning,
			Title:       "Abuse Cooldown Applied",
			Description: fmt.Sprintf("Identity %s/%s suspended for %s", tenantID, customerID, g.config.AbuseCooldown),
			Source:      "governor",
			Tags: map[string]string{
				"tenant_id":   tenantID,
				"customer_id": customerID,
			},
		}
		if err := g.alerts.SendAlert(ctx, alert); err != nil {
			g.logger.Error("Failed to send abuse cooldown alert",
				"tenant_id", tenantID,
				"customer_id", customerID,
				"error", err,
			)
		}
	}
	return nil
}

// ClearCooldowns removes any active cooldowns for the identity
func (g *Governor) ClearCooldowns(ctx context.Context, tenantID, customerID string) error {
	if err := g.store.Delete(ctx, g.spamKey(tenantID, customerID)); err != nil {
		return err
	}
	return g.store.Delete(ctx, g.abuseKey(tenantID, customerID))
}

func (g *Governor) applyCooldown(ctx context.Context, key, kind, tenantID, customerID string, now time.Time, duration time.Duration) error {
	until := now.Add(duration)
	if err := g.store.SetWithTTL(ctx, key, strconv.FormatInt(until.Unix(), 10), duration); err != nil {
		return err
	}

	g.metrics.RecordCooldownApplied(kind)
	g.logger.Warn("Cooldown applied",
		"kind", kind,
		"tenant_id", tenantID,
		"customer_id", customerID,
		"until", until.UTC().Format(time.RFC3339),
	)
	return nil
}

// cooldownRemaining reads a cooldown key and compares the stored
// cooldown-until timestamp against now. The TTL expires the key on its own;
// the timestamp comparison guards against clock drift between workers.
func (g *Governor) cooldownRemaining(ctx context.Context, key string, now time.Time) (bool, int, error) {
	value, ok, err := g.store.Get(ctx, key)
	if err != nil {
		return false, 0, err
	}
	if !ok {
		return false, 0, nil
	}

	until, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return false, 0, nil
	}

	remaining := until - now.Unix()
	if remaining <= 0 {
		return false, 0, nil
	}
	return true, int(remaining), nil
}

func (g *Governor) count(ctx context.Context, key string) (int64, error) {
	value, ok, err := g.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	count, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, nil
	}
	return count, nil
}

func (g *Governor) deny(ctx context.Context, tenantID, customerID, reason string, retryAfter int, minuteCount, hourCount int64) *Decision {
	g.metrics.RecordGovernorDecision(reason)
	g.logger.LogGovernorEvent(ctx, tenantID, customerID, reason, retryAfter)

	return &Decision{
		Allowed:           false,
		Reason:            reason,
		RetryAfterSeconds: retryAfter,
		MinuteCount:       minuteCount,
		HourCount:         hourCount,
	}
}

func (g *Governor) minuteKey(tenantID, customerID string, now time.Time) string {
	return fmt.Sprintf("%scount:minute:%s:%s:%d", g.config.KeyPrefix, tenantID, customerID, now.Unix()/60)
}

func (g *Governor) hourKey(tenantID, customerID string, now time.Time) string {
	return fmt.Sprintf("%scount:hour:%s:%s:%d", g.config.KeyPrefix, tenantID, customerID, now.Unix()/3600)
}

func (g *Governor) spamKey(tenantID, customerID string) string {
	return fmt.Sprintf("%scooldown:spam:%s:%s", g.config.KeyPrefix, tenantID, customerID)
}

func (g *Governor) abuseKey(tenantID, customerID string) string {
	return fmt.Sprintf("%scooldown:abuse:%s:%s", g.config.KeyPrefix, tenantID, customerID)
}
