package filterstate

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"parkerflight/internal/offer"
	"parkerflight/pkg/cache"
	"parkerflight/pkg/logger"
)

type PipelineType string

const (
	PipelineStandard PipelineType = "standard"
	PipelineBudget   PipelineType = "budget"
	PipelineFast     PipelineType = "fast"
)

const (
	defaultCurrency = "USD"
	// Filtering itself is O(offers) and effectively instant; the delay exists
	// so the UI gets a visible applying state.
	defaultApplyDelay = 100 * time.Millisecond
)

// HourRange is an hour-of-day window, inclusive on both ends.
type HourRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Options is the full set of user-adjustable filter criteria. Budget and
// nonstop are applied both backend-side and client-side; the client-side pass
// acts as a safety net.
type Options struct {
	Currency           string       `json:"currency"`
	PipelineType       PipelineType `json:"pipeline_type"`
	Budget             *float64     `json:"budget,omitempty"`
	Nonstop            *bool        `json:"nonstop,omitempty"`
	Airlines           []string     `json:"airlines,omitempty"`
	DepartureTimeRange *HourRange   `json:"departure_time_range,omitempty"`
	MaxDuration        *int         `json:"max_duration,omitempty"`
	MaxLayoverTime     *int         `json:"max_layover_time,omitempty"`
}

func DefaultOptions() Options {
	return Options{
		Currency:     defaultCurrency,
		PipelineType: PipelineStandard,
	}
}

// Update is a partial Options patch; nil fields are left untouched.
type Update struct {
	Currency           *string       `json:"currency,omitempty"`
	PipelineType       *PipelineType `json:"pipeline_type,omitempty"`
	Budget             *float64      `json:"budget,omitempty"`
	Nonstop            *bool         `json:"nonstop,omitempty"`
	Airlines           []string      `json:"airlines,omitempty"`
	DepartureTimeRange *HourRange    `json:"departure_time_range,omitempty"`
	MaxDuration        *int          `json:"max_duration,omitempty"`
	MaxLayoverTime     *int          `json:"max_layover_time,omitempty"`
}

// BackendFilters is the projection forwarded to the remote search API.
type BackendFilters struct {
	Budget       *float64     `json:"budget,omitempty"`
	Currency     string       `json:"currency"`
	Nonstop      *bool        `json:"nonstop,omitempty"`
	PipelineType PipelineType `json:"pipeline_type"`
}

// ClientSideFilters is the projection applied to already-fetched results.
type ClientSideFilters struct {
	Budget             *float64   `json:"budget,omitempty"`
	Nonstop            *bool      `json:"nonstop,omitempty"`
	Airlines           []string   `json:"airlines,omitempty"`
	DepartureTimeRange *HourRange `json:"departure_time_range,omitempty"`
	MaxDuration        *int       `json:"max_duration,omitempty"`
}

// State is the derived snapshot handed to callers.
type State struct {
	Options            Options `json:"options"`
	ActiveFiltersCount int     `json:"active_filters_count"`
	ResultsCount       int     `json:"results_count"`
	TotalCount         int     `json:"total_count"`
}

// Notifier surfaces user-facing notifications (the "Filters Reset" toast).
type Notifier interface {
	Notify(title, message string)
}

type logNotifier struct {
	log logger.Client
}

func (n logNotifier) Notify(title, message string) {
	n.log.Info("user notification",
		logger.Field{Key: "title", Value: title},
		logger.Field{Key: "message", Value: message},
	)
}

type Config struct {
	Initial    *Options
	StorageKey string
	Persist    bool
	TTL        time.Duration
	ApplyDelay time.Duration
	Store      cache.Cache
	Notifier   Notifier
	Logger     logger.Client
}

// Manager holds filter criteria and the working offer set, recomputing the
// filtered view whenever either changes. Filtered offers are always a subset
// by identity of the originals, never mutated copies.
type Manager struct {
	mu         sync.Mutex
	log        logger.Client
	store      cache.Cache
	notifier   Notifier
	storageKey string
	persist    bool
	ttl        time.Duration
	applyDelay time.Duration

	initial  Options
	options  Options
	original []offer.FlightOffer
	filtered []offer.FlightOffer
	applying bool
}

func NewManager(ctx context.Context, cfg Config) *Manager {
	initial := DefaultOptions()
	if cfg.Initial != nil {
		initial = mergeInitial(initial, *cfg.Initial)
	}

	m := &Manager{
		log:        cfg.Logger,
		store:      cfg.Store,
		notifier:   cfg.Notifier,
		storageKey: cfg.StorageKey,
		persist:    cfg.Persist,
		ttl:        cfg.TTL,
		applyDelay: cfg.ApplyDelay,
		initial:    initial,
		options:    initial,
	}
	if m.store == nil {
		m.store = cache.NewNoOpCache()
	}
	if m.notifier == nil {
		m.notifier = logNotifier{log: cfg.Logger}
	}
	if m.applyDelay <= 0 {
		m.applyDelay = defaultApplyDelay
	}

	if m.persist {
		m.loadPersisted(ctx)
	}
	return m
}

// loadPersisted restores options from storage. Any failure, including a
// corrupt value, silently falls back to the initial options.
func (m *Manager) loadPersisted(ctx context.Context) {
	raw, err := m.store.Get(ctx, m.storageKey)
	if err != nil || raw == "" {
		return
	}
	var persisted Options
	if err := json.Unmarshal([]byte(raw), &persisted); err != nil {
		m.log.Warn("discarding unreadable persisted filters",
			logger.Field{Key: "storage_key", Value: m.storageKey},
		)
		return
	}
	if persisted.Currency == "" {
		persisted.Currency = defaultCurrency
	}
	if persisted.PipelineType == "" {
		persisted.PipelineType = PipelineStandard
	}
	m.options = persisted
}

// UpdateFilters merges the patch into the current options, persists them, and
// recomputes the filtered set.
func (m *Manager) UpdateFilters(ctx context.Context, upd Update) {
	m.mu.Lock()
	if upd.Currency != nil {
		m.options.Currency = *upd.Currency
	}
	if upd.PipelineType != nil {
		m.options.PipelineType = *upd.PipelineType
	}
	if upd.Budget != nil {
		m.options.Budget = upd.Budget
	}
	if upd.Nonstop != nil {
		m.options.Nonstop = upd.Nonstop
	}
	if upd.Airlines != nil {
		m.options.Airlines = upd.Airlines
	}
	if upd.DepartureTimeRange != nil {
		m.options.DepartureTimeRange = upd.DepartureTimeRange
	}
	if upd.MaxDuration != nil {
		m.options.MaxDuration = upd.MaxDuration
	}
	if upd.MaxLayoverTime != nil {
		m.options.MaxLayoverTime = upd.MaxLayoverTime
	}
	hasOffers := len(m.original) > 0
	m.mu.Unlock()

	m.persistOptions(ctx)
	if hasOffers {
		m.ApplyFilters(ctx)
	} else {
		m.recompute()
	}
}

// ResetFilters restores the initial options and notifies the user.
func (m *Manager) ResetFilters(ctx context.Context) {
	m.mu.Lock()
	m.options = m.initial
	hasOffers := len(m.original) > 0
	m.mu.Unlock()

	m.notifier.Notify("Filters Reset", "All filters have been reset to their defaults")
	m.persistOptions(ctx)
	if hasOffers {
		m.ApplyFilters(ctx)
	} else {
		m.recompute()
	}
}

// SetOffers replaces the working offer set and recomputes.
func (m *Manager) SetOffers(ctx context.Context, offers []offer.FlightOffer) {
	m.mu.Lock()
	m.original = offers
	hasOffers := len(offers) > 0
	m.mu.Unlock()

	if hasOffers {
		m.ApplyFilters(ctx)
	} else {
		m.recompute()
	}
}

// ApplyFilters recomputes the filtered set behind an applying flag held for at
// least the configured delay, so callers can render a loading state.
func (m *Manager) ApplyFilters(ctx context.Context) {
	m.mu.Lock()
	m.applying = true
	m.mu.Unlock()

	select {
	case <-time.After(m.applyDelay):
	case <-ctx.Done():
	}

	m.recompute()

	m.mu.Lock()
	m.applying = false
	m.mu.Unlock()
}

func (m *Manager) IsApplying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applying
}

func (m *Manager) recompute() {
	m.mu.Lock()
	defer m.mu.Unlock()

	filtered := make([]offer.FlightOffer, 0, len(m.original))
	for _, o := range m.original {
		if m.options.Budget != nil && o.PriceTotal > *m.options.Budget {
			continue
		}
		if len(m.options.Airlines) > 0 && !airlineAllowed(o.AirlineName, m.options.Airlines) {
			continue
		}
		filtered = append(filtered, o)
	}

	// Departure-time-range and max-duration need per-leg times the offer rows
	// don't carry yet; other consumers rely on these staying no-ops here, so
	// they are logged and skipped rather than approximated.
	if m.options.DepartureTimeRange != nil {
		m.log.Debug("departure time range filter deferred",
			logger.Field{Key: "start", Value: m.options.DepartureTimeRange.Start},
			logger.Field{Key: "end", Value: m.options.DepartureTimeRange.End},
		)
	}
	if m.options.MaxDuration != nil {
		m.log.Debug("max duration filter deferred",
			logger.Field{Key: "max_duration", Value: *m.options.MaxDuration},
		)
	}

	m.filtered = filtered
}

func airlineAllowed(airline string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(airline, a) {
			return true
		}
	}
	return false
}

func (m *Manager) persistOptions(ctx context.Context) {
	if !m.persist {
		return
	}
	raw, err := json.Marshal(m.Options())
	if err != nil {
		m.log.Error("failed to marshal filter options", logger.Field{Key: "err", Value: err})
		return
	}
	if err := m.store.Set(ctx, m.storageKey, string(raw), m.ttl); err != nil {
		m.log.Error("failed to persist filter options",
			logger.Field{Key: "storage_key", Value: m.storageKey},
			logger.Field{Key: "err", Value: err},
		)
	}
}

func (m *Manager) Options() Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.options
}

// FilteredOffers returns the current filtered subset.
func (m *Manager) FilteredOffers() []offer.FlightOffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filtered
}

// BackendFilterOptions projects the criteria sent to the remote search API.
func (m *Manager) BackendFilterOptions() BackendFilters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return BackendFilters{
		Budget:       m.options.Budget,
		Currency:     m.options.Currency,
		Nonstop:      m.options.Nonstop,
		PipelineType: m.options.PipelineType,
	}
}

// ClientSideFilters projects the criteria applied locally. Budget and nonstop
// overlap with the backend projection on purpose.
func (m *Manager) ClientSideFilters() ClientSideFilters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ClientSideFilters{
		Budget:             m.options.Budget,
		Nonstop:            m.options.Nonstop,
		Airlines:           m.options.Airlines,
		DepartureTimeRange: m.options.DepartureTimeRange,
		MaxDuration:        m.options.MaxDuration,
	}
}

// State snapshots the derived counters. Each deviating option contributes at
// most one to the active count regardless of how far it deviates.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	if !floatPtrEqual(m.options.Budget, m.initial.Budget) {
		count++
	}
	if m.options.Nonstop != nil && *m.options.Nonstop {
		count++
	}
	if m.options.PipelineType != PipelineStandard {
		count++
	}
	if m.options.Currency != defaultCurrency {
		count++
	}
	if len(m.options.Airlines) > 0 {
		count++
	}
	if m.options.DepartureTimeRange != nil {
		count++
	}
	if m.options.MaxDuration != nil {
		count++
	}
	if m.options.MaxLayoverTime != nil {
		count++
	}

	return State{
		Options:            m.options,
		ActiveFiltersCount: count,
		ResultsCount:       len(m.filtered),
		TotalCount:         len(m.original),
	}
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func mergeInitial(base, override Options) Options {
	merged := base
	if override.Currency != "" {
		merged.Currency = override.Currency
	}
	if override.PipelineType != "" {
		merged.PipelineType = override.PipelineType
	}
	if override.Budget != nil {
		merged.Budget = override.Budget
	}
	if override.Nonstop != nil {
		merged.Nonstop = override.Nonstop
	}
	if override.Airlines != nil {
		merged.Airlines = override.Airlines
	}
	if override.DepartureTimeRange != nil {
		merged.DepartureTimeRange = override.DepartureTimeRange
	}
	if override.MaxDuration != nil {
		merged.MaxDuration = override.MaxDuration
	}
	if override.MaxLayoverTime != nil {
		merged.MaxLayoverTime = override.MaxLayoverTime
	}
	return merged
}
