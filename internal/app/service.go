// Package app provides the core tracking service that implements the
// dependencies required by the HTTP API.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/leadfuel/pixelbridge/internal/capi"
	"github.com/leadfuel/pixelbridge/internal/domain/dedupe"
	"github.com/leadfuel/pixelbridge/internal/domain/eventmap"
	"github.com/leadfuel/pixelbridge/internal/domain/model"
	"github.com/leadfuel/pixelbridge/internal/pipeline"
	"github.com/leadfuel/pixelbridge/internal/session"
	"github.com/leadfuel/pixelbridge/pkg/logger"
	"github.com/leadfuel/pixelbridge/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultDedupeWindow  = 24 * time.Hour
	defaultSessionTTL    = 24 * time.Hour
	defaultSweepInterval = 10 * time.Minute
	defaultShardCount    = 16
)

// PageData carries the browser context forwarded with every call.
type PageData struct {
	URL       string
	Domain    string
	IPAddress string
	UserAgent string
	FBP       string
	FBC       string
}

// PurchaseData is the payload of a purchase call.
type PurchaseData struct {
	TransactionID string
	Value         float64
	Customer      model.CustomerFields
	Products      []model.Product
}

// CheckoutData is the payload of a checkout-start call.
type CheckoutData struct {
	Value    float64
	Customer model.CustomerFields
	Products []model.Product
}

// OfferData is the payload of an offer-view call.
type OfferData struct {
	OfferID   string
	OfferName string
	Category  string
	Price     float64
}

// FacebookResult reports the Conversions API outcome for one call.
type FacebookResult struct {
	Success   bool
	Duplicate bool
	EventID   string
	Error     string
}

// TrackResult is returned to the route-handler collaborators.
type TrackResult struct {
	Success  bool
	UTM      model.AttributionFields
	Facebook FacebookResult
}

// Deliverer abstracts the outbound delivery client.
type Deliverer interface {
	Deliver(ctx context.Context, events ...model.PreparedEvent) capi.Result
}

// Service wires the attribution store, dedup cache, preparation
// pipeline, and delivery client behind the tracking operations.
type Service struct {
	mu sync.RWMutex

	// Core components
	sessions *session.Store
	cache    dedupe.Cache
	mapper   *eventmap.Mapper
	preparer *pipeline.Preparer
	delivery Deliverer

	// Configuration
	dedupeWindow  time.Duration
	sessionTTL    time.Duration
	sweepInterval time.Duration
	shardCount    int
	currency      string
	hashing       bool
	eventNameMap  map[string]string
	now           func() time.Time

	// State
	started bool
	stopCh  chan struct{}

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDelivery sets the outbound delivery client.
func WithDelivery(d Deliverer) Option {
	return func(s *Service) {
		if d != nil {
			s.delivery = d
		}
	}
}

// WithDedupeWindow sets the deduplication window.
func WithDedupeWindow(window time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.dedupeWindow = window
		}
	}
}

// WithSessionTTL sets the session inactivity threshold.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithSweepInterval sets how often the background sweeps run.
func WithSweepInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.sweepInterval = interval
		}
	}
}

// WithShardCount sets the session store partition count.
func WithShardCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.shardCount = count
		}
	}
}

// WithCurrency sets the outbound custom_data currency.
func WithCurrency(currency string) Option {
	return func(s *Service) {
		if currency != "" {
			s.currency = currency
		}
	}
}

// WithHashing toggles identity hashing in the pipeline.
func WithHashing(enabled bool) Option {
	return func(s *Service) {
		s.hashing = enabled
	}
}

// WithEventNameMap overlays custom-to-standard event name mappings.
func WithEventNameMap(table map[string]string) Option {
	return func(s *Service) {
		s.eventNameMap = table
	}
}

// WithClock sets a custom time source, used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dedupeWindow:  defaultDedupeWindow,
		sessionTTL:    defaultSessionTTL,
		sweepInterval: defaultSweepInterval,
		shardCount:    defaultShardCount,
		hashing:       true,
		stopCh:        make(chan struct{}),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the service components and the sweep loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting tracking service...")

	s.sessions = session.NewStore(
		session.WithShardCount(s.shardCount),
		session.WithTTL(s.sessionTTL),
	)
	s.cache = dedupe.NewWindowedCache(
		dedupe.WithWindow(s.dedupeWindow),
	)
	s.mapper = eventmap.New(
		eventmap.WithMapping(s.eventNameMap),
	)

	pipelineOpts := []pipeline.Option{
		pipeline.WithHashing(s.hashing),
		pipeline.WithLogger(s.logger.Named("pipeline")),
	}
	if s.currency != "" {
		pipelineOpts = append(pipelineOpts, pipeline.WithCurrency(s.currency))
	}
	if s.now != nil {
		pipelineOpts = append(pipelineOpts, pipeline.WithClock(s.now))
	}
	s.preparer = pipeline.New(s.cache, s.mapper, pipelineOpts...)

	if s.delivery == nil {
		s.delivery = capi.New()
	}

	go s.sweepLoop(ctx)

	s.started = true
	s.logger.Info(ctx, "tracking service started",
		logger.Duration("dedupeWindow", s.dedupeWindow),
		logger.Duration("sessionTTL", s.sessionTTL),
		logger.Int("shardCount", s.shardCount),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}

	s.started = false
	s.logger.Info(context.Background(), "tracking service stopped")
}

// sweepLoop periodically evicts expired dedup keys and idle sessions.
func (s *Service) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			swept := s.cache.Sweep(ctx)
			removed := s.sessions.Sweep(ctx)
			if swept > 0 || removed > 0 {
				s.logger.Debug(ctx, "sweep completed",
					logger.Int("dedupeKeys", swept),
					logger.Int("sessions", removed),
				)
			}
		}
	}
}

// ProcessPageView records a page view and forwards a PageView event.
func (s *Service) ProcessPageView(ctx context.Context, sessionID string, page PageData, utm model.AttributionFields) TrackResult {
	s.sessions.CaptureAttribution(ctx, sessionID, utm, page.URL)
	s.sessions.RecordMilestone(ctx, sessionID, session.MilestonePageView, session.MilestoneData{})

	ev := s.baseEvent(ctx, eventmap.CustomPageViewed, sessionID, page)
	return s.track(ctx, sessionID, ev)
}

// ProcessLead merges the captured lead fields and forwards a Lead event.
func (s *Service) ProcessLead(ctx context.Context, sessionID string, lead model.CustomerFields, page PageData) TrackResult {
	s.sessions.RecordCustomer(ctx, sessionID, lead)
	s.sessions.RecordMilestone(ctx, sessionID, session.MilestoneLeadCaptured, session.MilestoneData{})

	ev := s.baseEvent(ctx, eventmap.CustomLeadCaptured, sessionID, page)
	return s.track(ctx, sessionID, ev)
}

// ProcessCheckoutStart records checkout entry and forwards an
// InitiateCheckout event.
func (s *Service) ProcessCheckoutStart(ctx context.Context, sessionID string, checkout CheckoutData, page PageData) TrackResult {
	s.sessions.RecordCustomer(ctx, sessionID, checkout.Customer)
	s.sessions.RecordMilestone(ctx, sessionID, session.MilestoneCheckoutStart, session.MilestoneData{})

	ev := s.baseEvent(ctx, eventmap.CustomCheckoutStarted, sessionID, page)
	ev.Value = checkout.Value
	ev.Products = checkout.Products
	return s.track(ctx, sessionID, ev)
}

// ProcessPurchase records the purchase milestone (accumulating
// revenue) and forwards a strictly validated Purchase event.
func (s *Service) ProcessPurchase(ctx context.Context, sessionID string, purchase PurchaseData, page PageData) TrackResult {
	s.sessions.RecordCustomer(ctx, sessionID, purchase.Customer)
	s.sessions.RecordMilestone(ctx, sessionID, session.MilestonePurchased, session.MilestoneData{Revenue: purchase.Value})

	ev := s.baseEvent(ctx, eventmap.CustomPurchaseComplete, sessionID, page)
	ev.TransactionID = purchase.TransactionID
	ev.Value = purchase.Value
	ev.Products = purchase.Products
	return s.track(ctx, sessionID, ev)
}

// ProcessOfferView records an offer impression and forwards a
// ViewContent event.
func (s *Service) ProcessOfferView(ctx context.Context, sessionID string, offer OfferData, page PageData) TrackResult {
	s.sessions.RecordMilestone(ctx, sessionID, session.MilestoneOfferView, session.MilestoneData{OfferID: offer.OfferID})

	ev := s.baseEvent(ctx, eventmap.CustomOfferViewed, sessionID, page)
	ev.Value = offer.Price
	if offer.OfferID != "" {
		ev.Products = []model.Product{{
			ID:       offer.OfferID,
			Name:     offer.OfferName,
			Category: offer.Category,
			Price:    offer.Price,
		}}
	}
	return s.track(ctx, sessionID, ev)
}

// baseEvent assembles a TrackedEvent enriched from the session's
// stored attribution and accumulated customer data.
func (s *Service) baseEvent(ctx context.Context, eventName, sessionID string, page PageData) model.TrackedEvent {
	utm, _ := s.sessions.GetAttribution(ctx, sessionID)
	utm.Domain = page.Domain

	ev := model.TrackedEvent{
		EventName:   eventName,
		SessionID:   sessionID,
		PageURL:     page.URL,
		Attribution: utm,
		Client: model.ClientFields{
			IPAddress: page.IPAddress,
			UserAgent: page.UserAgent,
			FBP:       page.FBP,
			FBC:       page.FBC,
		},
	}
	if snap, ok := s.sessions.Snapshot(ctx, sessionID); ok {
		ev.Customer = snap.Customer
	}
	return ev
}

// track runs the prepare-then-deliver flow and surfaces the result.
func (s *Service) track(ctx context.Context, sessionID string, ev model.TrackedEvent) TrackResult {
	result := TrackResult{UTM: ev.Attribution}

	prepared, err := s.preparer.Prepare(ctx, ev)
	switch {
	case errors.Is(err, pipeline.ErrDuplicate):
		// Already processed: success with a no-op marker.
		result.Success = true
		result.Facebook = FacebookResult{Success: true, Duplicate: true}
		return result
	case err != nil:
		result.Facebook = FacebookResult{Error: err.Error()}
		s.logger.Warn(ctx, "event rejected by pipeline",
			logger.String("sessionID", sessionID),
			logger.String("eventName", ev.EventName),
			logger.Error(err),
		)
		return result
	}

	res := s.delivery.Deliver(ctx, *prepared)
	result.Facebook.EventID = prepared.EventID
	if !res.Success {
		// The event was admitted to the dedup cache but never made it
		// to the platform; forget it so a retried call can go through.
		s.cache.Forget(ctx, prepared.EventID)
		result.Facebook.Error = res.Err.Error()
		s.logger.Error(ctx, "delivery failed",
			logger.String("eventID", prepared.EventID),
			logger.Int("attempts", res.Attempts),
			logger.Error(res.Err),
		)
		return result
	}

	result.Success = true
	result.Facebook.Success = true
	s.logger.Debug(ctx, "event delivered",
		logger.String("eventID", prepared.EventID),
		logger.Int("attempts", res.Attempts),
	)
	return result
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started": s.started,
	}

	if s.started {
		sessionCount := s.sessions.Count(ctx)
		dedupeSize := s.cache.Size()

		stats["sessionCount"] = sessionCount
		stats["dedupeSize"] = dedupeSize

		metrics.UpdateSessionCount(sessionCount)
		metrics.UpdateDedupeSize(dedupeSize)
	}

	return stats
}

// Sessions exposes the attribution store to collaborating layers.
func (s *Service) Sessions() *session.Store {
	return s.sessions
}
