// Package pipeline implements the event preparation transform: it
// takes a loosely-typed tracked event plus session context and
// produces a schema-valid outbound event, or signals duplicate/invalid
// and aborts.
package pipeline

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/leadfuel/pixelbridge/internal/domain/clickid"
	"github.com/leadfuel/pixelbridge/internal/domain/dedupe"
	"github.com/leadfuel/pixelbridge/internal/domain/eventmap"
	"github.com/leadfuel/pixelbridge/internal/domain/identity"
	"github.com/leadfuel/pixelbridge/internal/domain/model"
	"github.com/leadfuel/pixelbridge/pkg/logger"
	"github.com/leadfuel/pixelbridge/pkg/metrics"
)

const (
	defaultCurrency = "BRL"
	actionSource    = "website"

	fbpSegments = 4
	fbpPrefix   = "fb"
)

// Preparer builds prepared events from tracked events.
type Preparer struct {
	cache    dedupe.Cache
	mapper   *eventmap.Mapper
	currency string
	hashing  bool
	now      func() time.Time
	logger   logger.Logger
}

// Option applies a configuration option to the Preparer.
type Option func(*Preparer)

// WithCurrency sets the custom_data currency code.
func WithCurrency(currency string) Option {
	return func(p *Preparer) {
		if currency != "" {
			p.currency = currency
		}
	}
}

// WithHashing enables or disables identity hashing. Disabled is only
// meaningful for platform test modes; production keeps it on.
func WithHashing(enabled bool) Option {
	return func(p *Preparer) {
		p.hashing = enabled
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Preparer) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger sets a custom logger for the preparer.
func WithLogger(l logger.Logger) Option {
	return func(p *Preparer) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Preparer backed by the given dedup cache and name mapper.
func New(cache dedupe.Cache, mapper *eventmap.Mapper, opts ...Option) *Preparer {
	p := &Preparer{
		cache:    cache,
		mapper:   mapper,
		currency: defaultCurrency,
		hashing:  true,
		now:      time.Now,
		logger:   logger.Get().Named("pipeline"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Prepare validates, deduplicates, and assembles an outbound event.
//
// Returns ErrDuplicate when the event was already admitted inside the
// dedup window (callers treat that as success-no-op), or a
// *ValidationError naming the missing fields. The input event is never
// mutated.
func (p *Preparer) Prepare(ctx context.Context, ev model.TrackedEvent) (*model.PreparedEvent, error) {
	// Guard against the silent-undefined event name defect class: a
	// blank name would produce a malformed outbound call the platform
	// drops without diagnostics.
	if strings.TrimSpace(ev.EventName) == "" {
		metrics.RecordValidationFailure("event_name")
		return nil, NewValidationError("event_name")
	}

	occurredAt := ev.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = p.now()
	}

	key := dedupe.Key(ev.EventName, ev.SessionID, occurredAt)
	if !p.cache.Admit(ctx, key) {
		metrics.RecordEventDuplicate()
		p.logger.Debug(ctx, "duplicate event suppressed",
			logger.String("eventID", key),
			logger.String("sessionID", ev.SessionID),
		)
		return nil, ErrDuplicate
	}

	mapped, known := p.mapper.Map(ev.EventName)
	if !known {
		metrics.RecordUnmappedEventName()
		p.logger.Warn(ctx, "unmapped event name passed through",
			logger.String("eventName", ev.EventName),
		)
	}

	if p.mapper.IsPurchaseClass(mapped) {
		if err := validatePurchase(ev); err != nil {
			// Admission is rolled back so a corrected retry of the
			// same logical event is not treated as a duplicate.
			p.cache.Forget(ctx, key)
			return nil, err
		}
	}

	prepared := &model.PreparedEvent{
		EventName:      mapped,
		EventTime:      occurredAt.Unix(),
		EventID:        key,
		EventSourceURL: ev.PageURL,
		ActionSource:   actionSource,
		UserData:       p.buildUserData(ev),
		CustomData:     p.buildCustomData(ev),
	}

	metrics.RecordEventPrepared()
	return prepared, nil
}

// validatePurchase enforces the strict purchase-class contract and
// names every missing field at once.
func validatePurchase(ev model.TrackedEvent) error {
	var missing []string
	if ev.Value <= 0 {
		missing = append(missing, "value")
	}
	if strings.TrimSpace(ev.TransactionID) == "" {
		missing = append(missing, "transaction_id")
	}
	if ev.Customer.Empty() {
		missing = append(missing, "customer_data")
	}
	if len(missing) > 0 {
		for _, f := range missing {
			metrics.RecordValidationFailure(f)
		}
		return NewValidationError(missing...)
	}
	return nil
}

// buildUserData hashes the customer identity and attaches the raw
// pass-through fields the platform requires unhashed.
func (p *Preparer) buildUserData(ev model.TrackedEvent) model.UserData {
	var ud model.UserData
	if p.hashing {
		ud = identity.Hash(ev.Customer)
	} else {
		ud = identity.Passthrough(ev.Customer)
	}

	ud.ClientIPAddress = ev.Client.IPAddress
	ud.ClientUserAgent = ev.Client.UserAgent

	// A malformed fbp is dropped rather than forwarded: one bad
	// optional field must not get the whole event rejected.
	if validFBP(ev.Client.FBP) {
		ud.FBP = ev.Client.FBP
	}

	// A browser-set fbc cookie wins; otherwise the formatter builds
	// one from the raw click id captured on the landing URL.
	switch {
	case ev.Client.FBC != "":
		ud.FBC = ev.Client.FBC
	case ev.Attribution.ClickID != "":
		ud.FBC = clickid.FormatAt(ev.Attribution.ClickID, ev.Attribution.Domain, p.now())
	}

	return ud
}

// buildCustomData assembles currency, value, content, order id, and
// the pass-through UTM parameters.
func (p *Preparer) buildCustomData(ev model.TrackedEvent) model.CustomData {
	cd := model.CustomData{
		Currency:    p.currency,
		Value:       ev.Value,
		OrderID:     ev.TransactionID,
		UTMSource:   ev.Attribution.Source,
		UTMMedium:   ev.Attribution.Medium,
		UTMCampaign: ev.Attribution.Campaign,
		UTMTerm:     ev.Attribution.Term,
		UTMContent:  ev.Attribution.Content,
	}

	for _, prod := range ev.Products {
		cd.ContentIDs = append(cd.ContentIDs, prod.ID)
		cd.Contents = append(cd.Contents, model.Content{
			ID:        prod.ID,
			Quantity:  1,
			ItemPrice: prod.Price,
		})
	}
	if len(ev.Products) > 0 {
		cd.ContentName = ev.Products[0].Name
		cd.ContentCategory = ev.Products[0].Category
	}

	return cd
}

// validFBP checks the browser-id cookie shape: four dot-separated
// segments, "fb" prefix, numeric creation-time third segment.
func validFBP(fbp string) bool {
	if fbp == "" {
		return false
	}
	parts := strings.Split(fbp, ".")
	if len(parts) != fbpSegments || parts[0] != fbpPrefix {
		return false
	}
	if _, err := strconv.ParseInt(parts[2], 10, 64); err != nil {
		return false
	}
	return parts[3] != ""
}
