// Package session maintains short-lived per-session attribution state:
// captured UTM parameters, accumulated customer data, and funnel
// milestones consulted when enriching outbound events.
package session

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/leadfuel/pixelbridge/internal/domain/model"
	"github.com/leadfuel/pixelbridge/pkg/metrics"
)

// Default store configuration constants.
const (
	defaultShardCount = 16
	defaultTTL        = 24 * time.Hour

	// UTM fallbacks for untagged traffic.
	defaultSource   = "direct"
	defaultMedium   = "organic"
	defaultCampaign = "none"
)

// Milestone names recorded per session. Order is recorded, never
// enforced: a user may purchase without a recorded lead capture.
type Milestone string

const (
	MilestonePageView      Milestone = "page_view"
	MilestoneOfferView     Milestone = "offer_view"
	MilestoneLeadCaptured  Milestone = "lead_captured"
	MilestoneCheckoutStart Milestone = "checkout_started"
	MilestonePurchased     Milestone = "purchased"
)

// MilestoneData carries the payload recorded alongside a milestone.
type MilestoneData struct {
	Revenue float64
	OfferID string
}

// Milestones accumulates funnel progress for a session. Purchase
// recording is additive on purpose: a second purchase in the same
// session adds its revenue, mirroring real multi-item semantics.
type Milestones struct {
	PageViews       int
	OfferViews      int
	LeadCapturedAt  time.Time
	CheckoutStartAt time.Time
	PurchasedAt     time.Time
	PurchaseCount   int
	TotalRevenue    float64
	LastOfferID     string
}

// Record is the per-session attribution state. Exclusively owned by
// this store; no other component mutates it directly.
type Record struct {
	SessionID   string
	UTM         model.AttributionFields
	Customer    model.CustomerFields
	Milestones  Milestones
	LastPageURL string
	FirstSeen   time.Time
	LastUpdate  time.Time
}

// Store is a sharded in-memory session store. Records are sharded by
// FNV-hashed session id into locked partitions so that last-write-wins
// UTM updates and additive milestones stay deterministic per session
// under a multi-threaded runtime.
type Store struct {
	shards []*shard
	ttl    time.Duration
	now    func() time.Time
}

type shard struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithShardCount sets the number of locked partitions.
func WithShardCount(count int) Option {
	return func(s *Store) {
		if count > 0 {
			s.shards = make([]*shard, count)
		}
	}
}

// WithTTL sets the inactivity threshold after which a session record
// is removed by the sweep.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates a session store with configuration options.
func NewStore(opts ...Option) *Store {
	s := &Store{
		shards: make([]*shard, defaultShardCount),
		ttl:    defaultTTL,
		now:    time.Now,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	for i := range s.shards {
		s.shards[i] = &shard{records: make(map[string]*Record)}
	}

	return s
}

// CaptureAttribution replaces the stored UTM snapshot for the session.
// Last-touch semantics: every call overwrites the prior capture, with
// defaulted fallbacks when parameters are absent.
func (s *Store) CaptureAttribution(ctx context.Context, sessionID string, utm model.AttributionFields, pageURL string) {
	sh := s.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec := s.getOrCreateLocked(sh, sessionID)
	rec.UTM = withDefaults(utm)
	if pageURL != "" {
		rec.LastPageURL = pageURL
	}
	rec.LastUpdate = s.now()
}

// RecordCustomer merges incoming customer fields into the session.
// Non-empty incoming fields overwrite; empty fields never erase
// previously stored values.
func (s *Store) RecordCustomer(ctx context.Context, sessionID string, fields model.CustomerFields) {
	sh := s.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec := s.getOrCreateLocked(sh, sessionID)
	mergeCustomer(&rec.Customer, fields)
	rec.LastUpdate = s.now()
}

// RecordMilestone records funnel progress. Additive per milestone:
// repeated page views count up and repeated purchases accumulate
// revenue; nothing is collapsed.
func (s *Store) RecordMilestone(ctx context.Context, sessionID string, m Milestone, data MilestoneData) {
	sh := s.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec := s.getOrCreateLocked(sh, sessionID)
	now := s.now()

	switch m {
	case MilestonePageView:
		rec.Milestones.PageViews++
	case MilestoneOfferView:
		rec.Milestones.OfferViews++
		if data.OfferID != "" {
			rec.Milestones.LastOfferID = data.OfferID
		}
	case MilestoneLeadCaptured:
		rec.Milestones.LeadCapturedAt = now
	case MilestoneCheckoutStart:
		rec.Milestones.CheckoutStartAt = now
	case MilestonePurchased:
		rec.Milestones.PurchasedAt = now
		rec.Milestones.PurchaseCount++
		rec.Milestones.TotalRevenue += data.Revenue
	}

	rec.LastUpdate = now
}

// GetAttribution returns the stored UTM snapshot for the session.
// Unknown sessions report defaulted attribution and ok=false.
func (s *Store) GetAttribution(ctx context.Context, sessionID string) (model.AttributionFields, bool) {
	sh := s.shardFor(sessionID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	if rec, exists := sh.records[sessionID]; exists {
		return rec.UTM, true
	}
	return withDefaults(model.AttributionFields{}), false
}

// Snapshot returns a copy of the full session record.
func (s *Store) Snapshot(ctx context.Context, sessionID string) (Record, bool) {
	sh := s.shardFor(sessionID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	if rec, exists := sh.records[sessionID]; exists {
		return *rec, true
	}
	return Record{}, false
}

// Count returns the number of live session records.
func (s *Store) Count(ctx context.Context) int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.records)
		sh.mu.RUnlock()
	}
	return total
}

// Sweep removes records whose last update exceeds the inactivity
// threshold and returns the number removed.
func (s *Store) Sweep(ctx context.Context) int {
	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, rec := range sh.records {
			if rec.LastUpdate.Before(cutoff) {
				delete(sh.records, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	if removed > 0 {
		metrics.RecordSessionsSwept(removed)
	}
	metrics.UpdateSessionCount(s.Count(ctx))
	return removed
}

// getOrCreateLocked returns the record for sessionID, creating it on
// first touch. Caller must hold the shard lock.
func (s *Store) getOrCreateLocked(sh *shard, sessionID string) *Record {
	if rec, exists := sh.records[sessionID]; exists {
		return rec
	}
	now := s.now()
	rec := &Record{
		SessionID:  sessionID,
		UTM:        withDefaults(model.AttributionFields{}),
		FirstSeen:  now,
		LastUpdate: now,
	}
	sh.records[sessionID] = rec
	return rec
}

func (s *Store) shardFor(sessionID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// withDefaults fills absent UTM parameters with the untagged-traffic
// fallbacks.
func withDefaults(utm model.AttributionFields) model.AttributionFields {
	if strings.TrimSpace(utm.Source) == "" {
		utm.Source = defaultSource
	}
	if strings.TrimSpace(utm.Medium) == "" {
		utm.Medium = defaultMedium
	}
	if strings.TrimSpace(utm.Campaign) == "" {
		utm.Campaign = defaultCampaign
	}
	return utm
}

// mergeCustomer applies non-empty incoming fields over stored ones.
func mergeCustomer(dst *model.CustomerFields, src model.CustomerFields) {
	if src.Email != "" {
		dst.Email = src.Email
	}
	if src.Phone != "" {
		dst.Phone = src.Phone
	}
	if src.FirstName != "" {
		dst.FirstName = src.FirstName
	}
	if src.LastName != "" {
		dst.LastName = src.LastName
	}
	if src.DateOfBirth != "" {
		dst.DateOfBirth = src.DateOfBirth
	}
	if src.Gender != "" {
		dst.Gender = src.Gender
	}
	if src.City != "" {
		dst.City = src.City
	}
	if src.State != "" {
		dst.State = src.State
	}
	if src.ZipCode != "" {
		dst.ZipCode = src.ZipCode
	}
	if src.Country != "" {
		dst.Country = src.Country
	}
}
