// Package eventmap maps funnel-specific event names onto the
// platform's standard event vocabulary.
package eventmap

// Standard platform event names.
const (
	PageView             = "PageView"
	ViewContent          = "ViewContent"
	Lead                 = "Lead"
	InitiateCheckout     = "InitiateCheckout"
	Purchase             = "Purchase"
	CompleteRegistration = "CompleteRegistration"
	AddPaymentInfo       = "AddPaymentInfo"
)

// Custom funnel event names emitted by the tracking scripts.
const (
	CustomPageViewed       = "page_viewed"
	CustomOfferViewed      = "offer_viewed"
	CustomLeadCaptured     = "lead_captured"
	CustomCheckoutStarted  = "checkout_started"
	CustomPurchaseComplete = "purchase_completed"
)

// Mapper translates custom event names to platform names. Unmapped
// names pass through unchanged with known=false; callers log a warning
// rather than fail.
type Mapper struct {
	table         map[string]string
	purchaseClass map[string]struct{}
}

// Option applies a configuration option to the Mapper.
type Option func(*Mapper)

// WithMapping overlays additional (or replacement) name mappings.
func WithMapping(table map[string]string) Option {
	return func(m *Mapper) {
		for from, to := range table {
			if from != "" && to != "" {
				m.table[from] = to
			}
		}
	}
}

// WithPurchaseClass replaces the set of names treated as purchases.
func WithPurchaseClass(names ...string) Option {
	return func(m *Mapper) {
		if len(names) == 0 {
			return
		}
		m.purchaseClass = make(map[string]struct{}, len(names))
		for _, n := range names {
			m.purchaseClass[n] = struct{}{}
		}
	}
}

// New creates a Mapper with the default funnel vocabulary.
func New(opts ...Option) *Mapper {
	m := &Mapper{
		table: map[string]string{
			CustomPageViewed:       PageView,
			CustomOfferViewed:      ViewContent,
			CustomLeadCaptured:     Lead,
			CustomCheckoutStarted:  InitiateCheckout,
			CustomPurchaseComplete: Purchase,
		},
		purchaseClass: map[string]struct{}{
			Purchase: {},
		},
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Map returns the platform name for a custom event name. Standard
// names already in the platform vocabulary map to themselves.
func (m *Mapper) Map(name string) (mapped string, known bool) {
	if to, ok := m.table[name]; ok {
		return to, true
	}
	// Standard names and right-hand sides of the table pass as known.
	for _, to := range m.table {
		if to == name {
			return name, true
		}
	}
	return name, false
}

// IsPurchaseClass reports whether a mapped name denotes a completed
// transaction and therefore requires the strict purchase fields.
func (m *Mapper) IsPurchaseClass(mapped string) bool {
	_, ok := m.purchaseClass[mapped]
	return ok
}
