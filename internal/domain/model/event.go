// Package model contains domain models passed between layers.
package model

import "time"

// TrackedEvent is the loosely-typed input to the preparation pipeline.
// It is immutable once prepared: the pipeline either produces a
// PreparedEvent from it or discards it, never mutates it in place.
type TrackedEvent struct {
	EventName     string    // logical action, e.g. "purchase_completed"
	SessionID     string    // correlates events and session state
	OccurredAt    time.Time // stamped by the pipeline at preparation time
	PageURL       string
	TransactionID string  // required for purchase-class events
	Value         float64 // must be > 0 for purchase-class events

	Customer    CustomerFields
	Products    []Product
	Attribution AttributionFields
	Client      ClientFields
}

// CustomerFields is the bag of personally identifying customer data.
// All fields are optional; purchase-class events require at least one.
type CustomerFields struct {
	Email       string
	Phone       string
	FirstName   string
	LastName    string
	DateOfBirth string
	Gender      string
	City        string
	State       string
	ZipCode     string
	Country     string
}

// Empty reports whether no customer field carries a value.
func (c CustomerFields) Empty() bool {
	return c == CustomerFields{}
}

// Product describes a funnel product attached to an event.
type Product struct {
	ID       string
	Name     string
	Category string
	Price    float64
}

// AttributionFields holds the UTM parameters and click identifiers
// captured from the landing URL.
type AttributionFields struct {
	Source   string
	Medium   string
	Campaign string
	Term     string
	Content  string
	ClickID  string // raw fbclid from the landing URL
	Domain   string // requesting domain, used for the fbc subdomain index
}

// ClientFields carries the browser-side context forwarded by the caller.
type ClientFields struct {
	IPAddress string
	UserAgent string
	FBP       string // browser-id cookie (_fbp)
	FBC       string // browser-click cookie (_fbc)
}

// PreparedEvent is the fully-formed outbound event in the Conversions
// API wire shape. EventID carries the dedup key so the platform can
// reconcile browser-side and server-side delivery of the same action.
type PreparedEvent struct {
	EventName      string     `json:"event_name"`
	EventTime      int64      `json:"event_time"` // unix seconds
	EventID        string     `json:"event_id"`
	EventSourceURL string     `json:"event_source_url,omitempty"`
	ActionSource   string     `json:"action_source"`
	UserData       UserData   `json:"user_data"`
	CustomData     CustomData `json:"custom_data"`
}

// UserData holds the hashed identity fields plus the raw pass-through
// fields the platform requires unhashed.
type UserData struct {
	Email       string `json:"em,omitempty"`
	Phone       string `json:"ph,omitempty"`
	FirstName   string `json:"fn,omitempty"`
	LastName    string `json:"ln,omitempty"`
	DateOfBirth string `json:"db,omitempty"`
	Gender      string `json:"ge,omitempty"`
	City        string `json:"ct,omitempty"`
	State       string `json:"st,omitempty"`
	ZipCode     string `json:"zp,omitempty"`
	Country     string `json:"country,omitempty"`

	ClientIPAddress string `json:"client_ip_address,omitempty"`
	ClientUserAgent string `json:"client_user_agent,omitempty"`
	FBP             string `json:"fbp,omitempty"`
	FBC             string `json:"fbc,omitempty"`
}

// CustomData carries value, content, and pass-through UTM parameters.
// The UTM fields ride along as opaque custom parameters for downstream
// attribution reporting; the pipeline does not interpret them.
type CustomData struct {
	Currency        string    `json:"currency,omitempty"`
	Value           float64   `json:"value,omitempty"`
	ContentIDs      []string  `json:"content_ids,omitempty"`
	ContentName     string    `json:"content_name,omitempty"`
	ContentCategory string    `json:"content_category,omitempty"`
	Contents        []Content `json:"contents,omitempty"`
	OrderID         string    `json:"order_id,omitempty"`

	UTMSource   string `json:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
	UTMTerm     string `json:"utm_term,omitempty"`
	UTMContent  string `json:"utm_content,omitempty"`
}

// Content mirrors the platform's contents array item shape.
type Content struct {
	ID        string  `json:"id"`
	Quantity  int     `json:"quantity"`
	ItemPrice float64 `json:"item_price"`
}
