// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/leadfuel/pixelbridge/internal/app"
	"github.com/leadfuel/pixelbridge/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ProcessPageView(ctx context.Context, sessionID string, page app.PageData, utm model.AttributionFields) app.TrackResult
	ProcessLead(ctx context.Context, sessionID string, lead model.CustomerFields, page app.PageData) app.TrackResult
	ProcessCheckoutStart(ctx context.Context, sessionID string, checkout app.CheckoutData, page app.PageData) app.TrackResult
	ProcessPurchase(ctx context.Context, sessionID string, purchase app.PurchaseData, page app.PageData) app.TrackResult
	ProcessOfferView(ctx context.Context, sessionID string, offer app.OfferData, page app.PageData) app.TrackResult
}

// Server wires HTTP routes for the tracking API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	trackHandler  *TrackHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		trackHandler:  NewTrackHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/track/page-view", RequestIDMiddleware(MetricsMiddleware(s.trackHandler.HandlePageView, "page_view")))
	mux.HandleFunc("/track/offer", RequestIDMiddleware(MetricsMiddleware(s.trackHandler.HandleOfferView, "offer")))
	mux.HandleFunc("/track/lead", RequestIDMiddleware(MetricsMiddleware(s.trackHandler.HandleLead, "lead")))
	mux.HandleFunc("/track/checkout", RequestIDMiddleware(MetricsMiddleware(s.trackHandler.HandleCheckoutStart, "checkout")))
	mux.HandleFunc("/track/purchase", RequestIDMiddleware(MetricsMiddleware(s.trackHandler.HandlePurchase, "purchase")))
}

// pageContext mirrors the browser context block common to every request.
type pageContext struct {
	URL       string `json:"url"`
	Domain    string `json:"domain"`
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	FBP       string `json:"fbp"`
	FBC       string `json:"fbc"`
}

func (p pageContext) toPageData() app.PageData {
	return app.PageData{
		URL:       p.URL,
		Domain:    p.Domain,
		IPAddress: p.IPAddress,
		UserAgent: p.UserAgent,
		FBP:       p.FBP,
		FBC:       p.FBC,
	}
}

// customerPayload mirrors the customer identity block.
type customerPayload struct {
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth"`
	Gender      string `json:"gender"`
	City        string `json:"city"`
	State       string `json:"state"`
	ZipCode     string `json:"zip_code"`
	Country     string `json:"country"`
}

func (c customerPayload) toFields() model.CustomerFields {
	return model.CustomerFields{
		Email:       c.Email,
		Phone:       c.Phone,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		DateOfBirth: c.DateOfBirth,
		Gender:      c.Gender,
		City:        c.City,
		State:       c.State,
		ZipCode:     c.ZipCode,
		Country:     c.Country,
	}
}

// utmPayload mirrors the attribution block captured on the landing URL.
type utmPayload struct {
	Source   string `json:"utm_source"`
	Medium   string `json:"utm_medium"`
	Campaign string `json:"utm_campaign"`
	Term     string `json:"utm_term"`
	Content  string `json:"utm_content"`
	ClickID  string `json:"fbclid"`
}

func (u utmPayload) toFields() model.AttributionFields {
	return model.AttributionFields{
		Source:   u.Source,
		Medium:   u.Medium,
		Campaign: u.Campaign,
		Term:     u.Term,
		Content:  u.Content,
		ClickID:  u.ClickID,
	}
}

// productPayload mirrors a product item attached to checkout/purchase.
type productPayload struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
}

func toProducts(items []productPayload) []model.Product {
	if len(items) == 0 {
		return nil
	}
	products := make([]model.Product, len(items))
	for i, item := range items {
		products[i] = model.Product{
			ID:       item.ID,
			Name:     item.Name,
			Category: item.Category,
			Price:    item.Price,
		}
	}
	return products
}

// trackResponse is the acknowledgment returned to tracking callers.
type trackResponse struct {
	Success  bool             `json:"success"`
	UTM      utmResponse      `json:"utm_data"`
	Facebook facebookResponse `json:"facebook"`
}

type utmResponse struct {
	Source   string `json:"utm_source"`
	Medium   string `json:"utm_medium"`
	Campaign string `json:"utm_campaign"`
	Term     string `json:"utm_term,omitempty"`
	Content  string `json:"utm_content,omitempty"`
}

type facebookResponse struct {
	Success   bool   `json:"success"`
	Duplicate bool   `json:"duplicate,omitempty"`
	EventID   string `json:"event_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

func toTrackResponse(res app.TrackResult) trackResponse {
	return trackResponse{
		Success: res.Success,
		UTM: utmResponse{
			Source:   res.UTM.Source,
			Medium:   res.UTM.Medium,
			Campaign: res.UTM.Campaign,
			Term:     res.UTM.Term,
			Content:  res.UTM.Content,
		},
		Facebook: facebookResponse{
			Success:   res.Facebook.Success,
			Duplicate: res.Facebook.Duplicate,
			EventID:   res.Facebook.EventID,
			Error:     res.Facebook.Error,
		},
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
