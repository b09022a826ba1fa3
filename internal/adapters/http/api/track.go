// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/leadfuel/pixelbridge/internal/app"
)

// TrackHandler handles the funnel tracking endpoints.
type TrackHandler struct {
	deps Dependencies
}

// NewTrackHandler creates a new tracking handler.
func NewTrackHandler(deps Dependencies) *TrackHandler {
	return &TrackHandler{deps: deps}
}

type pageViewRequest struct {
	SessionID string      `json:"session_id"`
	Page      pageContext `json:"page"`
	UTM       utmPayload  `json:"utm"`
}

type leadRequest struct {
	SessionID string          `json:"session_id"`
	Lead      customerPayload `json:"lead"`
	Page      pageContext     `json:"page"`
}

type checkoutRequest struct {
	SessionID string           `json:"session_id"`
	Value     float64          `json:"value"`
	Customer  customerPayload  `json:"customer"`
	Products  []productPayload `json:"products"`
	Page      pageContext      `json:"page"`
}

type purchaseRequest struct {
	SessionID     string           `json:"session_id"`
	TransactionID string           `json:"transaction_id"`
	Value         float64          `json:"value"`
	Customer      customerPayload  `json:"customer"`
	Products      []productPayload `json:"products"`
	Page          pageContext      `json:"page"`
}

type offerRequest struct {
	SessionID string      `json:"session_id"`
	OfferID   string      `json:"offer_id"`
	OfferName string      `json:"offer_name"`
	Category  string      `json:"category"`
	Price     float64     `json:"price"`
	Page      pageContext `json:"page"`
}

// HandlePageView handles POST /track/page-view requests.
func (h *TrackHandler) HandlePageView(w http.ResponseWriter, r *http.Request) {
	const op = "api.track_page_view"
	var req pageViewRequest
	if !decodeTrackRequest(w, r, op, &req, &req.SessionID) {
		return
	}
	res := h.deps.ProcessPageView(r.Context(), req.SessionID, req.Page.toPageData(), req.UTM.toFields())
	writeJSON(w, http.StatusOK, toTrackResponse(res))
}

// HandleLead handles POST /track/lead requests.
func (h *TrackHandler) HandleLead(w http.ResponseWriter, r *http.Request) {
	const op = "api.track_lead"
	var req leadRequest
	if !decodeTrackRequest(w, r, op, &req, &req.SessionID) {
		return
	}
	res := h.deps.ProcessLead(r.Context(), req.SessionID, req.Lead.toFields(), req.Page.toPageData())
	writeJSON(w, http.StatusOK, toTrackResponse(res))
}

// HandleCheckoutStart handles POST /track/checkout requests.
func (h *TrackHandler) HandleCheckoutStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.track_checkout"
	var req checkoutRequest
	if !decodeTrackRequest(w, r, op, &req, &req.SessionID) {
		return
	}
	checkout := checkoutFromRequest(req)
	res := h.deps.ProcessCheckoutStart(r.Context(), req.SessionID, checkout, req.Page.toPageData())
	writeJSON(w, http.StatusOK, toTrackResponse(res))
}

// HandlePurchase handles POST /track/purchase requests.
func (h *TrackHandler) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	const op = "api.track_purchase"
	var req purchaseRequest
	if !decodeTrackRequest(w, r, op, &req, &req.SessionID) {
		return
	}
	purchase := purchaseFromRequest(req)
	res := h.deps.ProcessPurchase(r.Context(), req.SessionID, purchase, req.Page.toPageData())
	writeJSON(w, http.StatusOK, toTrackResponse(res))
}

// HandleOfferView handles POST /track/offer requests.
func (h *TrackHandler) HandleOfferView(w http.ResponseWriter, r *http.Request) {
	const op = "api.track_offer"
	var req offerRequest
	if !decodeTrackRequest(w, r, op, &req, &req.SessionID) {
		return
	}
	offer := offerFromRequest(req)
	res := h.deps.ProcessOfferView(r.Context(), req.SessionID, offer, req.Page.toPageData())
	writeJSON(w, http.StatusOK, toTrackResponse(res))
}

func checkoutFromRequest(req checkoutRequest) app.CheckoutData {
	return app.CheckoutData{
		Value:    req.Value,
		Customer: req.Customer.toFields(),
		Products: toProducts(req.Products),
	}
}

func purchaseFromRequest(req purchaseRequest) app.PurchaseData {
	return app.PurchaseData{
		TransactionID: req.TransactionID,
		Value:         req.Value,
		Customer:      req.Customer.toFields(),
		Products:      toProducts(req.Products),
	}
}

func offerFromRequest(req offerRequest) app.OfferData {
	return app.OfferData{
		OfferID:   req.OfferID,
		OfferName: req.OfferName,
		Category:  req.Category,
		Price:     req.Price,
	}
}

// decodeTrackRequest enforces method, decodes the body, and validates
// the session id common to every tracking call.
func decodeTrackRequest(w http.ResponseWriter, r *http.Request, op string, dst any, sessionID *string) bool {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return false
	}
	if strings.TrimSpace(*sessionID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing session_id")))
		return false
	}
	return true
}
