package offer

import (
	"encoding/json"
	"strings"
	"time"
)

type CabinClass string

const (
	CabinEconomy        CabinClass = "economy"
	CabinPremiumEconomy CabinClass = "premium_economy"
	CabinBusiness       CabinClass = "business"
	CabinFirst          CabinClass = "first"
)

type AutoBookStatus string

const (
	StatusIdle       AutoBookStatus = "idle"
	StatusProcessing AutoBookStatus = "processing"
	StatusBooked     AutoBookStatus = "booked"
	StatusFailed     AutoBookStatus = "failed"
)

// FlightOffer is one priced itinerary persisted by the search/ingest step.
// Rows are read-only after insert; expired offers are never selected or shown
// as bookable.
type FlightOffer struct {
	ID                 string          `json:"id"`
	TripRequestID      string          `json:"trip_request_id"`
	PriceTotal         float64         `json:"price_total"`
	Currency           string          `json:"currency"`
	CabinClass         CabinClass      `json:"cabin_class"`
	BagsIncluded       bool            `json:"bags_included"`
	DurationMinutes    int             `json:"duration_minutes"`
	Stops              int             `json:"stops"`
	AirlineName        string          `json:"airline_name"`
	ExpiresAt          time.Time       `json:"expires_at"`
	ReturnDepartureAt  *time.Time      `json:"return_departure_at,omitempty"`
	RawProviderPayload json.RawMessage `json:"raw_provider_payload,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// Expired reports whether the offer is unusable as of now. ExpiresAt must be
// strictly in the future for the offer to remain bookable.
func (o FlightOffer) Expired(now time.Time) bool {
	return !o.ExpiresAt.After(now)
}

// TripRequest is a user's standing search/auto-book criteria. SelectedOfferID
// and AutoBookStatus are mutated exclusively through the Selector.
type TripRequest struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	AutoBookEnabled bool           `json:"auto_book_enabled"`
	MaxPrice        *float64       `json:"max_price,omitempty"`
	Budget          *float64       `json:"budget,omitempty"`
	SelectedOfferID *string        `json:"selected_offer_id,omitempty"`
	AutoBookStatus  AutoBookStatus `json:"auto_book_status"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// SelectionCriteria is built once per selection call by merging the caller's
// explicit criteria over the trip request's stored price ceiling.
type SelectionCriteria struct {
	MaxPrice          *float64   `json:"max_price,omitempty"`
	PreferredCabin    CabinClass `json:"preferred_cabin,omitempty"`
	MaxStops          *int       `json:"max_stops,omitempty"`
	PreferredAirlines []string   `json:"preferred_airlines,omitempty"`
	BagsRequired      bool       `json:"bags_required,omitempty"`
	MaxDuration       *int       `json:"max_duration,omitempty"`
}

func (c CabinClass) EqualFold(other CabinClass) bool {
	return strings.EqualFold(string(c), string(other))
}
