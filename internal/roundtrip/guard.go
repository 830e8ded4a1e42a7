package roundtrip

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"parkerflight/internal/offer"
	"parkerflight/pkg/logger"
)

// Guard filters a raw provider payload by round-trip shape and returns the
// survivors normalized to FlightOffer. One implementation per provider schema.
type Guard interface {
	Provider() string
	FilterPayload(payload json.RawMessage, params SearchParams) ([]offer.FlightOffer, error)
}

// ForProvider returns the guard for a provider name, case-insensitive.
func ForProvider(name string, log logger.Client) (Guard, bool) {
	switch strings.ToLower(name) {
	case "amadeus":
		return &amadeusGuard{log: log}, true
	case "duffel":
		return &duffelGuard{log: log}, true
	default:
		return nil, false
	}
}

type amadeusGuard struct {
	log logger.Client
}

func (g *amadeusGuard) Provider() string { return "amadeus" }

func (g *amadeusGuard) FilterPayload(payload json.RawMessage, params SearchParams) ([]offer.FlightOffer, error) {
	offers, err := decodeAmadeusPayload(payload)
	if err != nil {
		return nil, err
	}

	kept := FilterAmadeusRoundTripOffers(offers, params, g.log)

	normalized := make([]offer.FlightOffer, 0, len(kept))
	for _, o := range kept {
		normalized = append(normalized, normalizeAmadeusOffer(o))
	}
	return normalized, nil
}

// Amadeus wraps the offer list in a data envelope; some callers hand us the
// bare array.
func decodeAmadeusPayload(payload json.RawMessage) ([]AmadeusOffer, error) {
	var envelope struct {
		Data []AmadeusOffer `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil && envelope.Data != nil {
		return envelope.Data, nil
	}

	var offers []AmadeusOffer
	if err := json.Unmarshal(payload, &offers); err != nil {
		return nil, err
	}
	return offers, nil
}

func normalizeAmadeusOffer(o AmadeusOffer) offer.FlightOffer {
	price, _ := strconv.ParseFloat(o.Price.Total, 64)

	totalMinutes := 0
	totalSegments := 0
	for _, it := range o.Itineraries {
		totalMinutes += parseISODurationMinutes(it.Duration)
		totalSegments += len(it.Segments)
	}
	stops := 0
	if totalSegments > len(o.Itineraries) {
		stops = totalSegments - len(o.Itineraries)
	}

	airline := ""
	if len(o.ValidatingAirlineCodes) > 0 {
		airline = o.ValidatingAirlineCodes[0]
	} else if len(o.Itineraries) > 0 && len(o.Itineraries[0].Segments) > 0 {
		airline = o.Itineraries[0].Segments[0].CarrierCode
	}

	cabin := offer.CabinEconomy
	bags := false
	if len(o.TravelerPricings) > 0 && len(o.TravelerPricings[0].FareDetailsBySegment) > 0 {
		fare := o.TravelerPricings[0].FareDetailsBySegment[0]
		if fare.Cabin != "" {
			cabin = offer.CabinClass(strings.ToLower(fare.Cabin))
		}
		bags = fare.IncludedCheckedBags != nil && fare.IncludedCheckedBags.Quantity > 0
	}

	raw, _ := json.Marshal(o)

	normalized := offer.FlightOffer{
		ID:                 o.ID,
		PriceTotal:         price,
		Currency:           o.Price.Currency,
		CabinClass:         cabin,
		BagsIncluded:       bags,
		DurationMinutes:    totalMinutes,
		Stops:              stops,
		AirlineName:        airline,
		RawProviderPayload: raw,
	}

	if len(o.Itineraries) == 2 && len(o.Itineraries[1].Segments) > 0 {
		if at, err := time.Parse("2006-01-02T15:04:05", o.Itineraries[1].Segments[0].Departure.At); err == nil {
			normalized.ReturnDepartureAt = &at
		}
	}
	return normalized
}

type duffelGuard struct {
	log logger.Client
}

func (g *duffelGuard) Provider() string { return "duffel" }

func (g *duffelGuard) FilterPayload(payload json.RawMessage, params SearchParams) ([]offer.FlightOffer, error) {
	offers, err := decodeDuffelPayload(payload)
	if err != nil {
		return nil, err
	}

	kept := FilterDuffelRoundTripOffers(offers, params, g.log)

	normalized := make([]offer.FlightOffer, 0, len(kept))
	for _, o := range kept {
		normalized = append(normalized, normalizeDuffelOffer(o))
	}
	return normalized, nil
}

func decodeDuffelPayload(payload json.RawMessage) ([]DuffelOffer, error) {
	var envelope struct {
		Data struct {
			Offers []DuffelOffer `json:"offers"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil && envelope.Data.Offers != nil {
		return envelope.Data.Offers, nil
	}

	var offers []DuffelOffer
	if err := json.Unmarshal(payload, &offers); err != nil {
		return nil, err
	}
	return offers, nil
}

func normalizeDuffelOffer(o DuffelOffer) offer.FlightOffer {
	price, _ := strconv.ParseFloat(o.TotalAmount, 64)

	totalMinutes := 0
	totalSegments := 0
	bags := false
	for _, s := range o.Slices {
		totalMinutes += parseISODurationMinutes(s.Duration)
		totalSegments += len(s.Segments)
		for _, seg := range s.Segments {
			for _, p := range seg.Passengers {
				for _, b := range p.Baggages {
					if b.Type == "checked" && b.Quantity > 0 {
						bags = true
					}
				}
			}
		}
	}
	stops := 0
	if totalSegments > len(o.Slices) {
		stops = totalSegments - len(o.Slices)
	}

	cabin := offer.CabinEconomy
	if o.CabinClass != "" {
		cabin = offer.CabinClass(strings.ToLower(o.CabinClass))
	}

	raw, _ := json.Marshal(o)

	normalized := offer.FlightOffer{
		ID:                 o.ID,
		PriceTotal:         price,
		Currency:           o.TotalCurrency,
		CabinClass:         cabin,
		BagsIncluded:       bags,
		DurationMinutes:    totalMinutes,
		Stops:              stops,
		AirlineName:        o.Owner.Name,
		RawProviderPayload: raw,
	}

	if o.ExpiresAt != "" {
		if at, err := time.Parse(time.RFC3339, o.ExpiresAt); err == nil {
			normalized.ExpiresAt = at
		}
	}
	if len(o.Slices) == 2 && len(o.Slices[1].Segments) > 0 {
		if at, err := time.Parse(time.RFC3339, o.Slices[1].Segments[0].DepartingAt); err == nil {
			normalized.ReturnDepartureAt = &at
		}
	}
	return normalized
}

// parseISODurationMinutes handles the ISO 8601 durations both providers emit
// (PT5H30M, PT45M, P1DT2H). Unparseable input reads as zero.
func parseISODurationMinutes(s string) int {
	if s == "" || s[0] != 'P' {
		return 0
	}

	minutes := 0
	num := 0
	inTime := false
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9':
			num = num*10 + int(r-'0')
		case r == 'T':
			inTime = true
			num = 0
		case r == 'D':
			minutes += num * 24 * 60
			num = 0
		case r == 'H' && inTime:
			minutes += num * 60
			num = 0
		case r == 'M' && inTime:
			minutes += num
			num = 0
		default:
			num = 0
		}
	}
	return minutes
}
