package roundtrip

import (
	"strings"

	"parkerflight/pkg/logger"
)

// Amadeus flight-offer shapes. Field names must match the Amadeus API exactly
// or the routing-symmetry checks read empty strings.

type AmadeusLocation struct {
	IataCode string `json:"iataCode"`
	At       string `json:"at,omitempty"`
}

type AmadeusSegment struct {
	Departure   AmadeusLocation `json:"departure"`
	Arrival     AmadeusLocation `json:"arrival"`
	CarrierCode string          `json:"carrierCode,omitempty"`
}

type AmadeusItinerary struct {
	Duration string           `json:"duration,omitempty"`
	Segments []AmadeusSegment `json:"segments"`
}

type AmadeusPrice struct {
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

type AmadeusCheckedBags struct {
	Quantity int `json:"quantity"`
}

type AmadeusFareDetail struct {
	Cabin              string              `json:"cabin,omitempty"`
	IncludedCheckedBags *AmadeusCheckedBags `json:"includedCheckedBags,omitempty"`
}

type AmadeusTravelerPricing struct {
	FareDetailsBySegment []AmadeusFareDetail `json:"fareDetailsBySegment,omitempty"`
}

type AmadeusOffer struct {
	ID                     string                   `json:"id"`
	OneWay                 bool                     `json:"oneWay"`
	Itineraries            []AmadeusItinerary       `json:"itineraries"`
	Price                  AmadeusPrice             `json:"price"`
	ValidatingAirlineCodes []string                 `json:"validatingAirlineCodes,omitempty"`
	TravelerPricings       []AmadeusTravelerPricing `json:"travelerPricings,omitempty"`
}

// FilterAmadeusRoundTripOffers drops offers whose itinerary shape does not
// match the search direction. One-way searches keep only single-itinerary
// offers; round-trip searches keep only two-itinerary offers whose second leg
// exactly reverses the first. Malformed offers are dropped, not errored.
func FilterAmadeusRoundTripOffers(offers []AmadeusOffer, params SearchParams, log logger.Client) []AmadeusOffer {
	kept := make([]AmadeusOffer, 0, len(offers))

	if !params.HasReturnDate() {
		for _, o := range offers {
			if len(o.Itineraries) == 1 {
				kept = append(kept, o)
			}
		}
		log.Info("amadeus one-way guard applied",
			logger.Field{Key: "before", Value: len(offers)},
			logger.Field{Key: "after", Value: len(kept)},
		)
		return kept
	}

	for _, o := range offers {
		if o.OneWay {
			continue
		}
		if len(o.Itineraries) != 2 {
			continue
		}
		if !amadeusItineraryMatches(o.Itineraries[0], params.Origin, params.Destination) {
			continue
		}
		if !amadeusItineraryMatches(o.Itineraries[1], params.Destination, params.Origin) {
			continue
		}
		kept = append(kept, o)
	}

	log.Info("amadeus round-trip guard applied",
		logger.Field{Key: "before", Value: len(offers)},
		logger.Field{Key: "after", Value: len(kept)},
	)
	return kept
}

// amadeusItineraryMatches checks the leg's span: first segment departs from
// the expected origin and the last segment arrives at the expected destination.
func amadeusItineraryMatches(it AmadeusItinerary, expectedOrigin, expectedDestination string) bool {
	if len(it.Segments) == 0 {
		return false
	}
	first := it.Segments[0].Departure.IataCode
	last := it.Segments[len(it.Segments)-1].Arrival.IataCode
	return strings.EqualFold(first, expectedOrigin) && strings.EqualFold(last, expectedDestination)
}
