package roundtrip

import (
	"strings"

	"parkerflight/pkg/logger"
)

// Duffel offer shapes. Same contract as the Amadeus guard, expressed over
// "slices" instead of "itineraries"; field names match the Duffel API.

type DuffelPlace struct {
	IataCode string `json:"iata_code"`
}

type DuffelBaggage struct {
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
}

type DuffelSegmentPassenger struct {
	Baggages []DuffelBaggage `json:"baggages,omitempty"`
}

type DuffelSegment struct {
	Origin      DuffelPlace              `json:"origin"`
	Destination DuffelPlace              `json:"destination"`
	DepartingAt string                   `json:"departing_at,omitempty"`
	Passengers  []DuffelSegmentPassenger `json:"passengers,omitempty"`
}

type DuffelSlice struct {
	Duration string          `json:"duration,omitempty"`
	Segments []DuffelSegment `json:"segments"`
}

type DuffelAirline struct {
	Name     string `json:"name"`
	IataCode string `json:"iata_code,omitempty"`
}

type DuffelOffer struct {
	ID            string        `json:"id"`
	TotalAmount   string        `json:"total_amount"`
	TotalCurrency string        `json:"total_currency"`
	ExpiresAt     string        `json:"expires_at,omitempty"`
	Owner         DuffelAirline `json:"owner"`
	CabinClass    string        `json:"cabin_class,omitempty"`
	Slices        []DuffelSlice `json:"slices"`
}

// FilterDuffelRoundTripOffers is the Duffel twin of the Amadeus guard: one-way
// searches keep single-slice offers, round-trip searches keep two-slice offers
// whose second slice exactly reverses the first.
func FilterDuffelRoundTripOffers(offers []DuffelOffer, params SearchParams, log logger.Client) []DuffelOffer {
	kept := make([]DuffelOffer, 0, len(offers))

	if !params.HasReturnDate() {
		for _, o := range offers {
			if len(o.Slices) == 1 {
				kept = append(kept, o)
			}
		}
		log.Info("duffel one-way guard applied",
			logger.Field{Key: "before", Value: len(offers)},
			logger.Field{Key: "after", Value: len(kept)},
		)
		return kept
	}

	for _, o := range offers {
		if len(o.Slices) != 2 {
			continue
		}
		if !duffelSliceMatches(o.Slices[0], params.Origin, params.Destination) {
			continue
		}
		if !duffelSliceMatches(o.Slices[1], params.Destination, params.Origin) {
			continue
		}
		kept = append(kept, o)
	}

	log.Info("duffel round-trip guard applied",
		logger.Field{Key: "before", Value: len(offers)},
		logger.Field{Key: "after", Value: len(kept)},
	)
	return kept
}

func duffelSliceMatches(s DuffelSlice, expectedOrigin, expectedDestination string) bool {
	if len(s.Segments) == 0 {
		return false
	}
	first := s.Segments[0].Origin.IataCode
	last := s.Segments[len(s.Segments)-1].Destination.IataCode
	return strings.EqualFold(first, expectedOrigin) && strings.EqualFold(last, expectedDestination)
}
