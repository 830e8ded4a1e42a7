package roundtrip

import (
	"parkerflight/internal/offer"
	"parkerflight/pkg/logger"
)

// FilterDatabaseOffers guards offers already persisted: a round-trip request
// must only see offers carrying a return departure. One-way requests pass
// through unchanged.
func FilterDatabaseOffers(offers []offer.FlightOffer, isRoundTripRequest bool, log logger.Client) []offer.FlightOffer {
	if !isRoundTripRequest {
		return offers
	}

	kept := make([]offer.FlightOffer, 0, len(offers))
	for _, o := range offers {
		if o.ReturnDepartureAt != nil {
			kept = append(kept, o)
		}
	}

	log.Info("database round-trip guard applied",
		logger.Field{Key: "before", Value: len(offers)},
		logger.Field{Key: "after", Value: len(kept)},
	)
	return kept
}
