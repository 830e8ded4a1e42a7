package offer

import (
	"context"
	"errors"
	"strings"
	"time"

	"parkerflight/pkg/idgen"
	"parkerflight/pkg/logger"
)

// Scoring weights. Hand-tuned alongside the booking heuristics and treated as
// a contract: rebalancing them changes which offers get auto-booked.
const (
	cabinMatchBonus     = 30.0
	economyDefaultBonus = 10.0
	nonstopBonus        = 25.0
	oneStopBonus        = 10.0
	airlineMatchBonus   = 20.0
	shortDurationBonus  = 15.0
	mediumDurationBonus = 10.0
	longDurationBonus   = 5.0
	bagsIncludedBonus   = 10.0
	freshOfferBonus     = 5.0
	recentOfferBonus    = 3.0

	shortDurationMinutes  = 240
	mediumDurationMinutes = 480
	longDurationMinutes   = 720
)

// Selector picks the best bookable offer for a trip request and commits the
// selection. Store errors surface as non-nil errors; "nothing eligible" is
// (nil, nil) so callers can retry when new offers arrive.
type Selector struct {
	store  Store
	idgen  idgen.Generator
	logger logger.Client
	now    func() time.Time
}

func NewSelector(store Store, gen idgen.Generator, log logger.Client) *Selector {
	return &Selector{
		store:  store,
		idgen:  gen,
		logger: log,
		now:    time.Now,
	}
}

// SelectBestOffer loads all non-expired offers for the trip request, drops the
// ones violating hard constraints, and returns the highest-scoring survivor.
// Offers arrive ordered ascending by price and ties keep the first occurrence,
// so equal scores resolve to the cheaper offer.
func (s *Selector) SelectBestOffer(ctx context.Context, tripRequestID string, criteria *SelectionCriteria) (*FlightOffer, error) {
	attemptID := s.idgen.GenerateID()

	tr, err := s.store.LoadTripRequest(ctx, tripRequestID)
	if errors.Is(err, ErrNotFound) {
		s.logger.Info("trip request not found for selection",
			logger.Field{Key: "trip_request_id", Value: tripRequestID},
			logger.Field{Key: "attempt_id", Value: attemptID},
		)
		return nil, nil
	}
	if err != nil {
		s.logger.Error("failed to load trip request",
			logger.Field{Key: "trip_request_id", Value: tripRequestID},
			logger.Field{Key: "attempt_id", Value: attemptID},
			logger.Field{Key: "err", Value: err},
		)
		return nil, err
	}

	now := s.now()
	offers, err := s.store.LoadOffers(ctx, tripRequestID, now)
	if err != nil {
		s.logger.Error("failed to load offers",
			logger.Field{Key: "trip_request_id", Value: tripRequestID},
			logger.Field{Key: "attempt_id", Value: attemptID},
			logger.Field{Key: "err", Value: err},
		)
		return nil, err
	}
	if len(offers) == 0 {
		s.logger.Info("no live offers for trip request",
			logger.Field{Key: "trip_request_id", Value: tripRequestID},
			logger.Field{Key: "attempt_id", Value: attemptID},
		)
		return nil, nil
	}

	merged := mergeCriteria(criteria, tr)

	var best *FlightOffer
	bestScore := -1.0
	for i := range offers {
		if !MeetsBasicCriteria(offers[i], merged) {
			continue
		}
		score := s.CalculateOfferScore(offers[i], merged)
		// Strict comparison keeps the earlier (cheaper) offer on ties.
		if score > bestScore {
			bestScore = score
			best = &offers[i]
		}
	}

	if best == nil {
		s.logger.Info("no offer survived hard constraints",
			logger.Field{Key: "trip_request_id", Value: tripRequestID},
			logger.Field{Key: "attempt_id", Value: attemptID},
			logger.Field{Key: "candidates", Value: len(offers)},
		)
		return nil, nil
	}

	s.logger.Info("selected best offer",
		logger.Field{Key: "trip_request_id", Value: tripRequestID},
		logger.Field{Key: "attempt_id", Value: attemptID},
		logger.Field{Key: "offer_id", Value: best.ID},
		logger.Field{Key: "score", Value: bestScore},
		logger.Field{Key: "price_total", Value: best.PriceTotal},
	)
	return best, nil
}

// MeetsBasicCriteria is the hard-constraint predicate. Any single violation
// excludes the offer regardless of its score.
func MeetsBasicCriteria(o FlightOffer, c SelectionCriteria) bool {
	if c.MaxPrice != nil && o.PriceTotal > *c.MaxPrice {
		return false
	}
	if c.MaxStops != nil && o.Stops > *c.MaxStops {
		return false
	}
	if c.MaxDuration != nil && o.DurationMinutes > *c.MaxDuration {
		return false
	}
	if c.BagsRequired && !o.BagsIncluded {
		return false
	}
	return true
}

// CalculateOfferScore computes the weighted heuristic score for one offer.
// Every term is non-negative; the result is still clamped at zero.
func (s *Selector) CalculateOfferScore(o FlightOffer, c SelectionCriteria) float64 {
	score := 0.0

	// Price: relative headroom under the ceiling when one is set, otherwise a
	// flat curve that favors cheap offers.
	if c.MaxPrice != nil && *c.MaxPrice > 0 {
		score += max(0, (1-o.PriceTotal / *c.MaxPrice)*100)
	} else {
		score += max(0, 50-(o.PriceTotal/1000)*10)
	}

	if c.PreferredCabin != "" {
		if o.CabinClass.EqualFold(c.PreferredCabin) {
			score += cabinMatchBonus
		}
	} else if o.CabinClass.EqualFold(CabinEconomy) {
		score += economyDefaultBonus
	}

	switch o.Stops {
	case 0:
		score += nonstopBonus
	case 1:
		score += oneStopBonus
	}

	if len(c.PreferredAirlines) > 0 {
		airline := strings.ToLower(o.AirlineName)
		for _, pref := range c.PreferredAirlines {
			if strings.Contains(airline, strings.ToLower(pref)) {
				score += airlineMatchBonus
				break
			}
		}
	}

	switch {
	case o.DurationMinutes <= shortDurationMinutes:
		score += shortDurationBonus
	case o.DurationMinutes <= mediumDurationMinutes:
		score += mediumDurationBonus
	case o.DurationMinutes <= longDurationMinutes:
		score += longDurationBonus
	}

	if o.BagsIncluded {
		score += bagsIncludedBonus
	}

	age := s.now().Sub(o.CreatedAt)
	switch {
	case age < time.Hour:
		score += freshOfferBonus
	case age < 6*time.Hour:
		score += recentOfferBonus
	}

	return max(0, score)
}

// MarkOfferSelected is the commit point of selection: it writes the offer id
// onto the trip request and moves auto_book_status idle -> processing. A
// concurrent selection that already moved the status yields ErrStatusConflict.
func (s *Selector) MarkOfferSelected(ctx context.Context, tripRequestID, offerID string) error {
	processing := StatusProcessing
	idle := StatusIdle
	err := s.store.UpdateTripRequest(ctx, tripRequestID, TripRequestUpdate{
		SelectedOfferID: &offerID,
		AutoBookStatus:  &processing,
		ExpectedStatus:  &idle,
	})
	if err != nil {
		s.logger.Error("failed to mark offer selected",
			logger.Field{Key: "trip_request_id", Value: tripRequestID},
			logger.Field{Key: "offer_id", Value: offerID},
			logger.Field{Key: "err", Value: err},
		)
		return err
	}

	s.logger.Info("offer marked selected",
		logger.Field{Key: "trip_request_id", Value: tripRequestID},
		logger.Field{Key: "offer_id", Value: offerID},
	)
	return nil
}

// GetSelectedOffer resolves the trip request's selected offer, if any.
// (nil, nil) covers: trip request missing, nothing selected, or the selected
// offer row gone.
func (s *Selector) GetSelectedOffer(ctx context.Context, tripRequestID string) (*FlightOffer, error) {
	tr, err := s.store.LoadTripRequest(ctx, tripRequestID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logger.Error("failed to load trip request",
			logger.Field{Key: "trip_request_id", Value: tripRequestID},
			logger.Field{Key: "err", Value: err},
		)
		return nil, err
	}
	if tr.SelectedOfferID == nil {
		return nil, nil
	}

	o, err := s.store.LoadOfferByID(ctx, *tr.SelectedOfferID)
	if errors.Is(err, ErrNotFound) {
		s.logger.Warn("selected offer no longer exists",
			logger.Field{Key: "trip_request_id", Value: tripRequestID},
			logger.Field{Key: "offer_id", Value: *tr.SelectedOfferID},
		)
		return nil, nil
	}
	if err != nil {
		s.logger.Error("failed to load selected offer",
			logger.Field{Key: "offer_id", Value: *tr.SelectedOfferID},
			logger.Field{Key: "err", Value: err},
		)
		return nil, err
	}
	return o, nil
}

// IsOfferStillValid reports whether the offer exists and has not expired.
// Fail-closed: any lookup failure reads as invalid.
func (s *Selector) IsOfferStillValid(ctx context.Context, offerID string) bool {
	o, err := s.store.LoadOfferByID(ctx, offerID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("offer validity check failed",
				logger.Field{Key: "offer_id", Value: offerID},
				logger.Field{Key: "err", Value: err},
			)
		}
		return false
	}
	return !o.Expired(s.now())
}

// SweepExpiredOffers deletes expired offers that no booking references.
func (s *Selector) SweepExpiredOffers(ctx context.Context) (int64, error) {
	deleted, err := s.store.DeleteExpiredOffers(ctx, s.now())
	if err != nil {
		s.logger.Error("expired offer sweep failed", logger.Field{Key: "err", Value: err})
		return 0, err
	}
	s.logger.Info("expired offer sweep completed", logger.Field{Key: "deleted", Value: deleted})
	return deleted, nil
}

// mergeCriteria layers explicit caller criteria over the trip request's stored
// ceiling. Precedence for the price cap: criteria.MaxPrice, then
// tripRequest.MaxPrice, then tripRequest.Budget.
func mergeCriteria(criteria *SelectionCriteria, tr *TripRequest) SelectionCriteria {
	var merged SelectionCriteria
	if criteria != nil {
		merged = *criteria
	}
	if merged.MaxPrice == nil {
		if tr.MaxPrice != nil {
			merged.MaxPrice = tr.MaxPrice
		} else if tr.Budget != nil {
			merged.MaxPrice = tr.Budget
		}
	}
	return merged
}
