package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"parkerflight/internal/offer"
	"parkerflight/internal/roundtrip"
	"parkerflight/pkg/idgen"
	"parkerflight/pkg/logger"
)

// ErrUnknownProvider marks a provider name no guard is registered for.
var ErrUnknownProvider = errors.New("unknown offer provider")

const defaultOfferTTL = 30 * time.Minute

// Request is one provider search response to ingest for a trip request.
type Request struct {
	Provider string                 `json:"provider"`
	Params   roundtrip.SearchParams `json:"params"`
	Payload  json.RawMessage        `json:"payload"`
}

// Result reports what the ingest kept. When validation fails nothing is
// inserted and Issues carries the reasons.
type Result struct {
	Kept     int                         `json:"kept"`
	Inserted int                         `json:"inserted"`
	Issues   []roundtrip.ValidationIssue `json:"issues,omitempty"`
}

// Service runs provider payloads through the round-trip guard and persists the
// survivors as offer rows.
type Service struct {
	store    offer.Store
	idgen    idgen.Generator
	log      logger.Client
	now      func() time.Time
	offerTTL time.Duration
}

func NewService(store offer.Store, gen idgen.Generator, log logger.Client) *Service {
	return &Service{
		store:    store,
		idgen:    gen,
		log:      log,
		now:      time.Now,
		offerTTL: defaultOfferTTL,
	}
}

// IngestProviderOffers validates the search params, filters the payload through
// the provider's guard, stamps ownership and expiry onto the survivors, and
// inserts them. Contradictory params abort the ingest without an error; the
// issues come back on the Result.
func (s *Service) IngestProviderOffers(ctx context.Context, tripRequestID string, req Request) (*Result, error) {
	validation := roundtrip.ValidateSearchParams(req.Params)
	if !validation.IsValid {
		s.log.Warn("rejecting ingest with contradictory search params",
			logger.Field{Key: "trip_request_id", Value: tripRequestID},
			logger.Field{Key: "provider", Value: req.Provider},
			logger.Field{Key: "issues", Value: len(validation.Errors)},
		)
		return &Result{Issues: validation.Errors}, nil
	}

	if _, err := s.store.LoadTripRequest(ctx, tripRequestID); err != nil {
		return nil, err
	}

	guard, ok := roundtrip.ForProvider(req.Provider, s.log)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, req.Provider)
	}

	offers, err := guard.FilterPayload(req.Payload, req.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", guard.Provider(), err)
	}

	now := s.now()
	for i := range offers {
		offers[i].TripRequestID = tripRequestID
		offers[i].CreatedAt = now
		if offers[i].ID == "" {
			offers[i].ID = "ofr_" + strconv.FormatInt(s.idgen.GenerateID(), 10)
		}
		// Amadeus offers carry no expiry of their own.
		if offers[i].ExpiresAt.IsZero() {
			offers[i].ExpiresAt = now.Add(s.offerTTL)
		}
	}

	if err := s.store.InsertOffers(ctx, offers); err != nil {
		return nil, err
	}

	s.log.Info("ingested provider offers",
		logger.Field{Key: "trip_request_id", Value: tripRequestID},
		logger.Field{Key: "provider", Value: guard.Provider()},
		logger.Field{Key: "inserted", Value: len(offers)},
	)
	return &Result{Kept: len(offers), Inserted: len(offers)}, nil
}
