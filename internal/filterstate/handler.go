package filterstate

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"parkerflight/internal/offer"
	"parkerflight/internal/roundtrip"
	"parkerflight/pkg/cache"
	"parkerflight/pkg/logger"
)

// Handler exposes one filter manager per trip request, rebuilt from the
// persisted options on each call.
type Handler struct {
	store  cache.Cache
	offers offer.Store
	log    logger.Client
	ttl    time.Duration
	now    func() time.Time

	// Shortened in tests; zero means the manager default.
	applyDelay time.Duration
}

func NewHandler(store cache.Cache, offers offer.Store, ttl time.Duration, log logger.Client) *Handler {
	return &Handler{
		store:  store,
		offers: offers,
		log:    log,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.PUT("/v1/trip-requests/:id/filters", h.UpdateFiltersHandler)
	router.DELETE("/v1/trip-requests/:id/filters", h.ResetFiltersHandler)
	router.GET("/v1/trip-requests/:id/filters", h.GetFiltersHandler)
	router.GET("/v1/trip-requests/:id/offers/filtered", h.FilteredOffersHandler)
}

func (h *Handler) managerFor(c *gin.Context, tripRequestID string) *Manager {
	return NewManager(c.Request.Context(), Config{
		StorageKey: "filters:" + tripRequestID,
		Persist:    true,
		TTL:        h.ttl,
		ApplyDelay: h.applyDelay,
		Store:      h.store,
		Logger:     h.log,
	})
}

// UpdateFiltersHandler godoc
// @Summary      Merge a partial filter update for a trip request
// @Tags         filters
// @Accept       json
// @Produce      json
// @Param        id path string true "Trip request ID"
// @Param        update body Update true "Partial filter update"
// @Success      200 {object} State
// @Failure      400 {object} map[string]string
// @Router       /v1/trip-requests/{id}/filters [put]
func (h *Handler) UpdateFiltersHandler(c *gin.Context) {
	var upd Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}

	m := h.managerFor(c, c.Param("id"))
	m.UpdateFilters(c.Request.Context(), upd)
	c.JSON(http.StatusOK, m.State())
}

// ResetFiltersHandler godoc
// @Summary      Reset a trip request's filters to their defaults
// @Tags         filters
// @Produce      json
// @Param        id path string true "Trip request ID"
// @Success      200 {object} State
// @Router       /v1/trip-requests/{id}/filters [delete]
func (h *Handler) ResetFiltersHandler(c *gin.Context) {
	m := h.managerFor(c, c.Param("id"))
	m.ResetFilters(c.Request.Context())
	c.JSON(http.StatusOK, m.State())
}

// GetFiltersHandler godoc
// @Summary      Fetch current filters plus both API projections
// @Tags         filters
// @Produce      json
// @Param        id path string true "Trip request ID"
// @Success      200 {object} map[string]any
// @Router       /v1/trip-requests/{id}/filters [get]
func (h *Handler) GetFiltersHandler(c *gin.Context) {
	m := h.managerFor(c, c.Param("id"))
	c.JSON(http.StatusOK, gin.H{
		"state":       m.State(),
		"backend":     m.BackendFilterOptions(),
		"client_side": m.ClientSideFilters(),
	})
}

// FilteredOffersHandler godoc
// @Summary      List a trip request's non-expired offers with filters applied
// @Description  Round-trip requests additionally drop offers lacking a return leg
// @Tags         filters
// @Produce      json
// @Param        id path string true "Trip request ID"
// @Param        round_trip query bool false "Treat the request as round-trip"
// @Success      200 {object} map[string]any
// @Failure      404 {object} map[string]string
// @Router       /v1/trip-requests/{id}/offers/filtered [get]
func (h *Handler) FilteredOffersHandler(c *gin.Context) {
	tripRequestID := c.Param("id")

	if _, err := h.offers.LoadTripRequest(c.Request.Context(), tripRequestID); err != nil {
		if errors.Is(err, offer.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "trip request not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}

	loaded, err := h.offers.LoadOffers(c.Request.Context(), tripRequestID, h.now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}

	isRoundTrip := c.Query("round_trip") == "true"
	loaded = roundtrip.FilterDatabaseOffers(loaded, isRoundTrip, h.log)

	m := h.managerFor(c, tripRequestID)
	m.SetOffers(c.Request.Context(), loaded)

	c.JSON(http.StatusOK, gin.H{
		"offers": m.FilteredOffers(),
		"state":  m.State(),
	})
}
