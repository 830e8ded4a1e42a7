package ingest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"parkerflight/internal/offer"
	"parkerflight/internal/roundtrip"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.POST("/v1/trip-requests/:id/offers/ingest", h.IngestOffersHandler)
	router.POST("/v1/search-params/validate", h.ValidateSearchParamsHandler)
}

// IngestOffersHandler godoc
// @Summary      Ingest a provider search response for a trip request
// @Description  Filters the payload by round-trip shape before inserting; contradictory search params come back as 422
// @Tags         ingest
// @Accept       json
// @Produce      json
// @Param        id path string true "Trip request ID"
// @Param        request body Request true "Provider payload with search params"
// @Success      200 {object} Result
// @Failure      400 {object} map[string]string
// @Failure      404 {object} map[string]string
// @Failure      422 {object} Result
// @Router       /v1/trip-requests/{id}/offers/ingest [post]
func (h *Handler) IngestOffersHandler(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}

	result, err := h.service.IngestProviderOffers(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		switch {
		case errors.Is(err, offer.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "trip request not found"})
		case errors.Is(err, ErrUnknownProvider):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		}
		return
	}

	if len(result.Issues) > 0 {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ValidateSearchParamsHandler godoc
// @Summary      Check search params for contradictory round-trip intent
// @Tags         ingest
// @Accept       json
// @Produce      json
// @Param        params body roundtrip.SearchParams true "Search params"
// @Success      200 {object} roundtrip.ValidationResult
// @Failure      400 {object} map[string]string
// @Router       /v1/search-params/validate [post]
func (h *Handler) ValidateSearchParamsHandler(c *gin.Context) {
	var params roundtrip.SearchParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	c.JSON(http.StatusOK, roundtrip.ValidateSearchParams(params))
}
