package offer

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	selector *Selector
}

func NewHandler(s *Selector) *Handler {
	return &Handler{selector: s}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.POST("/v1/trip-requests/:id/selection", h.SelectBestOfferHandler)
	router.GET("/v1/trip-requests/:id/selected-offer", h.GetSelectedOfferHandler)
	router.GET("/v1/offers/:id/validity", h.OfferValidityHandler)
	router.DELETE("/v1/admin/offers/expired", h.SweepExpiredOffersHandler)
}

// SelectBestOfferHandler godoc
// @Summary      Select the best bookable offer for a trip request
// @Description  Applies hard constraints and the scoring heuristic, then commits the winner onto the trip request
// @Tags         selection
// @Accept       json
// @Produce      json
// @Param        id path string true "Trip request ID"
// @Param        criteria body SelectionCriteria false "Explicit selection criteria"
// @Success      200 {object} FlightOffer
// @Failure      404 {object} map[string]string
// @Failure      409 {object} map[string]string
// @Router       /v1/trip-requests/{id}/selection [post]
func (h *Handler) SelectBestOfferHandler(c *gin.Context) {
	tripRequestID := c.Param("id")

	var criteria SelectionCriteria
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&criteria); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid JSON body",
				"code":  ErrorCodeValidation,
			})
			return
		}
	}

	selected, err := h.selector.SelectBestOffer(c.Request.Context(), tripRequestID, &criteria)
	if err != nil {
		sendError(c, err)
		return
	}
	if selected == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "no eligible offer",
			"code":  ErrorCodeNotFound,
		})
		return
	}

	if err := h.selector.MarkOfferSelected(c.Request.Context(), tripRequestID, selected.ID); err != nil {
		sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, selected)
}

// GetSelectedOfferHandler godoc
// @Summary      Fetch the currently selected offer of a trip request
// @Tags         selection
// @Produce      json
// @Param        id path string true "Trip request ID"
// @Success      200 {object} FlightOffer
// @Failure      404 {object} map[string]string
// @Router       /v1/trip-requests/{id}/selected-offer [get]
func (h *Handler) GetSelectedOfferHandler(c *gin.Context) {
	selected, err := h.selector.GetSelectedOffer(c.Request.Context(), c.Param("id"))
	if err != nil {
		sendError(c, err)
		return
	}
	if selected == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "no selected offer",
			"code":  ErrorCodeNotFound,
		})
		return
	}
	c.JSON(http.StatusOK, selected)
}

// OfferValidityHandler godoc
// @Summary      Check whether an offer is still bookable
// @Tags         offers
// @Produce      json
// @Param        id path string true "Offer ID"
// @Success      200 {object} map[string]bool
// @Router       /v1/offers/{id}/validity [get]
func (h *Handler) OfferValidityHandler(c *gin.Context) {
	valid := h.selector.IsOfferStillValid(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"valid": valid})
}

// SweepExpiredOffersHandler godoc
// @Summary      Delete expired offers that no booking references
// @Tags         admin
// @Produce      json
// @Success      200 {object} map[string]int64
// @Router       /v1/admin/offers/expired [delete]
func (h *Handler) SweepExpiredOffersHandler(c *gin.Context) {
	deleted, err := h.selector.SweepExpiredOffers(c.Request.Context())
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func sendError(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.Status, gin.H{
			"error": appErr.Message,
			"code":  appErr.Code,
		})
		return
	}

	if errors.Is(err, ErrStatusConflict) {
		c.JSON(http.StatusConflict, gin.H{
			"error": "trip request is no longer idle",
			"code":  ErrorCodeConflict,
		})
		return
	}
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
			"code":  ErrorCodeNotFound,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Internal Server Error",
		"code":  ErrorCodeInternalFailure,
	})
}
