package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/renthive/renthive-backend/internal/booking"
)

// GetRentals lists rentals where the user is tenant or owner.
func GetRentals(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rentals, err := svc.RentalsForUser(c.Request.Context(), c.GetUint("userId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"rentals": rentals})
	}
}

// CancelRental ends an active rental early and frees the listing.
func CancelRental(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		rental, err := svc.CancelRental(c.Request.Context(), id, c.GetUint("userId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{
			"message": "Rental cancelled",
			"rental":  rental,
		})
	}
}
