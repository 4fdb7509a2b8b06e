package handlers

import (
	"log"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/renthive/renthive-backend/internal/booking"
)

// respondError writes the {"error": message} envelope with the status that
// matches the error's kind. Internal errors are logged and hidden.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var status int
	switch booking.KindOf(err) {
	case booking.KindInvalidInput:
		status = 400
	case booking.KindUnauthorized:
		status = 403
	case booking.KindNotFound:
		status = 404
	case booking.KindConflict:
		status = 409
	default:
		log.Printf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(500, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// paramID reads a positive numeric path parameter, answering 400 otherwise.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(400, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// parseDate turns an optional date string into a time; an empty string
// yields the zero time so the booking service reports the missing field.
func parseDate(s string) (t time.Time, err error) {
	if s == "" {
		return t, nil
	}
	return booking.ParseDate(s)
}
