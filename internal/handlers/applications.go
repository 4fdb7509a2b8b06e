package handlers

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/renthive/renthive-backend/internal/booking"
	"github.com/renthive/renthive-backend/internal/models"
)

type ApplicationInput struct {
	ListingID   uint     `json:"listingId"`
	ListingKind string   `json:"listingKind"`
	StartDate   string   `json:"startDate"`
	EndDate     string   `json:"endDate"`
	TotalAmount *float64 `json:"totalAmount"`
}

type EditApplicationInput struct {
	StartDate   string   `json:"startDate"`
	EndDate     string   `json:"endDate"`
	TotalAmount *float64 `json:"totalAmount"`
}

type DecisionInput struct {
	Decision        string `json:"decision" binding:"required"`
	RejectionReason string `json:"rejectionReason"`
}

type PaymentInput struct {
	Method string `json:"method"`
}

func listingKind(s string) models.ListingKind {
	if kind, ok := models.ParseListingKind(s); ok {
		return kind
	}
	return models.ListingKind(strings.ToLower(strings.TrimSpace(s)))
}

func parseRange(start, end string) (time.Time, time.Time, error) {
	startDate, err := parseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	endDate, err := parseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return startDate, endDate, nil
}

// SubmitApplication asks to rent a listing for a date range.
func SubmitApplication(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input ApplicationInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		start, end, err := parseRange(input.StartDate, input.EndDate)
		if err != nil {
			respondError(c, err)
			return
		}

		app, err := svc.Submit(c.Request.Context(), booking.SubmitRequest{
			ApplicantID: c.GetUint("userId"),
			ListingID:   input.ListingID,
			ListingKind: listingKind(input.ListingKind),
			StartDate:   start,
			EndDate:     end,
			TotalAmount: input.TotalAmount,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(201, gin.H{
			"message":     "Application submitted successfully",
			"application": app,
		})
	}
}

// GetMyApplications lists the applications the user has sent.
func GetMyApplications(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		apps, err := svc.ApplicationsForApplicant(c.Request.Context(), c.GetUint("userId"), models.ApplicationStatus(c.Query("status")))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"applications": apps})
	}
}

// GetReceivedApplications lists applications for the user's listings.
func GetReceivedApplications(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		apps, err := svc.ApplicationsForOwner(c.Request.Context(), c.GetUint("userId"), models.ApplicationStatus(c.Query("status")))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"applications": apps})
	}
}

var exportColumns = []string{"ID", "Listing", "Kind", "Applicant", "Start", "End", "Days", "Amount", "Status", "Submitted"}

// ExportReceivedApplications streams the owner's received applications as
// an xlsx workbook.
func ExportReceivedApplications(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		apps, err := svc.ApplicationsForOwner(c.Request.Context(), c.GetUint("userId"), models.ApplicationStatus(c.Query("status")))
		if err != nil {
			respondError(c, err)
			return
		}

		f := excelize.NewFile()
		defer func() {
			if err := f.Close(); err != nil {
				log.Printf("Failed to close export workbook: %v", err)
			}
		}()

		const sheet = "Applications"
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			respondError(c, err)
			return
		}
		if err := f.SetSheetRow(sheet, "A1", &exportColumns); err != nil {
			respondError(c, err)
			return
		}
		for i, app := range apps {
			cell, _ := excelize.CoordinatesToCellName(1, i+2)
			row := []interface{}{
				app.ID,
				app.ListingID,
				string(app.ListingKind),
				app.ApplicantID,
				app.StartDate.Format(booking.DateLayout),
				app.EndDate.Format(booking.DateLayout),
				app.Duration,
				app.TotalAmount,
				string(app.Status),
				app.CreatedAt.Format(time.RFC3339),
			}
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				respondError(c, err)
				return
			}
		}

		filename := fmt.Sprintf("applications-%s.xlsx", time.Now().UTC().Format("20060102"))
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Status(200)
		if err := f.Write(c.Writer); err != nil {
			log.Printf("Failed to write export workbook: %v", err)
		}
	}
}

// GetApplication returns one application to its applicant or the owner.
func GetApplication(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		app, err := svc.GetApplication(c.Request.Context(), id, c.GetUint("userId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"application": app})
	}
}

// EditApplication moves a pending application to new dates.
func EditApplication(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		var input EditApplicationInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		start, end, err := parseRange(input.StartDate, input.EndDate)
		if err != nil {
			respondError(c, err)
			return
		}

		app, err := svc.Edit(c.Request.Context(), booking.EditRequest{
			ApplicationID: id,
			ApplicantID:   c.GetUint("userId"),
			StartDate:     start,
			EndDate:       end,
			TotalAmount:   input.TotalAmount,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"message":     "Application updated successfully",
			"application": app,
		})
	}
}

// CancelApplication withdraws a pending application.
func CancelApplication(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		app, err := svc.Cancel(c.Request.Context(), id, c.GetUint("userId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{
			"message":     "Application cancelled",
			"application": app,
		})
	}
}

// DecideApplication approves or rejects an application on the owner's behalf.
func DecideApplication(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		var input DecisionInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		result, err := svc.Decide(c.Request.Context(), booking.DecisionRequest{
			ApplicationID:   id,
			OwnerID:         c.GetUint("userId"),
			Decision:        models.ApplicationStatus(strings.ToLower(input.Decision)),
			RejectionReason: input.RejectionReason,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"message":     "Application " + string(result.Application.Status),
			"application": result.Application,
			"rental":      result.Rental,
		})
	}
}

// PayApplication records payment for an approved application.
func PayApplication(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		var input PaymentInput
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&input); err != nil {
				c.JSON(400, gin.H{"error": err.Error()})
				return
			}
		}

		result, err := svc.Pay(c.Request.Context(), booking.PayRequest{
			ApplicationID: id,
			ApplicantID:   c.GetUint("userId"),
			Method:        strings.ToLower(input.Method),
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"message":     "Payment successful",
			"application": result.Application,
			"rental":      result.Rental,
			"payment":     result.Payment,
		})
	}
}
