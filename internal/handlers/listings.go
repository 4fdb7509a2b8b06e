package handlers

import (
	"errors"
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/renthive/renthive-backend/internal/booking"
	"github.com/renthive/renthive-backend/internal/models"
	"github.com/renthive/renthive-backend/internal/repository"
	"github.com/renthive/renthive-backend/internal/services"
	"github.com/renthive/renthive-backend/pkg/utils"
)

// ListingInput carries the editable fields of both listing kinds; fields
// that do not apply to the kind are ignored.
type ListingInput struct {
	Title        *string  `json:"title"`
	Description  *string  `json:"description"`
	Address      *string  `json:"address"`
	City         *string  `json:"city"`
	Latitude     *float64 `json:"lat"`
	Longitude    *float64 `json:"lng"`
	Bedrooms     *int     `json:"bedrooms" binding:"omitempty,min=0"`
	Bathrooms    *int     `json:"bathrooms" binding:"omitempty,min=0"`
	MonthlyRent  *float64 `json:"monthlyRent" binding:"omitempty,gt=0"`
	Brand        *string  `json:"brand"`
	Model        *string  `json:"model"`
	BikeType     *string  `json:"bikeType"`
	Location     *string  `json:"location"`
	DailyRate    *float64 `json:"dailyRate" binding:"omitempty,gt=0"`
	LicensePlate *string  `json:"licensePlate"`
	Status       *string  `json:"status"`
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func (in ListingInput) applyProperty(p *models.Property) {
	setString(&p.Title, in.Title)
	setString(&p.Description, in.Description)
	setString(&p.Address, in.Address)
	setString(&p.City, in.City)
	setFloat(&p.Latitude, in.Latitude)
	setFloat(&p.Longitude, in.Longitude)
	setInt(&p.Bedrooms, in.Bedrooms)
	setInt(&p.Bathrooms, in.Bathrooms)
	setFloat(&p.MonthlyRent, in.MonthlyRent)
}

func (in ListingInput) applyBike(b *models.Bike) {
	setString(&b.Title, in.Title)
	setString(&b.Description, in.Description)
	setString(&b.Brand, in.Brand)
	setString(&b.BikeModel, in.Model)
	setString(&b.BikeType, in.BikeType)
	setString(&b.Location, in.Location)
	setFloat(&b.Latitude, in.Latitude)
	setFloat(&b.Longitude, in.Longitude)
	setFloat(&b.DailyRate, in.DailyRate)
	setString(&b.LicensePlate, in.LicensePlate)
}

// settableStatus maps a requested status onto the ones an owner may set by
// hand. Rented only ever comes from the booking workflow.
func settableStatus(s string) (models.ListingStatus, bool) {
	for _, st := range []models.ListingStatus{
		models.ListingStatusAvailable,
		models.ListingStatusMaintenance,
		models.ListingStatusInactive,
	} {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

func kindParam(c *gin.Context) (models.ListingKind, bool) {
	kind, ok := models.ParseListingKind(c.Param("kind"))
	if !ok {
		c.JSON(400, gin.H{"error": "listing kind must be properties or bikes"})
	}
	return kind, ok
}

func newListingSlice(kind models.ListingKind) interface{} {
	if kind == models.ListingKindBike {
		return &[]models.Bike{}
	}
	return &[]models.Property{}
}

type nearQuery struct {
	Lat      *float64 `form:"lat" binding:"omitempty,min=-90,max=90"`
	Lng      *float64 `form:"lng" binding:"omitempty,min=-180,max=180"`
	RadiusKm float64  `form:"radiusKm" binding:"omitempty,gt=0,max=200"`
}

// nearby drops listings outside the search circle.
func (n nearQuery) nearby(listings interface{}) interface{} {
	within := func(lat, lng float64) bool {
		return utils.IsWithinRadius(*n.Lat, *n.Lng, lat, lng, n.RadiusKm)
	}
	switch l := listings.(type) {
	case *[]models.Bike:
		out := make([]models.Bike, 0, len(*l))
		for _, b := range *l {
			if within(b.Latitude, b.Longitude) {
				out = append(out, b)
			}
		}
		return out
	case *[]models.Property:
		out := make([]models.Property, 0, len(*l))
		for _, p := range *l {
			if within(p.Latitude, p.Longitude) {
				out = append(out, p)
			}
		}
		return out
	}
	return listings
}

// GetListings lists listings of one kind, filtered by status, city, owner
// and optionally by distance from lat/lng.
func GetListings(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, ok := kindParam(c)
		if !ok {
			return
		}

		var near nearQuery
		if err := c.ShouldBindQuery(&near); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		if (near.Lat == nil) != (near.Lng == nil) {
			c.JSON(400, gin.H{"error": "lat and lng must be given together"})
			return
		}
		searchNear := near.Lat != nil
		if searchNear && near.RadiusKm == 0 {
			near.RadiusKm = 10
		}

		q := db.WithContext(c.Request.Context()).Order("created_at DESC")
		if status := c.Query("status"); status != "" {
			q = q.Where("LOWER(status) = LOWER(?)", status)
		}
		if ownerID := c.Query("ownerId"); ownerID != "" {
			q = q.Where("owner_id = ?", ownerID)
		}
		if city := c.Query("city"); city != "" {
			if kind == models.ListingKindBike {
				q = q.Where("location ILIKE ?", "%"+city+"%")
			} else {
				q = q.Where("city ILIKE ?", "%"+city+"%")
			}
		}

		if searchNear {
			box := utils.GetBoundingBox(*near.Lat, *near.Lng, near.RadiusKm)
			q = q.Where("latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?", box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
		}

		var listings interface{} = newListingSlice(kind)
		if err := q.Find(listings).Error; err != nil {
			respondError(c, err)
			return
		}
		if searchNear {
			listings = near.nearby(listings)
		}
		c.JSON(200, gin.H{"listings": listings})
	}
}

// listingErr reports a missing row as a missing listing.
func listingErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return booking.ErrListingNotFound
	}
	return err
}

func GetListing(store repository.ListingStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, ok := kindParam(c)
		if !ok {
			return
		}
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		listing, err := store.ListingRow(c.Request.Context(), kind, id)
		if err != nil {
			respondError(c, listingErr(err))
			return
		}
		c.JSON(200, gin.H{"listing": listing})
	}
}

// CreateListing publishes a new listing owned by the calling vendor.
func CreateListing(store repository.ListingStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, ok := kindParam(c)
		if !ok {
			return
		}

		var input ListingInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		if input.Title == nil || strings.TrimSpace(*input.Title) == "" {
			c.JSON(400, gin.H{"error": "title is required"})
			return
		}

		var listing models.ListingRow
		switch kind {
		case models.ListingKindBike:
			if input.DailyRate == nil {
				c.JSON(400, gin.H{"error": "dailyRate is required"})
				return
			}
			bike := &models.Bike{OwnerID: c.GetUint("userId"), Status: models.ListingStatusAvailable, Images: datatypes.JSON("[]")}
			input.applyBike(bike)
			listing = bike
		default:
			if input.MonthlyRent == nil || input.Address == nil {
				c.JSON(400, gin.H{"error": "address and monthlyRent are required"})
				return
			}
			property := &models.Property{OwnerID: c.GetUint("userId"), Status: models.ListingStatusAvailable, Images: datatypes.JSON("[]")}
			input.applyProperty(property)
			listing = property
		}

		if err := store.CreateListing(c.Request.Context(), listing); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(201, gin.H{
			"message": "Listing created successfully",
			"listing": listing,
		})
	}
}

// UpdateListing edits a listing's details. An owner may move it between
// Available, Maintenance and Inactive; availability is then recomputed so
// a listing with an active rental stays Rented.
func UpdateListing(store repository.ListingStore, svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, ok := kindParam(c)
		if !ok {
			return
		}
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		var input ListingInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		var status models.ListingStatus
		if input.Status != nil {
			if status, ok = settableStatus(*input.Status); !ok {
				c.JSON(400, gin.H{"error": "status must be one of: Available Maintenance Inactive"})
				return
			}
		}

		ctx := c.Request.Context()
		if _, err := svc.OwnedListing(ctx, kind, id, c.GetUint("userId")); err != nil {
			respondError(c, err)
			return
		}

		listing, err := store.UpdateListing(ctx, kind, id, func(row models.ListingRow) error {
			switch l := row.(type) {
			case *models.Bike:
				input.applyBike(l)
			case *models.Property:
				input.applyProperty(l)
			}
			if status != "" {
				row.SetStatus(status)
			}
			return nil
		})
		if err != nil {
			respondError(c, listingErr(err))
			return
		}

		if status == models.ListingStatusAvailable {
			if _, err := svc.RecomputeAvailability(ctx, kind, id); err != nil {
				respondError(c, err)
				return
			}
			if listing, err = store.ListingRow(ctx, kind, id); err != nil {
				respondError(c, listingErr(err))
				return
			}
		}

		c.JSON(200, gin.H{
			"message": "Listing updated successfully",
			"listing": listing,
		})
	}
}

// DeleteListing removes a listing with no upcoming bookings, with its images.
func DeleteListing(store repository.ListingStore, svc *booking.Service, storage *services.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, ok := kindParam(c)
		if !ok {
			return
		}
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		ctx := c.Request.Context()
		if _, err := svc.OwnedListing(ctx, kind, id, c.GetUint("userId")); err != nil {
			respondError(c, err)
			return
		}
		upcoming, err := svc.UpcomingRanges(ctx, kind, id)
		if err != nil {
			respondError(c, err)
			return
		}
		if len(upcoming) > 0 {
			c.JSON(409, gin.H{"error": "This listing has open applications or rentals and cannot be deleted"})
			return
		}

		listing, err := store.ListingRow(ctx, kind, id)
		if err != nil {
			respondError(c, listingErr(err))
			return
		}
		images, err := listing.ImageURLs()
		if err != nil {
			respondError(c, err)
			return
		}
		if err := store.DeleteListing(ctx, kind, id); err != nil {
			respondError(c, listingErr(err))
			return
		}
		for _, url := range images {
			if err := storage.DeleteImage(url); err != nil {
				log.Printf("Failed to delete image %s of %s %d: %v", url, kind, id, err)
			}
		}

		c.JSON(200, gin.H{"message": "Listing deleted successfully"})
	}
}

// UploadListingImage stores the multipart "image" file and appends its URL
// to the listing's gallery.
func UploadListingImage(store repository.ListingStore, svc *booking.Service, storage *services.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, ok := kindParam(c)
		if !ok {
			return
		}
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		file, err := c.FormFile("image")
		if err != nil {
			c.JSON(400, gin.H{"error": "image file is required"})
			return
		}

		ctx := c.Request.Context()
		if _, err := svc.OwnedListing(ctx, kind, id, c.GetUint("userId")); err != nil {
			respondError(c, err)
			return
		}

		url, err := storage.UploadImage(file, "listings/"+string(kind))
		if err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var images []string
		_, err = store.UpdateListing(ctx, kind, id, func(row models.ListingRow) error {
			current, err := row.ImageURLs()
			if err != nil {
				return err
			}
			images = append(current, url)
			return row.SetImageURLs(images)
		})
		if err != nil {
			if rmErr := storage.DeleteImage(url); rmErr != nil {
				log.Printf("Failed to remove orphaned image %s: %v", url, rmErr)
			}
			respondError(c, listingErr(err))
			return
		}

		c.JSON(201, gin.H{
			"message": "Image uploaded successfully",
			"url":     url,
			"images":  images,
		})
	}
}

// GetAvailability returns the date ranges held on a listing, served from the
// availability cache.
func GetAvailability(svc *booking.Service, cache *services.AvailabilityCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, ok := kindParam(c)
		if !ok {
			return
		}
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		ctx := c.Request.Context()
		booked, err := cache.Get(kind, id, func() ([]booking.BookedRange, error) {
			return svc.BookedRanges(ctx, kind, id)
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{
			"listingId":   id,
			"listingKind": kind,
			"booked":      booked,
		})
	}
}
