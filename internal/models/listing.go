package models

import (
	"encoding/json"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ListingKind tags which listing table an application or rental points at.
type ListingKind string

const (
	ListingKindProperty ListingKind = "property"
	ListingKindBike     ListingKind = "bike"
)

func (k ListingKind) Valid() bool {
	return k == ListingKindProperty || k == ListingKindBike
}

// ParseListingKind accepts the singular or plural form used in URLs.
func ParseListingKind(s string) (ListingKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "property", "properties":
		return ListingKindProperty, true
	case "bike", "bikes":
		return ListingKindBike, true
	}
	return "", false
}

type ListingStatus string

const (
	ListingStatusAvailable   ListingStatus = "Available"
	ListingStatusRented      ListingStatus = "Rented"
	ListingStatusMaintenance ListingStatus = "Maintenance"
	ListingStatusInactive    ListingStatus = "Inactive"
)

// IsAvailable compares case-insensitively; older rows were written as "available".
func (s ListingStatus) IsAvailable() bool {
	return strings.EqualFold(string(s), string(ListingStatusAvailable))
}

// Property is a house, apartment or room offered for rent.
type Property struct {
	gorm.Model
	OwnerID     uint           `json:"ownerId" gorm:"not null;index"`
	Owner       *User          `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Title       string         `json:"title" gorm:"not null"`
	Description string         `json:"description"`
	Address     string         `json:"address" gorm:"not null"`
	City        string         `json:"city" gorm:"index"`
	Latitude    float64        `json:"lat"`
	Longitude   float64        `json:"lng"`
	Bedrooms    int            `json:"bedrooms"`
	Bathrooms   int            `json:"bathrooms"`
	MonthlyRent float64        `json:"monthlyRent" gorm:"not null"`
	Status      ListingStatus  `json:"status" gorm:"not null;default:'Available'"`
	Images      datatypes.JSON `json:"images" gorm:"type:jsonb"`
}

// TableName specifies the table name
func (Property) TableName() string {
	return "properties"
}

// Bike is a bicycle or motorbike offered for rent.
type Bike struct {
	gorm.Model
	OwnerID      uint           `json:"ownerId" gorm:"not null;index"`
	Owner        *User          `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Title        string         `json:"title" gorm:"not null"`
	Description  string         `json:"description"`
	Brand        string         `json:"brand"`
	BikeModel    string         `json:"model" gorm:"column:model"`
	BikeType     string         `json:"bikeType"`
	Location     string         `json:"location"`
	Latitude     float64        `json:"lat"`
	Longitude    float64        `json:"lng"`
	DailyRate    float64        `json:"dailyRate" gorm:"not null"`
	Status       ListingStatus  `json:"status" gorm:"not null;default:'Available'"`
	Images       datatypes.JSON `json:"images" gorm:"type:jsonb"`
	LicensePlate string         `json:"licensePlate,omitempty"`
}

// TableName specifies the table name
func (Bike) TableName() string {
	return "bikes"
}

// ListingTable returns the table that stores listings of the given kind.
func ListingTable(kind ListingKind) string {
	if kind == ListingKindBike {
		return Bike{}.TableName()
	}
	return Property{}.TableName()
}

// ListingRef is the slice of a listing the booking workflow needs,
// whichever table it lives in.
type ListingRef struct {
	ID      uint          `json:"id"`
	Kind    ListingKind   `json:"kind"`
	OwnerID uint          `json:"ownerId"`
	Title   string        `json:"title"`
	Status  ListingStatus `json:"status"`
}

// ListingRow is a full listing row of either table.
type ListingRow interface {
	Ref() ListingRef
	SetStatus(ListingStatus)
	ImageURLs() ([]string, error)
	SetImageURLs([]string) error
}

// NewListingRow returns an empty row of the table holding kind.
func NewListingRow(kind ListingKind) ListingRow {
	if kind == ListingKindBike {
		return &Bike{}
	}
	return &Property{}
}

// CloneListingRow copies a row so the copy can be edited independently.
func CloneListingRow(row ListingRow) ListingRow {
	switch r := row.(type) {
	case *Bike:
		c := *r
		c.Images = append(datatypes.JSON(nil), r.Images...)
		return &c
	case *Property:
		c := *r
		c.Images = append(datatypes.JSON(nil), r.Images...)
		return &c
	}
	return row
}

func (p *Property) Ref() ListingRef {
	return ListingRef{ID: p.ID, Kind: ListingKindProperty, OwnerID: p.OwnerID, Title: p.Title, Status: p.Status}
}

func (p *Property) SetStatus(s ListingStatus) { p.Status = s }

func (p *Property) ImageURLs() ([]string, error) { return decodeImages(p.Images) }

func (p *Property) SetImageURLs(urls []string) (err error) {
	p.Images, err = encodeImages(urls)
	return err
}

func (b *Bike) Ref() ListingRef {
	return ListingRef{ID: b.ID, Kind: ListingKindBike, OwnerID: b.OwnerID, Title: b.Title, Status: b.Status}
}

func (b *Bike) SetStatus(s ListingStatus) { b.Status = s }

func (b *Bike) ImageURLs() ([]string, error) { return decodeImages(b.Images) }

func (b *Bike) SetImageURLs(urls []string) (err error) {
	b.Images, err = encodeImages(urls)
	return err
}

func decodeImages(raw datatypes.JSON) ([]string, error) {
	var urls []string
	if len(raw) == 0 {
		return urls, nil
	}
	if err := json.Unmarshal(raw, &urls); err != nil {
		return nil, err
	}
	return urls, nil
}

func encodeImages(urls []string) (datatypes.JSON, error) {
	if urls == nil {
		urls = []string{}
	}
	raw, err := json.Marshal(urls)
	return datatypes.JSON(raw), err
}
