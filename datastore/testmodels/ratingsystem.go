package testmodels

import (
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/suparena/docstore/registry"
)

func init() {
	registry.RegisterCollection[RatingSystem]("ratingSystems")
}

type RatingSystem struct {

	// Timestamp when the rating system was created.
	// Format: date-time
	CreatedAt strfmt.DateTime `json:"createdAt" bson:"createdAt"`

	// A description of the rating system.
	Description string `json:"description" bson:"description"`

	// Unique identifier for the rating system.
	// Required: true
	ID string `json:"id" bson:"_id"`

	// Name of the rating system.
	// Required: true
	Name string `json:"name" bson:"name"`

	// site Url
	SiteURL string `json:"siteUrl,omitempty" bson:"siteUrl,omitempty"`

	// Timestamp when the rating system was last updated.
	// Format: date-time
	UpdatedAt strfmt.DateTime `json:"updatedAt" bson:"updatedAt"`
}

// NewRatingSystem returns a rating system stamped with the current time.
func NewRatingSystem(id, name string) RatingSystem {
	now := strfmt.DateTime(time.Now().UTC().Truncate(time.Millisecond))
	return RatingSystem{
		ID:        id,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
