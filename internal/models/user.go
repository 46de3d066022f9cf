package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/chord/internal/shared"
)

// Location is an approximate position. Coordinates are always rounded to about 1 km
// before they are stored, so exact positions never reach the database.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewLocation validates lat/lng and rounds both to two decimal places.
func NewLocation(lat, lng float64) (Location, error) {
	if !shared.ValidCoordinates(lat, lng) {
		return Location{}, fmt.Errorf("%w: (%v, %v)", shared.ErrInvalidLocation, lat, lng)
	}
	return Location{
		Latitude:  shared.RoundCoordinate(lat),
		Longitude: shared.RoundCoordinate(lng),
	}, nil
}

// DistanceKm returns the great-circle distance between two locations.
func (l Location) DistanceKm(other Location) float64 {
	return shared.Haversine(l.Latitude, l.Longitude, other.Latitude, other.Longitude)
}

// User is a person who can be matched.
//
// Authentication and profile editing live outside this service; the fields here are
// what matching and the reveal flow need.
type User struct {
	entity
	sequence    int
	DisplayName string
	PhotoURL    string
	Bio         string
	Location    *Location
	Active      bool
	Profile     *TasteProfile
	deletedAt   *time.Time
}

// NewUser creates an active [User] with no location or profile yet.
func NewUser(sequence int, displayName string) *User {
	return &User{
		entity:      newEntity(),
		sequence:    sequence,
		DisplayName: displayName,
		Active:      true,
	}
}

func (u *User) Sequence() int             { return u.sequence }
func (u *User) SetSequence(s int)         { u.sequence = s }
func (u *User) DeletedAt() *time.Time     { return u.deletedAt }
func (u *User) SetDeletedAt(t *time.Time) { u.deletedAt = t }

// Eligible reports whether the user can take part in a matching run.
func (u *User) Eligible() bool {
	return u.Active && u.deletedAt == nil && u.Location != nil && u.Profile != nil
}

// Validate checks display name, bio length and location range.
func (u *User) Validate() error {
	if strings.TrimSpace(u.DisplayName) == "" {
		return fmt.Errorf("%w: display name is required", shared.ErrValidation)
	}
	if len([]rune(u.Bio)) > 50 {
		return fmt.Errorf("%w: bio must be 50 characters or less", shared.ErrValidation)
	}
	if u.Location != nil && !shared.ValidCoordinates(u.Location.Latitude, u.Location.Longitude) {
		return shared.ErrInvalidLocation
	}
	if u.Profile != nil {
		if err := u.Profile.Validate(); err != nil {
			return err
		}
	}
	return nil
}
