// package models defines the data model for the daily matching service
package models

import (
	"context"
	"time"
)

// Model defines the base interface for all persistent models in the matching service.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(ctx context.Context, model T) error                      // Create inserts a new model into the database
	Get(ctx context.Context, id string) (T, error)                  // Get retrieves a model by its ID
	Update(ctx context.Context, model T) error                      // Update modifies an existing model in the database
	Delete(ctx context.Context, id string) error                    // Delete removes a model from the database by its ID
	List(ctx context.Context, criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// entity carries the identity and timestamps shared by persistent models.
type entity struct {
	id        string
	createdAt time.Time
	updatedAt time.Time
}

func newEntity() entity {
	now := time.Now().UTC()
	return entity{createdAt: now, updatedAt: now}
}

func (e *entity) ID() string               { return e.id }
func (e *entity) SetID(id string)          { e.id = id }
func (e *entity) CreatedAt() time.Time     { return e.createdAt }
func (e *entity) SetCreatedAt(t time.Time) { e.createdAt = t }
func (e *entity) UpdatedAt() time.Time     { return e.updatedAt }
func (e *entity) SetUpdatedAt(t time.Time) { e.updatedAt = t }
