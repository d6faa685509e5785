package webhook

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/pitabwire/frame/datastore/pool"

	"github.com/livetranslate/livetranslate/pkg/events"
)

// Repository provides CRUD operations for webhook-related models.
type Repository struct {
	pool pool.Pool
}

// NewRepository creates a webhook repository over the given datastore pool.
func NewRepository(pool pool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) db(ctx context.Context, readOnly bool) *gorm.DB {
	return r.pool.DB(ctx, readOnly)
}

// CreateEndpoint persists a new webhook endpoint.
func (r *Repository) CreateEndpoint(ctx context.Context, ep *Endpoint) error {
	return r.db(ctx, false).Create(ep).Error
}

// GetEndpoint returns a webhook endpoint by ID.
func (r *Repository) GetEndpoint(ctx context.Context, id string) (*Endpoint, error) {
	var ep Endpoint
	err := r.db(ctx, true).Where("id = ?", id).First(&ep).Error
	if err != nil {
		return nil, err
	}
	return &ep, nil
}

// ListEndpoints returns all webhook endpoints, active or not.
func (r *Repository) ListEndpoints(ctx context.Context) ([]Endpoint, error) {
	var endpoints []Endpoint
	err := r.db(ctx, true).Find(&endpoints).Error
	return endpoints, err
}

// ListForEvent returns active endpoints subscribed to the given event type,
// restricted to the event's session when the endpoint carries a session
// filter.
func (r *Repository) ListForEvent(ctx context.Context, et events.EventType, sessionID string) ([]Endpoint, error) {
	var endpoints []Endpoint
	// JSONB containment keeps the event-type match on the database side.
	err := r.db(ctx, true).
		Where("is_active = ? AND event_types @> ?", true, fmt.Sprintf(`[%q]`, et)).
		Where("session_filter = '' OR session_filter = ?", sessionID).
		Find(&endpoints).Error
	return endpoints, err
}

// UpdateEndpoint persists changes to a webhook endpoint.
func (r *Repository) UpdateEndpoint(ctx context.Context, ep *Endpoint) error {
	return r.db(ctx, false).Save(ep).Error
}

// DeleteEndpoint soft-deletes a webhook endpoint.
func (r *Repository) DeleteEndpoint(ctx context.Context, id string) error {
	return r.db(ctx, false).Where("id = ?", id).Delete(&Endpoint{}).Error
}

// RecordDelivery persists a delivery attempt.
func (r *Repository) RecordDelivery(ctx context.Context, d *Delivery) error {
	return r.db(ctx, false).Create(d).Error
}

// ListDeliveries returns delivery attempts for an endpoint, newest first.
func (r *Repository) ListDeliveries(ctx context.Context, endpointID string, limit, offset int) ([]Delivery, error) {
	var attempts []Delivery
	q := r.db(ctx, true).
		Where("endpoint_id = ?", endpointID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	err := q.Find(&attempts).Error
	return attempts, err
}

// CreateDeadLetter persists a dead-lettered event.
func (r *Repository) CreateDeadLetter(ctx context.Context, dl *DeadLetter) error {
	return r.db(ctx, false).Create(dl).Error
}

// GetDeadLetter returns a single dead letter by its ID.
func (r *Repository) GetDeadLetter(ctx context.Context, id string) (*DeadLetter, error) {
	var dl DeadLetter
	err := r.db(ctx, true).Where("id = ?", id).First(&dl).Error
	if err != nil {
		return nil, err
	}
	return &dl, nil
}

// ListDeadLetters returns replayable dead letters for an endpoint.
func (r *Repository) ListDeadLetters(ctx context.Context, endpointID string) ([]DeadLetter, error) {
	var letters []DeadLetter
	err := r.db(ctx, true).
		Where("endpoint_id = ? AND replayable = ?", endpointID, true).
		Order("created_at DESC").
		Find(&letters).Error
	return letters, err
}

// MarkDeadLetterReplayed marks a dead letter as no longer replayable.
func (r *Repository) MarkDeadLetterReplayed(ctx context.Context, id string) error {
	return r.db(ctx, false).
		Model(&DeadLetter{}).
		Where("id = ?", id).
		Update("replayable", false).Error
}
