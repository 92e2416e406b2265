package sqlstore

import (
	"time"

	"github.com/goliatone/go-roundup/core"
	"github.com/goliatone/go-roundup/webhooks"
	"github.com/uptrace/bun"
)

type configDocumentRecord struct {
	bun.BaseModel `bun:"table:roundup_config_documents,alias:rcd"`

	ID        string            `bun:"id,pk"`
	Value     core.StoredConfig `bun:"value,type:jsonb,notnull"`
	Version   int64             `bun:"version,notnull"`
	CreatedAt time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time         `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newConfigDocumentRecord(doc core.ConfigDocument, version int64, now time.Time) *configDocumentRecord {
	value := doc.Value.Clone()
	if value == nil {
		value = core.StoredConfig{}
	}
	return &configDocumentRecord{
		ID:        doc.ID,
		Value:     value,
		Version:   version,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *configDocumentRecord) toDomain() core.ConfigDocument {
	if r == nil {
		return core.ConfigDocument{}
	}
	value := r.Value.Clone()
	if value == nil {
		value = core.StoredConfig{}
	}
	return core.ConfigDocument{
		ID:        r.ID,
		Value:     value,
		Version:   r.Version,
		UpdatedAt: r.UpdatedAt,
	}
}

type webhookDeliveryRecord struct {
	bun.BaseModel `bun:"table:roundup_webhook_deliveries,alias:rwd"`

	ID            string     `bun:"id,pk"`
	ClaimID       string     `bun:"claim_id,nullzero"`
	Source        string     `bun:"source,notnull"`
	DeliveryID    string     `bun:"delivery_id,notnull"`
	Status        string     `bun:"status,notnull"`
	Attempts      int        `bun:"attempts,notnull"`
	LastError     string     `bun:"last_error"`
	LeaseUntil    *time.Time `bun:"lease_until,nullzero"`
	NextAttemptAt *time.Time `bun:"next_attempt_at,nullzero"`
	Payload       []byte     `bun:"payload"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *webhookDeliveryRecord) toDomain() webhooks.DeliveryRecord {
	if r == nil {
		return webhooks.DeliveryRecord{}
	}
	result := webhooks.DeliveryRecord{
		ID:         r.ID,
		ClaimID:    r.ClaimID,
		Source:     r.Source,
		DeliveryID: r.DeliveryID,
		Status:     r.Status,
		Attempts:   r.Attempts,
		LastError:  r.LastError,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.LeaseUntil != nil {
		value := *r.LeaseUntil
		result.LeaseUntil = &value
	}
	if r.NextAttemptAt != nil {
		value := *r.NextAttemptAt
		result.NextAttemptAt = &value
	}
	return result
}
