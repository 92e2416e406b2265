package webhooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DeliveryStatusPending    = "pending"
	DeliveryStatusProcessing = "processing"
	DeliveryStatusProcessed  = "processed"
	DeliveryStatusRetryReady = "retry_ready"
	DeliveryStatusDead       = "dead"
)

type DeliveryRecord struct {
	ID            string
	ClaimID       string
	Source        string
	DeliveryID    string
	Status        string
	Attempts      int
	LastError     string
	LeaseUntil    *time.Time
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DeliveryLedger records delivery claims. Claim returns claimed=false when the
// delivery is already processed, dead, or leased by another worker.
type DeliveryLedger interface {
	Claim(
		ctx context.Context,
		source string,
		deliveryID string,
		payload []byte,
		lease time.Duration,
	) (DeliveryRecord, bool, error)
	Get(ctx context.Context, source string, deliveryID string) (DeliveryRecord, error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) error
}

// Claimable reports whether a record may be claimed at now.
func Claimable(record DeliveryRecord, now time.Time) bool {
	switch record.Status {
	case DeliveryStatusPending, DeliveryStatusRetryReady:
		return true
	case DeliveryStatusProcessing:
		return record.LeaseUntil == nil || !record.LeaseUntil.After(now)
	default:
		return false
	}
}

type MemoryDeliveryLedger struct {
	mu      sync.Mutex
	records map[string]DeliveryRecord
	claims  map[string]string
	now     func() time.Time
}

func NewMemoryDeliveryLedger() *MemoryDeliveryLedger {
	return &MemoryDeliveryLedger{
		records: map[string]DeliveryRecord{},
		claims:  map[string]string{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (l *MemoryDeliveryLedger) Claim(
	_ context.Context,
	source string,
	deliveryID string,
	_ []byte,
	lease time.Duration,
) (DeliveryRecord, bool, error) {
	source = strings.TrimSpace(source)
	deliveryID = strings.TrimSpace(deliveryID)
	if source == "" || deliveryID == "" {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: source and delivery id are required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := ledgerKey(source, deliveryID)
	now := l.now()
	leaseUntil := now.Add(lease)
	record, ok := l.records[key]
	if !ok {
		record = DeliveryRecord{
			ID:         uuid.NewString(),
			Source:     source,
			DeliveryID: deliveryID,
			CreatedAt:  now,
		}
	} else if !Claimable(record, now) {
		return record, false, nil
	}
	if record.ClaimID != "" {
		delete(l.claims, record.ClaimID)
	}
	record.ClaimID = uuid.NewString()
	record.Status = DeliveryStatusProcessing
	record.Attempts++
	record.LeaseUntil = &leaseUntil
	record.UpdatedAt = now
	l.records[key] = record
	l.claims[record.ClaimID] = key
	return record, true, nil
}

func (l *MemoryDeliveryLedger) Get(_ context.Context, source string, deliveryID string) (DeliveryRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.records[ledgerKey(strings.TrimSpace(source), strings.TrimSpace(deliveryID))]
	if !ok {
		return DeliveryRecord{}, fmt.Errorf("webhooks: delivery %q not found", deliveryID)
	}
	return record, nil
}

func (l *MemoryDeliveryLedger) Complete(_ context.Context, claimID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key, record, err := l.claimed(claimID)
	if err != nil {
		return err
	}
	record.Status = DeliveryStatusProcessed
	record.LeaseUntil = nil
	record.NextAttemptAt = nil
	record.UpdatedAt = l.now()
	l.records[key] = record
	delete(l.claims, claimID)
	return nil
}

func (l *MemoryDeliveryLedger) Fail(
	_ context.Context,
	claimID string,
	cause error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key, record, err := l.claimed(claimID)
	if err != nil {
		return err
	}
	record.Status = DeliveryStatusRetryReady
	if maxAttempts > 0 && record.Attempts >= maxAttempts {
		record.Status = DeliveryStatusDead
	}
	if cause != nil {
		record.LastError = cause.Error()
	}
	next := nextAttemptAt.UTC()
	record.NextAttemptAt = &next
	record.LeaseUntil = nil
	record.UpdatedAt = l.now()
	l.records[key] = record
	delete(l.claims, claimID)
	return nil
}

func (l *MemoryDeliveryLedger) claimed(claimID string) (string, DeliveryRecord, error) {
	key, ok := l.claims[strings.TrimSpace(claimID)]
	if !ok {
		return "", DeliveryRecord{}, fmt.Errorf("webhooks: claim %q not found", claimID)
	}
	return key, l.records[key], nil
}

func ledgerKey(source string, deliveryID string) string {
	return source + ":" + deliveryID
}

var _ DeliveryLedger = (*MemoryDeliveryLedger)(nil)
