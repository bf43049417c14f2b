package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"
)

// CredentialRepo persists the API-key credit pool (servicecredentials table).
type CredentialRepo struct {
	db *DB
}

func NewCredentialRepo(db *DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

// KeySeed is one config-declared vendor key, as much as EnsureKeys needs to
// know about it.
type KeySeed struct {
	Label           string
	APIKey          string
	DefaultCredits  int
	ResetIntervalHr int
}

// EnsureKeys upserts one credential row per configured key for a service,
// seeding availableCredits to defaultCredits the first time a key is seen.
// Run once at process startup so a fresh deployment's config-declared keys
// have a row to rotate against before the first SeedFromStore call.
func (r *CredentialRepo) EnsureKeys(ctx context.Context, service string, creditsPerCall int, keys []KeySeed) error {
	now := time.Now()
	for _, k := range keys {
		row := ServiceCredential{
			Service:          service,
			KeyLabel:         k.Label,
			APIKey:           k.APIKey,
			AvailableCredits: k.DefaultCredits,
			DefaultCredits:   k.DefaultCredits,
			CreditsPerCall:   creditsPerCall,
			NextResetAt:      now.Add(time.Duration(k.ResetIntervalHr) * time.Hour),
			IsResetAvailable: true,
		}
		result := r.db.GORM().WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "service"}, {Name: "key_label"}},
				DoUpdates: clause.AssignmentColumns([]string{"api_key", "default_credits", "credits_per_call"}),
			}).
			Create(&row)
		if result.Error != nil {
			return fmt.Errorf("ensure credential %s/%s: %w", service, k.Label, result.Error)
		}
	}
	return nil
}

// ListByService returns every key row for a vendor service.
func (r *CredentialRepo) ListByService(ctx context.Context, service string) ([]ServiceCredential, error) {
	var rows []ServiceCredential
	result := r.db.GORM().WithContext(ctx).Where("service = ?", service).Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("list credentials: %w", result.Error)
	}
	return rows, nil
}

// SetAvailableCredits flushes the net in-session delta for one key, the
// batch settlement described in the spec's credit accounting section.
func (r *CredentialRepo) SetAvailableCredits(ctx context.Context, service, keyLabel string, availableCredits int) error {
	result := r.db.GORM().WithContext(ctx).Model(&ServiceCredential{}).
		Where("service = ? AND key_label = ?", service, keyLabel).
		Update("available_credits", availableCredits)
	if result.Error != nil {
		return fmt.Errorf("flush credits for %s/%s: %w", service, keyLabel, result.Error)
	}
	return nil
}

// ResetDue restores availableCredits to defaultCredits for every row whose
// nextResetAt has passed and isResetAvailable is true, then advances
// nextResetAt by the configured reset interval. This backs the credential-
// reset job named in the spec's scheduler entry points.
func (r *CredentialRepo) ResetDue(ctx context.Context, now time.Time, interval time.Duration) (int, error) {
	var due []ServiceCredential
	result := r.db.GORM().WithContext(ctx).
		Where("next_reset_at <= ? AND is_reset_available = ?", now, true).
		Find(&due)
	if result.Error != nil {
		return 0, fmt.Errorf("query due credentials: %w", result.Error)
	}
	for _, cred := range due {
		update := r.db.GORM().WithContext(ctx).Model(&ServiceCredential{}).
			Where("id = ?", cred.ID).
			Updates(map[string]interface{}{
				"available_credits": cred.DefaultCredits,
				"next_reset_at":     now.Add(interval),
			})
		if update.Error != nil {
			return 0, fmt.Errorf("reset credential %s/%s: %w", cred.Service, cred.KeyLabel, update.Error)
		}
	}
	return len(due), nil
}
