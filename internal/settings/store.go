package settings

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/sip-mqtt/internal/infrastructure/mqtt"
)

var _ mqtt.SettingsSource = (*Store)(nil)

// Identity holds the session identity that is not user-editable.
type Identity struct {
	ClientID string
	Username string
	Password string
}

// ChangeFunc is called after a submission has been saved.
type ChangeFunc func(ctx context.Context, doc Document)

// Store caches the settings document and validates every submission.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Store struct {
	repo     Repository
	defaults Document
	identity Identity

	mu     sync.RWMutex
	doc    Document
	loaded bool

	hooksMu sync.RWMutex
	hooks   []ChangeFunc
}

// NewStore creates a Store. Call Load before use.
func NewStore(repo Repository, defaults Defaults, identity Identity) *Store {
	return &Store{
		repo:     repo,
		defaults: defaults.Document(),
		identity: identity,
	}
}

// Load reads the stored document, seeding any missing known key from the
// defaults, and replaces the cached copy.
func (s *Store) Load(ctx context.Context) (Document, error) {
	stored, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}

	missing := make(Document)
	for k, v := range s.defaults {
		if _, ok := stored[k]; !ok {
			missing[k] = v
			stored[k] = v
		}
	}
	if len(missing) > 0 {
		if err := s.repo.InsertMissing(ctx, missing); err != nil {
			return nil, fmt.Errorf("seeding settings: %w", err)
		}
	}

	s.mu.Lock()
	s.doc = stored
	s.loaded = true
	s.mu.Unlock()

	return stored.Clone(), nil
}

// Save validates values merged over the current document and persists them.
//
// Nothing is written when validation fails; the returned error is a
// *ValidationError. Change hooks run after a successful save.
func (s *Store) Save(ctx context.Context, values map[string]string) error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNotLoaded
	}

	merged := s.doc.Clone()
	submitted := make(Document, len(values))
	for k, v := range values {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		merged[k] = v
		submitted[k] = v
	}

	if err := Validate(merged); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.repo.Upsert(ctx, submitted); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("saving settings: %w", err)
	}
	s.doc = merged
	s.mu.Unlock()

	s.hooksMu.RLock()
	hooks := append([]ChangeFunc(nil), s.hooks...)
	s.hooksMu.RUnlock()
	for _, hook := range hooks {
		hook(ctx, merged.Clone())
	}

	return nil
}

// OnChange registers a hook run after every successful Save.
func (s *Store) OnChange(fn ChangeFunc) {
	s.hooksMu.Lock()
	s.hooks = append(s.hooks, fn)
	s.hooksMu.Unlock()
}

// Document returns a copy of the cached document.
func (s *Store) Document() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// Get returns one cached value, or "" if the key is unknown.
func (s *Store) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc[key]
}

// Broker returns the broker settings from the cached document.
// Malformed numbers fall back to the seeded defaults.
func (s *Store) Broker() mqtt.BrokerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return mqtt.BrokerConfig{
		Host:        strings.TrimSpace(s.doc[KeyBrokerHost]),
		Port:        s.doc.Int(KeyBrokerPort, s.defaults.Int(KeyBrokerPort, 0)),
		KeepAlive:   s.doc.Int(KeyBrokerAlive, s.defaults.Int(KeyBrokerAlive, mqtt.DefaultKeepAlive)),
		StatusTopic: strings.TrimSpace(s.doc[KeyPublishUpDown]),
		ClientID:    s.identity.ClientID,
		Username:    s.identity.Username,
		Password:    s.identity.Password,
	}
}

// BrokerSettings reloads the document and returns the broker settings.
func (s *Store) BrokerSettings(ctx context.Context) (mqtt.BrokerConfig, error) {
	if _, err := s.Load(ctx); err != nil {
		return mqtt.BrokerConfig{}, err
	}
	return s.Broker(), nil
}

// ScheduleTopic returns the run-once command topic.
func (s *Store) ScheduleTopic() string {
	return strings.TrimSpace(s.Get(KeyScheduleTopic))
}
