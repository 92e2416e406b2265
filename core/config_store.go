package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// ConfigStore reads and writes per-user config held in one aggregate document.
// Reads go through the cache; a local write replaces the cached entry.
type ConfigStore struct {
	documentID  string
	documents   DocumentStore
	cache       ConfigCache
	maxAttempts int

	mu sync.Mutex
}

func NewConfigStore(documents DocumentStore, cache ConfigCache, documentID string, maxWriteAttempts int) (*ConfigStore, error) {
	if documents == nil {
		return nil, fmt.Errorf("core: document store is required")
	}
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		documentID = DefaultDocumentID
	}
	if cache == nil {
		cache = NopConfigCache{}
	}
	if maxWriteAttempts <= 0 {
		maxWriteAttempts = defaultMaxWriteAttempts
	}
	return &ConfigStore{
		documentID:  documentID,
		documents:   documents,
		cache:       cache,
		maxAttempts: maxWriteAttempts,
	}, nil
}

func (s *ConfigStore) DocumentID() string {
	if s == nil {
		return ""
	}
	return s.documentID
}

// Load returns the full config map, creating an empty document when none exists.
func (s *ConfigStore) Load(ctx context.Context) (StoredConfig, error) {
	doc, err := s.loadDocument(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Value, nil
}

// Save overwrites the whole document. Concurrent writers are not detected; the
// last write wins.
func (s *ConfigStore) Save(ctx context.Context, cfg StoredConfig) (StoredConfig, error) {
	if s == nil || s.documents == nil {
		return nil, fmt.Errorf("core: config store is not configured")
	}
	if cfg == nil {
		cfg = StoredConfig{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.documents.Put(ctx, ConfigDocument{ID: s.documentID, Value: cfg.Clone()})
	if err != nil {
		return nil, err
	}
	if err := s.remember(ctx, saved); err != nil {
		return nil, err
	}
	return saved.Value.Clone(), nil
}

// GetUser never fails for an unknown user; it returns a record with only the id set.
func (s *ConfigStore) GetUser(ctx context.Context, userID string) (UserConfig, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return UserConfig{}, fmt.Errorf("core: user id is required")
	}
	cfg, err := s.Load(ctx)
	if err != nil {
		return UserConfig{}, err
	}
	user, ok := cfg[userID]
	if !ok {
		return UserConfig{UserID: userID}, nil
	}
	user.UserID = userID
	return user, nil
}

// GetUserByAccountID returns the first user linked to accountID, scanning in
// user id order.
func (s *ConfigStore) GetUserByAccountID(ctx context.Context, accountID string) (UserConfig, bool, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return UserConfig{}, false, nil
	}
	cfg, err := s.Load(ctx)
	if err != nil {
		return UserConfig{}, false, err
	}
	for _, userID := range cfg.UserIDs() {
		user := cfg[userID]
		if strings.TrimSpace(user.AccountID) == "" {
			continue
		}
		if user.AccountID == accountID {
			user.UserID = userID
			return user, true, nil
		}
	}
	return UserConfig{}, false, nil
}

// PutUser replaces a single user record as a whole. Callers changing a few
// fields of a record they read earlier should use UpdateUser.
func (s *ConfigStore) PutUser(ctx context.Context, user UserConfig) (UserConfig, error) {
	user.UserID = strings.TrimSpace(user.UserID)
	return s.UpdateUser(ctx, user.UserID, func(current *UserConfig) error {
		*current = user
		return nil
	})
}

// UpdateUser applies mutate to the user record as currently stored and writes
// the result conditional on the document version it read. On conflict the
// document is reloaded and mutate runs again on the fresh record, up to the
// configured attempt limit. An error from mutate aborts without writing.
func (s *ConfigStore) UpdateUser(ctx context.Context, userID string, mutate func(*UserConfig) error) (UserConfig, error) {
	if s == nil || s.documents == nil {
		return UserConfig{}, fmt.Errorf("core: config store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return UserConfig{}, fmt.Errorf("core: user id is required")
	}
	if mutate == nil {
		return UserConfig{}, fmt.Errorf("core: user mutation is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		current, err := s.loadDocument(ctx)
		if err != nil {
			return UserConfig{}, err
		}
		user, ok := current.Value[userID]
		if !ok {
			user = UserConfig{}
		}
		user.UserID = userID
		if err := mutate(&user); err != nil {
			return UserConfig{}, err
		}
		user.UserID = userID

		next := current.Value.Clone()
		next[userID] = user
		saved, err := s.documents.CompareAndPut(ctx, ConfigDocument{ID: s.documentID, Value: next}, current.Version)
		if err != nil {
			if !IsVersionConflict(err) {
				return UserConfig{}, err
			}
			lastErr = err
			if invalidateErr := s.cache.Invalidate(ctx, s.documentID); invalidateErr != nil {
				return UserConfig{}, invalidateErr
			}
			continue
		}
		if err := s.remember(ctx, saved); err != nil {
			return UserConfig{}, err
		}
		return user, nil
	}
	return UserConfig{}, lastErr
}

func (s *ConfigStore) loadDocument(ctx context.Context) (ConfigDocument, error) {
	if s == nil || s.documents == nil {
		return ConfigDocument{}, fmt.Errorf("core: config store is not configured")
	}
	return s.cache.GetOrLoad(ctx, s.documentID, s.fetchDocument)
}

func (s *ConfigStore) fetchDocument(ctx context.Context) (ConfigDocument, error) {
	doc, found, err := s.documents.Get(ctx, s.documentID)
	if err != nil {
		return ConfigDocument{}, err
	}
	if found && doc.Value != nil {
		return doc.Clone(), nil
	}

	created, err := s.documents.CompareAndPut(ctx, ConfigDocument{ID: s.documentID, Value: StoredConfig{}}, doc.Version)
	if err == nil {
		return created.Clone(), nil
	}
	if !IsVersionConflict(err) {
		return ConfigDocument{}, err
	}
	// Another writer initialized the document first.
	doc, found, err = s.documents.Get(ctx, s.documentID)
	if err != nil {
		return ConfigDocument{}, err
	}
	if !found {
		return ConfigDocument{}, NewVersionConflictError(s.documentID, 0)
	}
	return doc.Clone(), nil
}

func (s *ConfigStore) remember(ctx context.Context, doc ConfigDocument) error {
	if err := s.cache.Invalidate(ctx, s.documentID); err != nil {
		return err
	}
	_, err := s.cache.GetOrLoad(ctx, s.documentID, func(context.Context) (ConfigDocument, error) {
		return doc.Clone(), nil
	})
	return err
}
