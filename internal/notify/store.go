package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"libreserve/realtime-core/internal/localstore"
	"libreserve/realtime-core/internal/models"

	"github.com/google/uuid"
)

var ErrNotificationNotFound = errors.New("notification not found")

type AddInput struct {
	Type        string
	Title       string
	Message     string
	ActionURL   string
	ActionText  string
	RelatedKind string
	RelatedID   string
}

type Options struct {
	Alert func(models.Notification)
	Now   func() time.Time
}

// Store keeps the per-user notification log: an in-memory working set at
// index 0 = newest, mirrored to the durable local store on every mutation.
type Store struct {
	mu     sync.Mutex
	userID string
	local  localstore.Store
	alert  func(models.Notification)
	now    func() time.Time
	log    []models.Notification
}

// Open rehydrates the user's log from the durable store before returning,
// so no mutation can run ahead of rehydration and clobber persisted entries.
func Open(ctx context.Context, userID string, local localstore.Store, opts Options) (*Store, error) {
	s := &Store{
		userID: userID,
		local:  local,
		alert:  opts.Alert,
		now:    opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	log, err := local.LoadNotifications(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.log = log
	return s, nil
}

func (s *Store) Add(ctx context.Context, input AddInput) (models.Notification, error) {
	notifType := input.Type
	if notifType == "" {
		notifType = models.NotifyInfo
	}
	n := models.Notification{
		ID:          uuid.NewString(),
		Type:        notifType,
		Title:       input.Title,
		Message:     input.Message,
		Timestamp:   s.now().UTC(),
		ActionURL:   input.ActionURL,
		ActionText:  input.ActionText,
		RelatedKind: input.RelatedKind,
		RelatedID:   input.RelatedID,
	}

	s.mu.Lock()
	s.log = append([]models.Notification{n}, s.log...)
	err := s.persist(ctx)
	s.mu.Unlock()

	if s.alert != nil {
		s.alert(n)
	}
	return n, err
}

// Ingest prepends a server-minted record keeping its id, so the same logical
// notification arriving twice is stored once. It reports whether the record
// was new.
func (s *Store) Ingest(ctx context.Context, n models.Notification) (bool, error) {
	s.mu.Lock()
	for i := range s.log {
		if s.log[i].ID == n.ID {
			s.mu.Unlock()
			return false, nil
		}
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = s.now().UTC()
	}
	s.log = append([]models.Notification{n}, s.log...)
	err := s.persist(ctx)
	s.mu.Unlock()

	if s.alert != nil {
		s.alert(n)
	}
	return true, err
}

func (s *Store) MarkRead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.log {
		if s.log[i].ID == id {
			s.log[i].Read = true
			return s.persist(ctx)
		}
	}
	return ErrNotificationNotFound
}

func (s *Store) MarkAllRead(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for i := range s.log {
		if !s.log[i].Read {
			s.log[i].Read = true
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.persist(ctx)
}

func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.log {
		if s.log[i].ID == id {
			s.log = append(s.log[:i], s.log[i+1:]...)
			return s.persist(ctx)
		}
	}
	return ErrNotificationNotFound
}

func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = nil
	return s.persist(ctx)
}

func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for i := range s.log {
		if !s.log[i].Read {
			count++
		}
	}
	return count
}

func (s *Store) List() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notification, len(s.log))
	copy(out, s.log)
	return out
}

// ReloadExternal merges records appended to the durable store by another
// execution context. Ids already in memory keep their in-memory state; unseen
// ids are merged exactly once, ahead of the current log in their stored order.
// It returns the number of merged records.
func (s *Store) ReloadExternal(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.local.LoadNotifications(ctx, s.userID)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool, len(s.log))
	for i := range s.log {
		seen[s.log[i].ID] = true
	}

	var incoming []models.Notification
	for _, n := range stored {
		if !seen[n.ID] {
			incoming = append(incoming, n)
		}
	}
	if len(incoming) == 0 {
		return 0, nil
	}

	s.log = append(incoming, s.log...)
	return len(incoming), s.persist(ctx)
}

// PruneOlderThan removes records older than the given age and returns how
// many were removed.
func (s *Store) PruneOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := s.now().Add(-age)

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.log[:0:0]
	for _, n := range s.log {
		if n.Timestamp.After(cutoff) {
			kept = append(kept, n)
		}
	}
	removed := len(s.log) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	s.log = kept
	return removed, s.persist(ctx)
}

// persist mirrors the full log; callers hold s.mu. A storage failure is
// reported to the caller while the in-memory mutation stays applied.
func (s *Store) persist(ctx context.Context) error {
	return s.local.SaveNotifications(ctx, s.userID, s.log)
}
