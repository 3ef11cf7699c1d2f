// Package taskstore keeps tasks encrypted at rest. Each task is serialized,
// sealed under the vault key with its id as associated data, and written to a
// blobstore.Store. Reads reverse the pipeline and surface every decrypt or
// decode failure to the caller.
package taskstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Jayphen/flowsync/internal/blobstore"
	"github.com/Jayphen/flowsync/internal/keyprovider"
	"github.com/Jayphen/flowsync/internal/logging"
	"github.com/Jayphen/flowsync/internal/types"
	"github.com/Jayphen/flowsync/internal/vault"
)

var (
	// ErrTaskNotFound is returned when no record exists for a task id.
	ErrTaskNotFound = errors.New("task not found")

	// ErrEmptyID is returned when a task has no id.
	ErrEmptyID = errors.New("task id must not be empty")
)

// Filter specifies criteria for listing tasks. A nil filter or an empty
// field matches everything.
type Filter struct {
	Status   []types.TaskStatus
	Priority []types.TaskPriority
	Limit    int
}

// Matches reports whether t passes the filter.
func (f *Filter) Matches(t types.Task) bool {
	if f == nil {
		return true
	}
	if len(f.Status) > 0 && !containsStatus(f.Status, t.Status) {
		return false
	}
	if len(f.Priority) > 0 && !containsPriority(f.Priority, t.Priority) {
		return false
	}
	return true
}

// Update contains fields to change on a task. Nil fields are left alone.
type Update struct {
	Title       *string
	Description *string
	Status      *types.TaskStatus
	Priority    *types.TaskPriority
	Insights    *types.AIInsights
	// ClearDescription removes the description entirely.
	ClearDescription bool
}

// Store is an encrypted task store for a single vault.
type Store struct {
	blobs   blobstore.Store
	keys    keyprovider.Provider
	vaultID string
	sealer  *vault.Sealer
	log     *logging.Logger

	// mu serializes read-modify-write cycles within the process.
	mu sync.Mutex
}

// New creates a store for vaultID backed by blobs. Keys are fetched from
// keys on every operation and wiped afterwards.
func New(blobs blobstore.Store, keys keyprovider.Provider, vaultID string) *Store {
	return &Store{
		blobs:   blobs,
		keys:    keys,
		vaultID: vaultID,
		sealer:  vault.New(),
		log:     logging.WithVault(vaultID),
	}
}

// VaultID returns the vault this store is bound to.
func (s *Store) VaultID() string {
	return s.vaultID
}

// Put stores t, replacing any existing record with the same id.
func (s *Store) Put(ctx context.Context, t types.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(ctx, t)
}

func (s *Store) put(ctx context.Context, t types.Task) error {
	if t.ID == "" {
		return ErrEmptyID
	}

	key, err := s.keys.GetKey(ctx, s.vaultID)
	if err != nil {
		return fmt.Errorf("failed to get key: %w", err)
	}
	defer key.Zero()

	return s.putWithKey(ctx, t, key)
}

func (s *Store) putWithKey(ctx context.Context, t types.Task, key vault.Key) error {
	if t.ID == "" {
		return ErrEmptyID
	}

	payload, err := types.MarshalTask(t)
	if err != nil {
		return fmt.Errorf("failed to encode task %s: %w", t.ID, err)
	}
	defer clear(payload)

	blob, err := s.sealer.EncryptWithAD(payload, recordAD(t.ID), key)
	if err != nil {
		return fmt.Errorf("failed to encrypt task %s: %w", t.ID, err)
	}

	if err := s.blobs.Put(ctx, t.ID, blob); err != nil {
		return fmt.Errorf("failed to store task %s: %w", t.ID, err)
	}

	s.log.WithTaskID(t.ID).Debug("task stored")
	return nil
}

// Get loads and decrypts the task with the given id.
func (s *Store) Get(ctx context.Context, id string) (types.Task, error) {
	key, err := s.keys.GetKey(ctx, s.vaultID)
	if err != nil {
		return types.Task{}, fmt.Errorf("failed to get key: %w", err)
	}
	defer key.Zero()

	return s.load(ctx, id, key)
}

func (s *Store) load(ctx context.Context, id string, key vault.Key) (types.Task, error) {
	blob, err := s.blobs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return types.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		}
		return types.Task{}, fmt.Errorf("failed to read task %s: %w", id, err)
	}

	payload, err := s.sealer.DecryptWithAD(blob, recordAD(id), key)
	if err != nil {
		s.log.WithTaskID(id).WithError(err).Warn("task record failed to open")
		return types.Task{}, fmt.Errorf("task %s: %w", id, err)
	}
	defer clear(payload)

	t, err := types.UnmarshalTask(payload)
	if err != nil {
		s.log.WithTaskID(id).WithError(err).Warn("task record failed to decode")
		return types.Task{}, fmt.Errorf("task %s: %w", id, err)
	}
	if t.ID != id {
		return types.Task{}, fmt.Errorf("task %s: %w: stored id %q", id, types.ErrMalformedData, t.ID)
	}
	return t, nil
}

// Delete removes the task with the given id.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.blobs.Delete(ctx, id); err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		}
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}

	s.log.WithTaskID(id).Debug("task deleted")
	return nil
}

// List returns the tasks matching filter in id order. A record that fails
// to decrypt or decode aborts the listing with that error.
func (s *Store) List(ctx context.Context, filter *Filter) ([]types.Task, error) {
	ids, err := s.blobs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	key, err := s.keys.GetKey(ctx, s.vaultID)
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
	defer key.Zero()

	var tasks []types.Task
	for _, id := range ids {
		t, err := s.load(ctx, id, key)
		if err != nil {
			// Deleted between List and Get.
			if errors.Is(err, ErrTaskNotFound) {
				continue
			}
			return nil, err
		}
		if !filter.Matches(t) {
			continue
		}
		tasks = append(tasks, t)
		if filter != nil && filter.Limit > 0 && len(tasks) >= filter.Limit {
			break
		}
	}

	s.log.WithField("count", len(tasks)).Debug("tasks listed")
	return tasks, nil
}

// Update applies u to the task with the given id and returns the result.
// The id itself cannot change.
func (s *Store) Update(ctx context.Context, id string, u Update) (types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.Get(ctx, id)
	if err != nil {
		return types.Task{}, err
	}

	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.ClearDescription {
		t.Description = nil
	}
	if u.Description != nil {
		d := *u.Description
		t.Description = &d
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.Insights != nil {
		in := u.Insights.Clone()
		t.AIInsights = &in
	}

	if err := s.put(ctx, t); err != nil {
		return types.Task{}, err
	}
	return t, nil
}

// SetInsights attaches insights to the task with the given id.
func (s *Store) SetInsights(ctx context.Context, id string, insights types.AIInsights) (types.Task, error) {
	return s.Update(ctx, id, Update{Insights: &insights})
}

// Export returns every task in the vault sealed into a single blob.
func (s *Store) Export(ctx context.Context) ([]byte, error) {
	tasks, err := s.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []types.Task{}
	}

	payload, err := types.MarshalTasks(tasks)
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	defer clear(payload)

	key, err := s.keys.GetKey(ctx, s.vaultID)
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
	defer key.Zero()

	blob, err := s.sealer.EncryptWithAD(payload, s.exportAD(), key)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt export: %w", err)
	}

	s.log.WithField("count", len(tasks)).Info("vault exported")
	return blob, nil
}

// Import restores tasks from a blob produced by Export on the same vault.
// Existing tasks with the same ids are replaced. It returns the number of
// tasks written. The key is fetched once for the whole batch.
func (s *Store) Import(ctx context.Context, blob []byte) (int, error) {
	key, err := s.keys.GetKey(ctx, s.vaultID)
	if err != nil {
		return 0, fmt.Errorf("failed to get key: %w", err)
	}
	defer key.Zero()

	payload, err := s.sealer.DecryptWithAD(blob, s.exportAD(), key)
	if err != nil {
		return 0, fmt.Errorf("export blob: %w", err)
	}
	defer clear(payload)

	tasks, err := types.UnmarshalTasks(payload)
	if err != nil {
		return 0, fmt.Errorf("export blob: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range tasks {
		if err := s.putWithKey(ctx, t, key); err != nil {
			s.log.WithError(err).WithField("written", i).Error("import aborted")
			return i, err
		}
	}

	s.log.WithField("count", len(tasks)).Info("vault imported")
	return len(tasks), nil
}

func (s *Store) exportAD() []byte {
	return []byte("export:" + s.vaultID)
}

func recordAD(id string) []byte {
	return []byte(id)
}

func containsStatus(list []types.TaskStatus, s types.TaskStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsPriority(list []types.TaskPriority, p types.TaskPriority) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}
