package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/slot-booking/internal/model"
)

// MemoryStore keeps every table in process memory.  Rows are kept in
// insertion order so list calls behave like the MySQL repositories, which
// order by an auto-increment sequence.  It is safe for concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	slots     map[string]model.Slot
	regs      []model.Registration
	archive   []model.ArchiveRecord
	snapshots map[string]model.ConfirmedSnapshot
	mail      []model.MailMessage
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		slots:     make(map[string]model.Slot),
		snapshots: make(map[string]model.ConfirmedSnapshot),
	}
}

// ListSlots returns all slots ordered by ID, which sorts by date then start.
func (m *MemoryStore) ListSlots(ctx context.Context) ([]model.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Slot, 0, len(m.slots))
	for _, s := range m.slots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) FindSlot(ctx context.Context, id string) (model.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.slots[id]
	if !ok {
		return model.Slot{}, ErrNotFound
	}
	return s, nil
}

// InsertSlot adds s unless a slot with the same ID exists.  It reports
// whether a row was created.
func (m *MemoryStore) InsertSlot(ctx context.Context, s model.Slot) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[s.ID]; ok {
		return false, nil
	}
	if s.Status == "" {
		s.Status = model.SlotOpen
	}
	m.slots[s.ID] = s
	return true, nil
}

func (m *MemoryStore) UpdateAggregate(ctx context.Context, id string, confirmed int, filled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return ErrNotFound
	}
	s.ConfirmedCount = confirmed
	s.Status = model.SlotOpen
	if filled {
		s.Status = model.SlotFilled
	}
	m.slots[id] = s
	return nil
}

func (m *MemoryStore) ListRegistrations(ctx context.Context) ([]model.Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Registration, len(m.regs))
	copy(out, m.regs)
	return out, nil
}

// AppendRegistration adds r.  A second live row for the same (email, slot)
// is rejected with ErrConflict.
func (m *MemoryStore) AppendRegistration(ctx context.Context, r model.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.regs {
		if existing.ID == r.ID || (existing.Email == r.Email && existing.SlotID == r.SlotID) {
			return ErrConflict
		}
	}
	m.regs = append(m.regs, r)
	return nil
}

func (m *MemoryStore) UpdateRegistration(ctx context.Context, r model.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.regs {
		if m.regs[i].ID == r.ID {
			m.regs[i] = r
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) DeleteRegistration(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.regs {
		if m.regs[i].ID == id {
			m.regs = append(m.regs[:i], m.regs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) AppendArchive(ctx context.Context, rec model.ArchiveRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archive = append(m.archive, rec)
	return nil
}

func (m *MemoryStore) ListArchive(ctx context.Context) ([]model.ArchiveRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.ArchiveRecord, len(m.archive))
	copy(out, m.archive)
	return out, nil
}

func (m *MemoryStore) MarkRestored(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.archive {
		if m.archive[i].ID == id {
			t := at
			m.archive[i].RestoredAt = &t
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) ListSnapshots(ctx context.Context) ([]model.ConfirmedSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.ConfirmedSnapshot, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotID < out[j].SlotID })
	return out, nil
}

func (m *MemoryStore) UpsertSnapshot(ctx context.Context, s model.ConfirmedSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[s.SlotID] = s
	return nil
}

func (m *MemoryStore) DeleteSnapshot(ctx context.Context, slotID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, slotID)
	return nil
}

func (m *MemoryStore) AppendMail(ctx context.Context, msg model.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mail = append(m.mail, msg)
	return nil
}

// ListPendingMail returns queued messages oldest first.
func (m *MemoryStore) ListPendingMail(ctx context.Context) ([]model.MailMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.MailMessage
	for _, msg := range m.mail {
		if msg.Status == model.MailPending {
			out = append(out, msg)
		}
	}
	return out, nil
}

// ListMail returns every message in the queue, whatever its status.
func (m *MemoryStore) ListMail(ctx context.Context) ([]model.MailMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.MailMessage, len(m.mail))
	copy(out, m.mail)
	return out, nil
}

func (m *MemoryStore) UpdateMail(ctx context.Context, msg model.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.mail {
		if m.mail[i].ID == msg.ID {
			m.mail[i] = msg
			return nil
		}
	}
	return ErrNotFound
}
