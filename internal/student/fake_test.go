package student

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// memoryRepository mimics the Postgres repository in memory.
type memoryRepository struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]Student
	err    error
	calls  int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{nextID: 1, rows: make(map[int64]Student)}
}

func (m *memoryRepository) List(ctx context.Context) ([]Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, &Error{Kind: Failure, Op: "fetching students", Err: m.err}
	}

	out := make([]Student, 0, len(m.rows))
	for _, s := range m.rows {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memoryRepository) GetByID(ctx context.Context, id int64) (*Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, &Error{Kind: Failure, Op: "fetching student", Err: m.err}
	}

	s, ok := m.rows[id]
	if !ok {
		return nil, &Error{Kind: NotFound, Op: "fetching student"}
	}
	return &s, nil
}

func (m *memoryRepository) emailTaken(email string, except int64) bool {
	for id, s := range m.rows {
		if id != except && s.Email == email {
			return true
		}
	}
	return false
}

func (m *memoryRepository) Create(ctx context.Context, student *Student) (*Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, &Error{Kind: Failure, Op: "creating student", Err: m.err}
	}
	if m.emailTaken(student.Email, 0) {
		return nil, &Error{Kind: DuplicateEmail, Op: "creating student", Err: errors.New("23505")}
	}

	s := *student
	s.ID = m.nextID
	s.CreatedAt = time.Now().UTC()
	s.UpdatedAt = s.CreatedAt
	m.nextID++
	m.rows[s.ID] = s
	return &s, nil
}

func (m *memoryRepository) Update(ctx context.Context, id int64, student *Student) (*Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, &Error{Kind: Failure, Op: "updating student", Err: m.err}
	}

	existing, ok := m.rows[id]
	if !ok {
		return nil, &Error{Kind: NotFound, Op: "updating student"}
	}
	if m.emailTaken(student.Email, id) {
		return nil, &Error{Kind: DuplicateEmail, Op: "updating student", Err: errors.New("23505")}
	}

	s := *student
	s.ID = id
	s.CreatedAt = existing.CreatedAt
	s.UpdatedAt = time.Now().UTC()
	m.rows[id] = s
	return &s, nil
}

func (m *memoryRepository) Delete(ctx context.Context, id int64) (*Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, &Error{Kind: Failure, Op: "deleting student", Err: m.err}
	}

	s, ok := m.rows[id]
	if !ok {
		return nil, &Error{Kind: NotFound, Op: "deleting student"}
	}
	delete(m.rows, id)
	return &s, nil
}

func (m *memoryRepository) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// recordingPublisher keeps published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	keys   []string
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, key)
	p.events = append(p.events, value.(Event))
	return nil
}
