package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/optionsledger/internal/domain"
)

// stubStore is an in-memory domain.TxStore. Update only touches rows
// matching every predicate, like the real stores.
type stubStore struct {
	mu       sync.Mutex
	rows     []domain.Row
	nextID   int64
	writes   int
	failOn   string // "insert" or "update" makes that call fail
	onSelect func(s *stubStore)
}

var errStub = errors.New("stub: forced failure")

func newStubStore() *stubStore { return &stubStore{nextID: 1} }

func match(row domain.Row, where []domain.Predicate) bool {
	for _, p := range where {
		if fmt.Sprint(row[p.Column]) != fmt.Sprint(p.Value) {
			return false
		}
	}
	return true
}

func less(a, b any) bool {
	switch av := a.(type) {
	case time.Time:
		bv, _ := b.(time.Time)
		return av.Before(bv)
	case int64:
		bv, _ := b.(int64)
		return av < bv
	default:
		return fmt.Sprint(a) < fmt.Sprint(b)
	}
}

func clone(r domain.Row) domain.Row {
	out := make(domain.Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (s *stubStore) Select(_ context.Context, f domain.Filter) ([]domain.Row, error) {
	s.mu.Lock()
	var out []domain.Row
	for _, r := range s.rows {
		if match(r, f.Where) {
			out = append(out, clone(r))
		}
	}
	hook := s.onSelect
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		for _, o := range f.OrderBy {
			a, b := out[i][o.Column], out[j][o.Column]
			if fmt.Sprint(a) == fmt.Sprint(b) {
				continue
			}
			if o.Desc {
				return less(b, a)
			}
			return less(a, b)
		}
		return false
	})
	if hook != nil {
		hook(s)
	}
	return out, nil
}

func (s *stubStore) Update(_ context.Context, f domain.Filter, patch domain.Patch) (domain.Row, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn == "update" {
		return nil, false, errStub
	}
	for _, r := range s.rows {
		if !match(r, f.Where) {
			continue
		}
		for k, v := range patch {
			r[k] = v
		}
		s.writes++
		return clone(r), true, nil
	}
	return nil, false, nil
}

func (s *stubStore) Insert(_ context.Context, rows []domain.Row) ([]domain.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn == "insert" {
		return nil, errStub
	}
	out := make([]domain.Row, 0, len(rows))
	for _, r := range rows {
		r = clone(r)
		r[domain.ColID] = s.nextID
		s.nextID++
		s.rows = append(s.rows, r)
		s.writes++
		out = append(out, clone(r))
	}
	return out, nil
}

func (s *stubStore) InTx(ctx context.Context, fn func(domain.MovementStore) error) error {
	s.mu.Lock()
	saved := make([]domain.Row, len(s.rows))
	for i, r := range s.rows {
		saved[i] = clone(r)
	}
	savedID, savedWrites := s.nextID, s.writes
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.rows, s.nextID, s.writes = saved, savedID, savedWrites
		s.mu.Unlock()
		return err
	}
	return nil
}

// currentByChain counts current events per chain.
func (s *stubStore) currentByChain() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]int{}
	for _, r := range s.rows {
		if r[domain.ColIsCurrent] == true {
			out[fmt.Sprint(r[domain.ColChainID])]++
		}
	}
	return out
}

type stubAudit struct {
	events []string
}

func (a *stubAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.events = append(a.events, event)
	return nil
}

func (a *stubAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type stubBus struct {
	published [][]byte
	err       error
}

func (b *stubBus) Publish(_ context.Context, _ string, payload []byte) error {
	b.published = append(b.published, payload)
	return b.err
}

func (b *stubBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}
