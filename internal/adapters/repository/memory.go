package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/kvetinski/bank/internal/domain"
	"github.com/kvetinski/bank/internal/telemetry"
)

// Memory keeps accounts in process. Ids start at 1 and are never reused.
type Memory struct {
	mu       sync.RWMutex
	nextID   int64
	accounts map[int64]domain.Account
	metrics  *telemetry.Metrics
}

func NewMemory(metrics *telemetry.Metrics) *Memory {
	return &Memory{
		nextID:   1,
		accounts: make(map[int64]domain.Account),
		metrics:  metrics,
	}
}

func (r *Memory) Save(ctx context.Context, acc domain.Account) (out domain.Account, err error) {
	method := "update"
	if acc.ID == 0 {
		method = "insert"
	}
	_, c := startCall(ctx, r.metrics, "memory", method)
	defer func() { c.end(err) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	if acc.ID == 0 {
		acc.ID = r.nextID
		r.nextID++
	} else if _, ok := r.accounts[acc.ID]; !ok {
		err = domain.ErrAccountNotFound
		return domain.Account{}, err
	}

	r.accounts[acc.ID] = acc
	return acc, nil
}

func (r *Memory) FindByID(ctx context.Context, id int64) (out domain.Account, err error) {
	_, c := startCall(ctx, r.metrics, "memory", "find_by_id")
	defer func() { c.end(err) }()

	r.mu.RLock()
	defer r.mu.RUnlock()

	acc, ok := r.accounts[id]
	if !ok {
		err = domain.ErrAccountNotFound
		return domain.Account{}, err
	}

	return acc, nil
}

func (r *Memory) FindAll(ctx context.Context) (out []domain.Account, err error) {
	_, c := startCall(ctx, r.metrics, "memory", "find_all")
	defer func() { c.end(err) }()

	r.mu.RLock()
	out = make([]domain.Account, 0, len(r.accounts))
	for _, acc := range r.accounts {
		out = append(out, acc)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Memory) DeleteByID(ctx context.Context, id int64) (err error) {
	_, c := startCall(ctx, r.metrics, "memory", "delete")
	defer func() { c.end(err) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[id]; !ok {
		err = domain.ErrAccountNotFound
		return err
	}

	delete(r.accounts, id)
	return nil
}
