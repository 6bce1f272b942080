package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/windfall-labs/windfall-raffle/internal/model"
	"github.com/windfall-labs/windfall-raffle/internal/repository"
)

// 内存仓储实现，语义与数据库实现一致 (状态守卫、容量守卫、幂等标记)

type memRaffleRepo struct {
	mu      sync.Mutex
	raffles map[int64]*model.Raffle
}

func newMemRaffleRepo() *memRaffleRepo {
	return &memRaffleRepo{raffles: make(map[int64]*model.Raffle)}
}

func (r *memRaffleRepo) Create(ctx context.Context, raffle *model.Raffle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.raffles[raffle.ID]; ok {
		return repository.ErrRaffleAlreadyExists
	}
	clone := *raffle
	r.raffles[raffle.ID] = &clone
	return nil
}

func (r *memRaffleRepo) GetByID(ctx context.Context, id int64) (*model.Raffle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raffle, ok := r.raffles[id]
	if !ok {
		return nil, repository.ErrRaffleNotFound
	}
	clone := *raffle
	return &clone, nil
}

func (r *memRaffleRepo) UpdateStatus(ctx context.Context, id int64, oldStatus, newStatus model.RaffleStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	raffle, ok := r.raffles[id]
	if !ok || raffle.Status != oldStatus {
		return repository.ErrStatusConflict
	}
	raffle.Status = newStatus
	return nil
}

func (r *memRaffleRepo) AddEntries(ctx context.Context, id int64, entryDelta int64, amountDelta string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	raffle, ok := r.raffles[id]
	if !ok || raffle.Status != model.RaffleStatusAccepted ||
		raffle.EntriesLength+entryDelta > raffle.MaxEntries {
		return repository.ErrCapacityExceeded
	}
	delta, err := decimal.NewFromString(amountDelta)
	if err != nil {
		return err
	}
	raffle.EntriesLength += entryDelta
	raffle.AmountRaised = raffle.AmountRaised.Add(delta)
	return nil
}

func (r *memRaffleRepo) MarkSettled(ctx context.Context, id int64, winner string, randomNumber int64, terminal model.RaffleStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	raffle, ok := r.raffles[id]
	if !ok || raffle.Status != model.RaffleStatusClosingRequested {
		return repository.ErrStatusConflict
	}
	raffle.Status = terminal
	raffle.Winner = winner
	raffle.RandomNumber = randomNumber
	raffle.SettledAt = time.Now().UnixMilli()
	return nil
}

func (r *memRaffleRepo) SetEarlyCashout(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	raffle, ok := r.raffles[id]
	if !ok {
		return repository.ErrRaffleNotFound
	}
	raffle.EarlyCashout = true
	return nil
}

func (r *memRaffleRepo) ListByStatus(ctx context.Context, status model.RaffleStatus, limit int) ([]*model.Raffle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Raffle
	for _, raffle := range r.raffles {
		if raffle.Status == status && len(out) < limit {
			clone := *raffle
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memRaffleRepo) ListExpired(ctx context.Context, status model.RaffleStatus, expireBefore int64, limit int) ([]*model.Raffle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Raffle
	for _, raffle := range r.raffles {
		if raffle.Status == status && raffle.ExpiresAt < expireBefore && len(out) < limit {
			clone := *raffle
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memRaffleRepo) ListBySeller(ctx context.Context, seller string, page *repository.Pagination) ([]*model.Raffle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Raffle
	for _, raffle := range r.raffles {
		if raffle.Seller == seller {
			clone := *raffle
			out = append(out, &clone)
		}
	}
	return out, nil
}

type memEntryRepo struct {
	mu      sync.Mutex
	entries map[int64][]*model.EntryRecord
}

func newMemEntryRepo() *memEntryRepo {
	return &memEntryRepo{entries: make(map[int64][]*model.EntryRecord)}
}

func (r *memEntryRepo) Append(ctx context.Context, entry *model.EntryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *entry
	r.entries[entry.RaffleID] = append(r.entries[entry.RaffleID], &clone)
	return nil
}

func (r *memEntryRepo) ListByRaffle(ctx context.Context, raffleID int64) ([]*model.EntryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.EntryRecord(nil), r.entries[raffleID]...), nil
}

func (r *memEntryRepo) ListByBuyer(ctx context.Context, raffleID int64, buyer string) ([]*model.EntryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.EntryRecord
	for _, e := range r.entries[raffleID] {
		if e.Buyer == buyer {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memEntryRepo) GetLast(ctx context.Context, raffleID int64) (*model.EntryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.entries[raffleID]
	if len(list) == 0 {
		return nil, repository.ErrEntryNotFound
	}
	clone := *list[len(list)-1]
	return &clone, nil
}

func (r *memEntryRepo) CountByRaffle(ctx context.Context, raffleID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.entries[raffleID])), nil
}

type memClaimRepo struct {
	mu     sync.Mutex
	claims map[string]*model.ClaimAccount
}

func newMemClaimRepo() *memClaimRepo {
	return &memClaimRepo{claims: make(map[string]*model.ClaimAccount)}
}

func claimKey(raffleID int64, buyer string) string {
	return fmt.Sprintf("%d:%s", raffleID, buyer)
}

func (r *memClaimRepo) AddTo(ctx context.Context, raffleID int64, buyer string, entries int64, amountSpent string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	amount, err := decimal.NewFromString(amountSpent)
	if err != nil {
		return err
	}
	key := claimKey(raffleID, buyer)
	if account, ok := r.claims[key]; ok {
		account.Entries += entries
		account.AmountSpent = account.AmountSpent.Add(amount)
		return nil
	}
	r.claims[key] = &model.ClaimAccount{
		RaffleID:    raffleID,
		Buyer:       buyer,
		Entries:     entries,
		AmountSpent: amount,
	}
	return nil
}

func (r *memClaimRepo) Get(ctx context.Context, raffleID int64, buyer string) (*model.ClaimAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.claims[claimKey(raffleID, buyer)]
	if !ok {
		return nil, repository.ErrClaimNotFound
	}
	clone := *account
	return &clone, nil
}

func (r *memClaimRepo) ListByRaffle(ctx context.Context, raffleID int64) ([]*model.ClaimAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ClaimAccount
	for _, account := range r.claims {
		if account.RaffleID == raffleID {
			clone := *account
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memClaimRepo) MarkClaimed(ctx context.Context, raffleID int64, buyer string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.claims[claimKey(raffleID, buyer)]
	if !ok {
		return repository.ErrClaimNotFound
	}
	if account.Claimed {
		return repository.ErrClaimAlreadyClaimed
	}
	account.Claimed = true
	return nil
}

type memRandomRepo struct {
	mu       sync.Mutex
	requests map[string]*model.RandomnessRequest
	order    []string
}

func newMemRandomRepo() *memRandomRepo {
	return &memRandomRepo{requests: make(map[string]*model.RandomnessRequest)}
}

func (r *memRandomRepo) Create(ctx context.Context, req *model.RandomnessRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *req
	if clone.CreatedAt == 0 {
		clone.CreatedAt = time.Now().UnixMilli()
	}
	r.requests[req.RequestID] = &clone
	r.order = append(r.order, req.RequestID)
	return nil
}

func (r *memRandomRepo) GetByRequestID(ctx context.Context, requestID string) (*model.RandomnessRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[requestID]
	if !ok {
		return nil, repository.ErrRequestNotFound
	}
	clone := *req
	return &clone, nil
}

func (r *memRandomRepo) GetLatestByRaffle(ctx context.Context, raffleID int64) (*model.RandomnessRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.order) - 1; i >= 0; i-- {
		if req := r.requests[r.order[i]]; req.RaffleID == raffleID {
			clone := *req
			return &clone, nil
		}
	}
	return nil, repository.ErrRequestNotFound
}

func (r *memRandomRepo) MarkFulfilled(ctx context.Context, requestID string, rawRandom string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[requestID]
	if !ok {
		return repository.ErrRequestNotFound
	}
	if req.Fulfilled {
		return repository.ErrRequestAlreadyFulfilled
	}
	req.Fulfilled = true
	req.RawRandom = rawRandom
	req.FulfilledAt = time.Now().UnixMilli()
	return nil
}

func (r *memRandomRepo) ListPendingBefore(ctx context.Context, createdBefore int64, limit int) ([]*model.RandomnessRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.RandomnessRequest
	for _, id := range r.order {
		req := r.requests[id]
		if !req.Fulfilled && req.CreatedAt < createdBefore && len(out) < limit {
			clone := *req
			out = append(out, &clone)
		}
	}
	return out, nil
}

// 外部协作方的可编程替身

type custodyCall struct {
	op        string // into / release / recover
	recipient string
	contract  string
	tokenID   string
}

type fakeCustody struct {
	mu         sync.Mutex
	intoErr    error
	releaseErr error
	recoverErr error
	calls      []custodyCall
}

func (c *fakeCustody) TransferInto(ctx context.Context, owner, contract, tokenID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.intoErr != nil {
		return c.intoErr
	}
	c.calls = append(c.calls, custodyCall{op: "into", recipient: owner, contract: contract, tokenID: tokenID})
	return nil
}

func (c *fakeCustody) ReleaseTo(ctx context.Context, recipient, contract, tokenID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.releaseErr != nil {
		return c.releaseErr
	}
	c.calls = append(c.calls, custodyCall{op: "release", recipient: recipient, contract: contract, tokenID: tokenID})
	return nil
}

func (c *fakeCustody) RecoverTo(ctx context.Context, recipient, contract, tokenID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recoverErr != nil {
		return c.recoverErr
	}
	c.calls = append(c.calls, custodyCall{op: "recover", recipient: recipient, contract: contract, tokenID: tokenID})
	return nil
}

type payment struct {
	recipient string
	amount    decimal.Decimal
}

type fakeTransfer struct {
	mu       sync.Mutex
	err      error
	failFor  string // 只让某个收款方失败
	payments []payment
}

func (t *fakeTransfer) Pay(ctx context.Context, recipient string, amount decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	if t.failFor != "" && t.failFor == recipient {
		return fmt.Errorf("transfer rejected for %s", recipient)
	}
	t.payments = append(t.payments, payment{recipient: recipient, amount: amount})
	return nil
}

type fakeOracle struct {
	mu       sync.Mutex
	err      error
	nextID   int
	requests []int64
}

func (o *fakeOracle) RequestRandom(ctx context.Context, raffleID int64, entryCount int64) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return "", o.err
	}
	o.nextID++
	o.requests = append(o.requests, raffleID)
	return fmt.Sprintf("req-%d", o.nextID), nil
}

// inlineLocker 串行测试里直接执行，不做真正的互斥
type inlineLocker struct{}

func (inlineLocker) WithLock(ctx context.Context, raffleID int64, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// inlineTx 内存仓储没有事务语义，直接执行
type inlineTx struct{}

func (inlineTx) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memPublisher struct {
	mu     sync.Mutex
	events []*RaffleEvent
}

func (p *memPublisher) PublishRaffleEvent(ctx context.Context, event *RaffleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *memPublisher) typesSeen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type seqIDGen struct {
	mu   sync.Mutex
	next int64
}

func (g *seqIDGen) Generate() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return g.next, nil
}
