package services

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnbbuilders/tbnb-faucet/internal/core/domain"
	"github.com/bnbbuilders/tbnb-faucet/internal/core/ports"
)

const (
	testWallet   = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"
	testWindow   = 24 * time.Hour
	testHold     = 5 * time.Minute
	testAmountWei = 300000000000000000
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// memoryCooldowns mirrors the conditional writes of the postgres ledger
type memoryCooldowns struct {
	mu      sync.Mutex
	records map[int64]domain.CooldownRecord
	payouts []domain.Payout
	calls   int
}

func newMemoryCooldowns() *memoryCooldowns {
	return &memoryCooldowns{records: map[int64]domain.CooldownRecord{}}
}

func (m *memoryCooldowns) Reserve(_ context.Context, p ports.ReserveParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	rec, ok := m.records[p.IdentityKey]
	if ok {
		if rec.LastIssuedAt != nil && rec.LastIssuedAt.After(p.IssuedBefore) {
			return false, nil
		}
		if rec.ReservationID != nil && (rec.ReservedAt.After(p.StaleBefore) || rec.PendingTxID != nil) {
			return false, nil
		}
	} else {
		rec = domain.CooldownRecord{IdentityKey: p.IdentityKey, CreatedAt: p.Now}
	}
	id, at := p.ReservationID, p.Now
	rec.Username = p.Username
	rec.ReservationID = &id
	rec.ReservedAt = &at
	rec.PendingTxID = nil
	rec.PendingWallet = nil
	m.records[p.IdentityKey] = rec
	return true, nil
}

func (m *memoryCooldowns) Get(_ context.Context, identityKey int64) (*domain.CooldownRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	rec, ok := m.records[identityKey]
	if !ok {
		return nil, domain.ErrCooldownRecordNotFound
	}
	return &rec, nil
}

func (m *memoryCooldowns) held(res *domain.Reservation) (domain.CooldownRecord, bool) {
	rec, ok := m.records[res.IdentityKey]
	if !ok || rec.ReservationID == nil || *rec.ReservationID != res.ID {
		return rec, false
	}
	return rec, true
}

func (m *memoryCooldowns) MarkSubmitted(_ context.Context, res *domain.Reservation, txID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	rec, ok := m.held(res)
	if !ok {
		return domain.ErrReservationLost
	}
	wallet := res.WalletAddress
	rec.PendingTxID = &txID
	rec.PendingWallet = &wallet
	m.records[res.IdentityKey] = rec
	return nil
}

func (m *memoryCooldowns) Commit(_ context.Context, res *domain.Reservation, payout *domain.Payout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	rec, ok := m.held(res)
	if !ok {
		return domain.ErrReservationLost
	}
	issued, tx := payout.IssuedAt, payout.TxID
	rec.LastIssuedAt = &issued
	rec.LastTxID = &tx
	rec.Username = payout.Username
	rec.ReservationID, rec.ReservedAt, rec.PendingTxID, rec.PendingWallet = nil, nil, nil, nil
	m.records[res.IdentityKey] = rec
	m.payouts = append(m.payouts, *payout)
	return nil
}

func (m *memoryCooldowns) Release(_ context.Context, res *domain.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	rec, ok := m.held(res)
	if !ok {
		return domain.ErrReservationLost
	}
	if rec.LastIssuedAt == nil {
		delete(m.records, res.IdentityKey)
		return nil
	}
	rec.ReservationID, rec.ReservedAt, rec.PendingTxID, rec.PendingWallet = nil, nil, nil, nil
	m.records[res.IdentityKey] = rec
	return nil
}

func (m *memoryCooldowns) StaleReservations(_ context.Context, before time.Time, limit int) ([]domain.CooldownRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CooldownRecord
	for _, rec := range m.records {
		if rec.ReservationID != nil && !rec.ReservedAt.After(before) && len(out) < limit {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memoryCooldowns) Payouts(_ context.Context, identityKey int64, limit int) ([]domain.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Payout
	for i := len(m.payouts) - 1; i >= 0 && len(out) < limit; i-- {
		if m.payouts[i].IdentityKey == identityKey {
			out = append(out, m.payouts[i])
		}
	}
	return out, nil
}

func (m *memoryCooldowns) record(t *testing.T, identityKey int64) (domain.CooldownRecord, bool) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[identityKey]
	return rec, ok
}

func (m *memoryCooldowns) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type fakeGithub struct {
	mu       sync.Mutex
	profiles map[string]domain.GithubProfile
	err      error
	calls    int
}

func newFakeGithub() *fakeGithub {
	return &fakeGithub{profiles: map[string]domain.GithubProfile{}}
}

func (f *fakeGithub) add(login string, id int64, createdAt time.Time, repos int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[strings.ToLower(login)] = domain.GithubProfile{ID: id, Login: login, Type: "User", CreatedAt: createdAt, PublicRepos: repos}
}

func (f *fakeGithub) rename(oldLogin, newLogin string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.profiles[strings.ToLower(oldLogin)]
	delete(f.profiles, strings.ToLower(oldLogin))
	p.Login = newLogin
	f.profiles[strings.ToLower(newLogin)] = p
}

func (f *fakeGithub) GetUser(_ context.Context, username string) (*domain.GithubProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[strings.ToLower(username)]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	return &p, nil
}

type fakeExecutor struct {
	mu          sync.Mutex
	sent        int
	fail        error
	unconfirmed bool
	statuses    map[string]ports.TransferStatus
	calls       int
	started     chan struct{}
	proceed     chan struct{}
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{statuses: map[string]ports.TransferStatus{}}
}

func (f *fakeExecutor) Transfer(ctx context.Context, _ string, intent ports.IntentFunc) (string, error) {
	f.mu.Lock()
	f.calls++
	f.sent++
	txID := fmt.Sprintf("0x%064x", f.sent)
	fail, unconfirmed, started, proceed := f.fail, f.unconfirmed, f.started, f.proceed
	f.mu.Unlock()

	if err := intent(ctx, txID); err != nil {
		return "", &domain.ExecutionError{Cause: err}
	}
	if started != nil {
		close(started)
		<-proceed
	}
	if fail != nil {
		return "", &domain.ExecutionError{TxID: txID, Cause: fail}
	}
	if unconfirmed {
		return "", &domain.ExecutionError{TxID: txID, Cause: fmt.Errorf("%w: receipt timeout", domain.ErrPayoutUnconfirmed)}
	}
	return txID, nil
}

func (f *fakeExecutor) TransferStatus(_ context.Context, txID string) (ports.TransferStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[txID], nil
}

func (f *fakeExecutor) Amount() *big.Int {
	return big.NewInt(testAmountWei)
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type harness struct {
	clock  *fakeClock
	github *fakeGithub
	repo   *memoryCooldowns
	exec   *fakeExecutor
	svc    *distribution
}

func newHarness() *harness {
	h := &harness{
		clock:  newFakeClock(),
		github: newFakeGithub(),
		repo:   newMemoryCooldowns(),
		exec:   newFakeExecutor(),
	}
	v := NewVerifier(h.github, VerificationPolicy{MinAccountAgeDays: 30, MinPublicRepos: 1})
	v.now = h.clock.Now
	g := NewGate(h.repo, GateConfig{CooldownWindow: testWindow, HoldTimeout: testHold})
	h.svc = NewDistribution(v, g, h.exec, testHold)
	h.svc.now = h.clock.Now
	return h
}

func (h *harness) daysAgo(days int) time.Time {
	return h.clock.Now().Add(-time.Duration(days) * 24 * time.Hour)
}

func (h *harness) issue(username string) *domain.DistributionOutcome {
	return h.svc.Issue(context.Background(), &domain.DistributionRequest{
		GithubUsername: username,
		WalletAddress:  testWallet,
	})
}
