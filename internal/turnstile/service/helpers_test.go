package service_test

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/BrandonDHaskell/Turnstile/internal/clock"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/service"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/store/memory"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

const (
	testTerminal = "kiosk-1"
	testSecret   = "s3cret"
	testTenant   = "t1"
	testBranch   = "b1"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func silentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type fixture struct {
	clk    *clock.FakeClock
	access *memory.AccessStore
	terms  *memory.TerminalStore
	reg    *service.TerminalRegistry
	svc    *service.AccessService
}

func newFixture(t *testing.T, mode types.AssignMode) *fixture {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testSecret), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	f := &fixture{
		clk:    clock.Fake(testNow),
		access: memory.NewAccessStore(),
		terms: memory.NewTerminalStore(types.Terminal{
			ID:         testTerminal,
			TenantID:   testTenant,
			BranchID:   testBranch,
			SecretHash: hash,
			AssignMode: mode,
		}),
	}
	f.reg = service.NewTerminalRegistry(f.terms, f.clk)
	f.svc = service.NewAccessService(f.reg, f.access, service.AccessConfig{
		Clock:  f.clk,
		Logger: silentLogger(),
	})
	return f
}

// terminal authenticates the fixture kiosk the way the HTTP layer does.
func (f *fixture) terminal(t *testing.T) types.Terminal {
	t.Helper()
	term, err := f.reg.Authenticate(context.Background(), testTerminal, testSecret)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	return term
}

func (f *fixture) check(t *testing.T, rawUID string) types.CheckResponse {
	t.Helper()
	resp, err := f.svc.Check(context.Background(), f.terminal(t), rawUID)
	if err != nil {
		t.Fatalf("Check(%q): %v", rawUID, err)
	}
	return resp
}

// member seeds a member whose current subscription has the given status
// and ends at testNow+endIn. A non-empty uid binds an ACTIVE card.
func (f *fixture) member(id, name, uid string, status types.SubscriptionStatus, endIn time.Duration) {
	f.access.PutMember(types.Member{ID: id, TenantID: testTenant, BranchID: testBranch, Name: name})
	if uid != "" {
		f.access.PutCard(types.Card{UID: uid, TenantID: testTenant, BranchID: testBranch, MemberID: id, Status: types.CardActive})
	}
	if status != "" {
		end := testNow.Add(endIn)
		f.access.AddSubscription(types.Subscription{
			ID:        "sub_" + id,
			MemberID:  id,
			BranchID:  testBranch,
			Status:    status,
			StartDate: end.AddDate(0, -1, 0),
			EndDate:   end,
			CreatedAt: testNow.AddDate(0, -1, 0),
		})
	}
}

func (f *fixture) inventoryCard(uid string) {
	f.access.PutCard(types.Card{UID: uid, TenantID: testTenant, BranchID: testBranch, Status: types.CardActive})
}

const day = 24 * time.Hour
