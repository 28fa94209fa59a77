package signup

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/marocdeals/marocdeals_api/internal/account"
	"github.com/marocdeals/marocdeals_api/internal/verification"
)

// twoInstances builds two flows sharing Redis and an account repository, the way
// two replicas behind a load balancer would.
func twoInstances(t *testing.T) (*Flow, *Flow, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	repo := account.NewMemoryRepository()
	gen := verification.SequenceGenerator("482913")
	build := func() *Flow {
		store := verification.NewRedisStore(client, verification.Options{Generate: gen})
		accounts := account.NewService(repo).WithHashCost(bcrypt.MinCost)
		return NewFlow(store, &fakeNotifier{}, accounts, Options{Grants: NewRedisGrants(client)})
	}
	return build(), build(), mr
}

func TestGrantIsSharedAcrossInstances(t *testing.T) {
	a, b, _ := twoInstances(t)
	ctx := context.Background()

	if err := a.RequestCode(ctx, "sara@x.com"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := a.SubmitCode(ctx, "sara@x.com", "482913"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := b.CreateAccount(ctx, "sara@x.com", Credentials{Username: "sara", Password: "s3cret!"}); err != nil {
		t.Fatalf("create on other instance: %v", err)
	}
	if _, err := b.CreateAccount(ctx, "sara@x.com", Credentials{Username: "sara", Password: "s3cret!"}); !errors.Is(err, ErrNotVerified) {
		t.Fatalf("grant must be consumed, got %v", err)
	}
	if _, err := a.CreateAccount(ctx, "sara@x.com", Credentials{Username: "sara", Password: "s3cret!"}); !errors.Is(err, account.ErrAlreadyExists) {
		t.Fatalf("stale local grant must not create a second account, got %v", err)
	}
}

func TestSharedGrantExpires(t *testing.T) {
	a, b, mr := twoInstances(t)
	ctx := context.Background()

	a.RequestCode(ctx, "sara@x.com")
	a.SubmitCode(ctx, "sara@x.com", "482913")
	mr.FastForward(16 * time.Minute)

	if _, err := b.CreateAccount(ctx, "sara@x.com", Credentials{Username: "sara", Password: "s3cret!"}); !errors.Is(err, ErrNotVerified) {
		t.Fatalf("expected expired grant, got %v", err)
	}
}

func TestNewCodeRequestRevokesSharedGrant(t *testing.T) {
	a, b, _ := twoInstances(t)
	ctx := context.Background()

	a.RequestCode(ctx, "sara@x.com")
	a.SubmitCode(ctx, "sara@x.com", "482913")
	b.RequestCode(ctx, "sara@x.com")

	if _, err := b.CreateAccount(ctx, "sara@x.com", Credentials{Username: "sara", Password: "s3cret!"}); !errors.Is(err, ErrNotVerified) {
		t.Fatalf("expected grant revoked by new request, got %v", err)
	}
}

func TestGrantLookupFailureIsUnavailable(t *testing.T) {
	_, b, mr := twoInstances(t)
	mr.Close()

	_, err := b.CreateAccount(context.Background(), "sara@x.com", Credentials{Username: "sara", Password: "s3cret!"})
	if !errors.Is(err, verification.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
