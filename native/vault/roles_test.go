package vault

import (
	"errors"
	"testing"

	"refvault/storage"
)

func newTestRoles() *Roles {
	return NewRoles(storage.NewKV(storage.NewMemDB()))
}

func TestRolesGrantRevokeHas(t *testing.T) {
	roles := newTestRoles()
	account := Account{0x01}
	if roles.Has(RoleAdmin, account) {
		t.Fatalf("fresh registry must be empty")
	}
	if err := roles.Grant(RoleAdmin, account); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if !roles.Has(RoleAdmin, account) {
		t.Fatalf("expected membership after grant")
	}
	if roles.Has(RolePauser, account) {
		t.Fatalf("roles must not bleed into each other")
	}
	if err := roles.Revoke(RoleAdmin, account); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if roles.Has(RoleAdmin, account) {
		t.Fatalf("expected membership removed")
	}
}

func TestRolesGrantIsIdempotent(t *testing.T) {
	roles := newTestRoles()
	account := Account{0x02}
	for i := 0; i < 3; i++ {
		if err := roles.Grant(RoleTreasurer, account); err != nil {
			t.Fatalf("grant %d: %v", i, err)
		}
	}
	members, err := roles.Members(RoleTreasurer)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("expected a single member, got %d", len(members))
	}
}

func TestRolesMembersSortedDeterministically(t *testing.T) {
	roles := newTestRoles()
	for _, account := range []Account{{0x30}, {0x10}, {0x20}} {
		if err := roles.Grant(RolePauser, account); err != nil {
			t.Fatalf("grant: %v", err)
		}
	}
	members, err := roles.Members(RolePauser)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(members))
	}
	if members[0] != (Account{0x10}) || members[1] != (Account{0x20}) || members[2] != (Account{0x30}) {
		t.Fatalf("members not sorted: %v", members)
	}
}

func TestRolesRejectUnknownRoleAndZeroAccount(t *testing.T) {
	roles := newTestRoles()
	if err := roles.Grant("superuser", Account{0x01}); !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("expected unknown role rejection, got %v", err)
	}
	if err := roles.Grant(RoleAdmin, Account{}); !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("expected zero account rejection, got %v", err)
	}
	if roles.Has("superuser", Account{0x01}) {
		t.Fatalf("unknown role must report false")
	}
}
