package vault

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Role names recognised by the engine. Multiple holders per role are
// permitted.
const (
	RoleAdmin     = "admin"
	RolePauser    = "pauser"
	RoleTreasurer = "treasurer"
)

var rolePrefix = []byte("vault/role/")

type storedRoleMembers struct {
	Members [][]byte
}

// Roles maps role names to member sets persisted in storage.
type Roles struct {
	store Storage
}

// NewRoles constructs a role registry bound to the provided storage backend.
func NewRoles(store Storage) *Roles {
	return &Roles{store: store}
}

func validRole(role string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(role))
	switch trimmed {
	case RoleAdmin, RolePauser, RoleTreasurer:
		return trimmed, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidParameters, role)
}

// Grant associates an account with the specified role. Duplicate assignments
// are ignored while the stored list remains sorted for determinism.
func (r *Roles) Grant(role string, account Account) error {
	if r == nil || r.store == nil {
		return fmt.Errorf("vault: role registry not initialised")
	}
	name, err := validRole(role)
	if err != nil {
		return err
	}
	if account.IsZero() {
		return fmt.Errorf("%w: account must not be zero", ErrInvalidParameters)
	}
	members, err := r.members(name)
	if err != nil {
		return err
	}
	for _, existing := range members {
		if existing == account {
			return nil
		}
	}
	members = append(members, account)
	sort.Slice(members, func(i, j int) bool {
		return hex.EncodeToString(members[i][:]) < hex.EncodeToString(members[j][:])
	})
	return r.putMembers(name, members)
}

// Revoke removes an account from the specified role. Revoking an account that
// does not hold the role is a no-op.
func (r *Roles) Revoke(role string, account Account) error {
	if r == nil || r.store == nil {
		return fmt.Errorf("vault: role registry not initialised")
	}
	name, err := validRole(role)
	if err != nil {
		return err
	}
	members, err := r.members(name)
	if err != nil {
		return err
	}
	filtered := members[:0]
	for _, existing := range members {
		if existing == account {
			continue
		}
		filtered = append(filtered, existing)
	}
	return r.putMembers(name, filtered)
}

// Has reports whether the account holds the role. Read errors yield false,
// matching the best-effort semantics required by the gating call sites.
func (r *Roles) Has(role string, account Account) bool {
	if r == nil || r.store == nil || account.IsZero() {
		return false
	}
	name, err := validRole(role)
	if err != nil {
		return false
	}
	members, err := r.members(name)
	if err != nil {
		return false
	}
	for _, existing := range members {
		if existing == account {
			return true
		}
	}
	return false
}

// Members returns all accounts assigned to the provided role.
func (r *Roles) Members(role string) ([]Account, error) {
	if r == nil || r.store == nil {
		return nil, fmt.Errorf("vault: role registry not initialised")
	}
	name, err := validRole(role)
	if err != nil {
		return nil, err
	}
	return r.members(name)
}

func (r *Roles) members(role string) ([]Account, error) {
	var stored storedRoleMembers
	ok, err := r.store.KVGet(roleKey(role), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []Account{}, nil
	}
	members := make([]Account, 0, len(stored.Members))
	for _, raw := range stored.Members {
		if len(raw) != len(Account{}) {
			continue
		}
		var account Account
		copy(account[:], raw)
		members = append(members, account)
	}
	return members, nil
}

func (r *Roles) putMembers(role string, members []Account) error {
	stored := storedRoleMembers{Members: make([][]byte, 0, len(members))}
	for _, member := range members {
		stored.Members = append(stored.Members, append([]byte(nil), member[:]...))
	}
	return r.store.KVPut(roleKey(role), stored)
}

func roleKey(role string) []byte {
	key := make([]byte, len(rolePrefix)+len(role))
	copy(key, rolePrefix)
	copy(key[len(rolePrefix):], role)
	return key
}
