// Package decode implements the discriminator derivation and account
// decode function spec.md §6 treats as an external collaborator: given a
// byte slice whose first 8 bytes are a discriminator, return a typed
// variant. The discriminator macro lives in the same code base as the
// DLOB in the original project, so both the account (`account:Name`) and
// instruction (`global:snake_case_name`) namespaces are implemented here
// even though only the account namespace is on the DLOB's read path.
package decode

import (
	"crypto/sha256"
	"sync"
)

// DiscriminatorLen is the byte length of every discriminator, account or
// instruction.
const DiscriminatorLen = 8

// Discriminator is the 8-byte prefix tagging an account or instruction
// payload.
type Discriminator [DiscriminatorLen]byte

const (
	namespaceAccount     = "account:"
	namespaceInstruction = "global:"
)

var nameCache = struct {
	mu          sync.RWMutex
	toDiscrim   map[string]Discriminator
	fromDiscrim map[Discriminator]string
}{
	toDiscrim:   make(map[string]Discriminator),
	fromDiscrim: make(map[Discriminator]string),
}

// NameToAccountDiscrim derives the discriminator for an account named in
// PascalCase, e.g. "User" -> sha256("account:User")[:8].
func NameToAccountDiscrim(name string) Discriminator {
	return nameToDiscrim(namespaceAccount + name, name, true)
}

// NameToInstructionDiscrim derives the discriminator for an instruction
// named in snake_case, e.g. "place_order" -> sha256("global:place_order")[:8].
// Instructions are outside the DLOB's own read path but the derivation
// lives alongside the account one since both come from the same macro.
func NameToInstructionDiscrim(name string) Discriminator {
	return nameToDiscrim(namespaceInstruction+name, name, false)
}

func nameToDiscrim(namespaced, name string, isAccount bool) Discriminator {
	nameCache.mu.RLock()
	if d, ok := nameCache.toDiscrim[cacheKey(isAccount, name)]; ok {
		nameCache.mu.RUnlock()
		return d
	}
	nameCache.mu.RUnlock()

	sum := sha256.Sum256([]byte(namespaced))
	var d Discriminator
	copy(d[:], sum[:DiscriminatorLen])

	nameCache.mu.Lock()
	nameCache.toDiscrim[cacheKey(isAccount, name)] = d
	nameCache.fromDiscrim[d] = name
	nameCache.mu.Unlock()

	return d
}

func cacheKey(isAccount bool, name string) string {
	if isAccount {
		return namespaceAccount + name
	}
	return namespaceInstruction + name
}

// DiscrimToName reverses a previously derived discriminator back to its
// name. It only resolves discriminators this process has already derived
// via NameToAccountDiscrim/NameToInstructionDiscrim — there is no way to
// invert sha256, so the cache is the whole implementation.
func DiscrimToName(d Discriminator) (string, bool) {
	nameCache.mu.RLock()
	defer nameCache.mu.RUnlock()
	name, ok := nameCache.fromDiscrim[d]
	return name, ok
}

// UserAccountDiscriminator is the well-known discriminator for the User
// account, precomputed so decode.DecodeAccount can switch on it without
// recomputing sha256 per call.
var UserAccountDiscriminator = NameToAccountDiscrim("User")
