package model

import (
	"strconv"
	"strings"
)

// IdentityKind tags the two buyer variants. A guest purchase never aliases an
// account purchase, even when the guest email matches the account's email.
type IdentityKind string

const (
	IdentityAccount IdentityKind = "account"
	IdentityGuest   IdentityKind = "guest"
)

// BuyerIdentity is the explicit identity passed into every entitlement call.
// Handlers derive it from the session or from guest checkout fields; services
// never read ambient session state themselves.
type BuyerIdentity struct {
	Kind   IdentityKind
	UserID int64
	Email  string
	Name   string
}

func AccountIdentity(userID int64) BuyerIdentity {
	return BuyerIdentity{Kind: IdentityAccount, UserID: userID}
}

func GuestIdentity(email, name string) BuyerIdentity {
	return BuyerIdentity{
		Kind:  IdentityGuest,
		Email: strings.ToLower(strings.TrimSpace(email)),
		Name:  strings.TrimSpace(name),
	}
}

func (i BuyerIdentity) IsAccount() bool {
	return i.Kind == IdentityAccount && i.UserID > 0
}

func (i BuyerIdentity) IsGuest() bool {
	return i.Kind == IdentityGuest && i.Email != ""
}

func (i BuyerIdentity) Valid() bool {
	return i.IsAccount() || i.IsGuest()
}

// Key is a stable per-identity string used for rate-limit buckets.
func (i BuyerIdentity) Key() string {
	if i.IsAccount() {
		return "user:" + strconv.FormatInt(i.UserID, 10)
	}
	return "guest:" + i.Email
}
