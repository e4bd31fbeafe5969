package core

import "sdata.ir/ai-chat/internal/store"

// ResolveOwner collapses the two optional identity inputs of a request
// into exactly one Owner. A verified user id always shadows a
// client-supplied guest id; with neither present the request is rejected.
func ResolveOwner(userID, guestID string) (store.Owner, error) {
	if userID != "" {
		return store.Owner{Kind: store.OwnerUser, ID: userID}, nil
	}
	if guestID != "" {
		return store.Owner{Kind: store.OwnerGuest, ID: guestID}, nil
	}
	return store.Owner{}, ErrIdentityMissing
}
