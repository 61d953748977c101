package reconcile

import (
	"slices"

	"github.com/angelmondragon/paygate-backend/pkg/db/models"
)

// The idempotency ledger is the per-order set of already-applied action
// ids, stored in order metadata so it survives restarts and is shared by
// every instance reading the same row.

// alreadyProcessed reports whether the action id was applied before.
// Events without an action id are never deduplicated here; they rely on
// the handler's own guards.
func alreadyProcessed(order *models.Order, actionID string) bool {
	if actionID == "" {
		return false
	}
	return slices.Contains(order.ProcessedActionIDs(), actionID)
}

// ledgerWith returns the ledger extended by the action id, de-duplicated
// on write. The stored shape is a list, so set semantics are enforced
// here rather than by the store.
func ledgerWith(order *models.Order, actionID string) []string {
	current := order.ProcessedActionIDs()
	if actionID == "" || slices.Contains(current, actionID) {
		return current
	}
	return append(slices.Clone(current), actionID)
}
