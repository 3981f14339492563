// Package core contains the canonical integration domain contracts, entities,
// and error taxonomy. Strategy, store, and provider packages must depend on
// this package; core must not depend on provider-specific or store-specific
// adapters.
package core
