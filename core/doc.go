// Package core contains the credential broker contracts, entities, and the
// OAuth flow controller. Provider adapters and store backends depend on this
// package; core must not depend on any concrete provider or store.
package core
