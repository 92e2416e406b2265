// Package core contains the round-up domain contracts, entities, and
// orchestration logic. Bank, storage, and transport adapters depend on this
// package; core must not depend on any of them.
package core
