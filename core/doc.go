// Package core holds the authorization protocol: application registration,
// authorization-session polling, signing credential derivation, and signed
// account requests. Transport, storage, and metrics adapters depend on this
// package; core must not depend on them.
package core
