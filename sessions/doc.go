// Package sessions provides SessionTable implementations for the credauth
// Verifier.
//
// A session table maps an opaque session token to the ID of the account it
// was issued for.  Tables are shared across all requests of a process, so
// every implementation here is safe for concurrent use.
//
//	table := sessions.NewSCSTable(memstore.New())
//	verifier := credauth.NewVerifier(accountStore, table, protector)
//
// NewSCSTable adapts any github.com/alexedwards/scs/v2 store (memstore,
// redisstore, pgxstore, ...).  NewCacheTable keeps bindings in a bigcache
// instance and is suited to single node deployments with many sessions.
package sessions
