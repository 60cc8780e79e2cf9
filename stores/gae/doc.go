//go:build !wasm
// +build !wasm

// Package gae provides a Google Cloud Datastore AccountStore.  It supports
// multi-tenancy through Datastore namespaces.
//
// # Datastore Kinds
//
//   - Account: the account record, keyed by account id
//   - AccountIdentifier: keyed by identifier, points at the account id
//   - AccountExternal: keyed by provider:subject, points at the account id
//
// The two index kinds are written in the same transaction as the account so
// a second insert of the same identifier fails inside the transaction.
//
// # Usage
//
//	client, _ := datastore.NewClient(ctx, projectID)
//	store := gae.New(client, "")  // default namespace
package gae
