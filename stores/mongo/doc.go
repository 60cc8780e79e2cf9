// Package mongo provides a MongoDB backed AccountStore.
//
// Accounts live in one collection.  Unique indexes on identifier and (sparse)
// external_id make the database reject a second claim of either key.
//
// # Usage
//
//	client, _ := mongo.Connect(ctx, options.Client().ApplyURI(uri))
//	store, _ := mongostore.New(ctx, client.Database("credauth"))
package mongo
