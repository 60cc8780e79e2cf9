//go:build !wasm
// +build !wasm

// Package gorm provides a GORM backed AccountStore.  It works with any
// database GORM supports; the bundled Open helper wires SQLite and PostgreSQL.
//
// # Database Schema
//
// AutoMigrate creates a single accounts table with unique indexes on the
// identifier and external_id columns.  Uniqueness is enforced by the
// database, so concurrent registrations of one identifier cannot both win.
//
// # Usage
//
//	db, _ := gormstore.Open("postgres", dsn)
//	store, _ := gormstore.New(db)
package gorm
