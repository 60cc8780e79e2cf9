// Package credauth registers and logs in users with an email and password,
// keeps them logged in with a server side session behind a persistent
// cookie, and can hand identity off to an OAuth provider.
//
// # Architecture
//
// Verifier: the decision bearing core.  It seals secrets with one process
// wide Strategy, checks them on login, and binds session tokens to accounts
// in a SessionTable.
//
// AccountStore: where accounts live.  Backends are in the stores packages
// (memory, JSON files, SQL through GORM, Cloud Datastore, MongoDB).
//
// SessionTable: token to account bindings with expiry.  Backends are in the
// sessions package.
//
// App: the web pages, local login forms, logout and the gated /secrets page.
//
// # Strategies
//
// A Strategy decides how a secret is kept at rest:
//
//   - plaintext: as typed
//   - reversible: AES-256-GCM under a key derived from the process secret
//   - unsalted-hash: hex md5
//   - salted-hash: bcrypt (the default)
//
// Only salted-hash is fit for production.  The others exist to compare
// against it.  Records sealed under one strategy never verify under another.
//
// # Basic Usage
//
//	protector, _ := credauth.NewProtector(credauth.StrategySaltedHash, "", 0)
//	verifier := credauth.NewVerifier(mem.New(), sessions.NewSCSTable(memstore.New()), protector)
//
//	app := credauth.New(verifier, jwtSecret)
//	google, _ := oauth2.NewGoogleOAuth2(clientID, clientSecret,
//	    baseURL+"/auth/google/callback/", app.SaveUserAndRedirect)
//	app.AddProvider("google", google)
//	http.ListenAndServe(":3000", app.Handler())
//
// # Errors
//
// Login failures that depend on stored data are all ErrInvalidCredentials,
// and a miss costs the same verification work as a hit, so responses do not
// reveal whether an identifier is registered.
package credauth
