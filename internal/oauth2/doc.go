// Package oauth2 manages the lifecycle of marketplace OAuth 2.0 tokens.
//
// # Overview
//
// The Manager drives the authorization code grant against the marketplace
// authorization server and persists every issued token through a
// storage.TokenStore. Tokens are never updated in place: a refresh appends a
// new record, and the newest record for a user is the one handed out.
//
// # Flow
//
//  1. BeginAuthorization builds the authorization URL with a random state and
//     a signed cookie value binding that state to the browser.
//  2. The callback handler calls VerifyState with the cookie and the state
//     query parameter, then ExchangeCode with the authorization code.
//  3. GetValidToken returns the current token, refreshing it first when it
//     expires within the refresh margin (two minutes by default).
//
// # Usage
//
//	manager, err := oauth2.NewManager(oauth2.Config{
//	    ClientID:     cfg.ClientID,
//	    ClientSecret: cfg.ClientSecret,
//	    RedirectURL:  cfg.RedirectURI,
//	    AuthURL:      cfg.AuthURL,
//	    TokenURL:     cfg.TokenURL,
//	    StateSecret:  cfg.StateSecret,
//	}, store, oauth2.WithLocker(lockManager))
//	if err != nil {
//	    return err
//	}
//
//	token, err := manager.GetValidToken(ctx, "123456")
//
// # Concurrency
//
// Refreshes for one user are serialised. Concurrent GetValidToken calls in
// the same process share a single refresh through singleflight, and the
// refresh itself runs under a per-user lock from the locks package, which is
// backed by Redis when several instances share a store. Inside the lock the
// current token is read again and only refreshed if it is still due.
//
// # Errors
//
// A non-2xx answer from the token endpoint surfaces as an upstream_auth
// error carrying the upstream status and raw body. Nothing is retried.
package oauth2
