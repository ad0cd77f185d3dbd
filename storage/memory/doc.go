// Package memory is an in-memory storage backend for the authorization
// server.
//
// A Store keeps clients, tokens and authorization codes in maps guarded by a
// sync.RWMutex, and removes expired codes in a background loop. Its methods
// match the server's persistence hooks, so one Store can back every grant
// and the revocation endpoint:
//
//	store := memory.New()
//	defer store.Stop()
//
//	grant := &server.RefreshTokenGrant{
//	    AuthenticateRefreshToken: store.AuthenticateRefreshToken,
//	    RevokeOldCredential:      store.RevokeCredential,
//	    CreateAccessToken:        server.TokenSaver(store, 0),
//	}
//
// Nothing is persisted; restarting the process forgets every token.
package memory
