// Package storage defines the records and store interfaces an application can
// use to back the OAuth engine's injected lookup functions.
//
// The engine itself never persists anything. Client implements oauth.Client,
// Token implements oauth.TokenCredential and AuthorizationCode implements
// oauth.AuthorizationCode, so records loaded from any backend can be handed
// to the grants directly. The memory subpackage is a reference backend for
// development and tests.
package storage
