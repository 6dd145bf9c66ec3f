// Package auth provides the client-side session core for applications that
// talk to a remote API with bearer tokens.
//
// Session lifecycle:
//   - Service owns the single live Session. Recover runs once at startup and
//     republishes a persisted token only if its claims still normalize into an
//     Identity; anything stale is cleared silently.
//   - Login and Register call the remote API through a RemoteAPI, resolve the
//     Identity (server user object first, token claims as fallback) and publish
//     it through the SessionStore. A failed derivation rolls back the outbound
//     Authorization header before the error is returned.
//   - Logout and Revoke always leave the process Anonymous.
//
// Claims:
//   - DecodeClaims reads a JWT payload without verifying its signature. Token
//     verification belongs to the server that issued it.
//   - NormalizeClaims accepts a flat shape and a nested "user" shape, with the
//     name/nombre and role/rol synonyms observed across backends.
//
// Storage:
//   - Store keeps an in-memory snapshot in front of a SlotStorage that persists
//     two slots, the token and the serialized Identity. See the repository and
//     redisstore packages for durable backends.
//
// Navigation:
//   - Guard maps a RouteClass and the current Session to Allow or Redirect.
//     middleware/routeguard applies it to go-router routes.
package auth
