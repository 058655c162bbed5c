// Package auth provides capability tokens for callers of the waypoint store.
//
// Group holders gate waypoints behind visibility tokens. A caller proves
// which tokens it holds with an HS256 JWT signed with the configured
// auth.token_secret:
//
//	{"sub": "alice", "caps": ["waypoints.vip", "staff.*"], "iat": ..., "exp": ...}
//
// Verify turns a token into Claims whose Capabilities Set satisfies the
// Capabilities interface of the waypoints package. A Set grants a token by
// exact match, by a dotted prefix wildcard ("staff.*" grants "staff.armory"),
// or through "*".
//
// AuthContext carries the verified identity through a context.Context.
package auth
