// Package auth provides authentication and authorization for parley.
//
// # Tokens
//
// Users authenticate with HS256 JWTs carrying the user id as the
// subject claim:
//
//	verifier := auth.NewJWTVerifier(secret)
//	token, err := verifier.Generate(userID, 24*time.Hour)
//	userID, err := verifier.Verify(token)
//
// # Passwords
//
// Passwords are hashed with bcrypt behind the PasswordHasher
// interface; NewBcryptHasher(0) selects the bcrypt default cost.
//
// # HTTP Middleware
//
// Middleware extracts the bearer token, verifies it, loads the user
// and stores it on the request context:
//
//	mux.Handle("/api/", auth.Middleware(store, verifier)(handler))
//	u := auth.UserFromContext(r.Context())
//
// Requests without a valid token receive 401 before the handler runs.
package auth
