package contextKey

// key is unexported so no other package can collide with these values.
type key string

const (
	// UserIDKey holds the authenticated user id as a string.
	UserIDKey key = "userID"
	// JwtErrorKey holds the error from a rejected bearer token.
	JwtErrorKey key = "jwtError"
)
