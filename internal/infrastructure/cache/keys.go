package cache

// Key prefixes.
const (
	UserListPrefix = "requests:user:"
	DetailPrefix   = "request:"
)

// UserListKey is the key of a user's request list.
func UserListKey(uid string) string { return UserListPrefix + uid }

// DetailKey is the key of a single request.
func DetailKey(id string) string { return DetailPrefix + id }
