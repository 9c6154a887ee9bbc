package domain

// Persisted keys. Backends may prefix them with a namespace.
const (
	KeyCart           = "cart"
	KeyAuthToken      = "authToken"
	KeyRefreshToken   = "refreshToken"
	KeyUser           = "user"
	KeyTokenExpiry    = "tokenExpiry"
	KeyRecentSearches = "recentSearches"
)

// SessionKeys are cleared together on logout.
var SessionKeys = []string{KeyAuthToken, KeyRefreshToken, KeyUser, KeyTokenExpiry}
