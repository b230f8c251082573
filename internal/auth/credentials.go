package auth

// Credentials bundles password hashing and token issuance for the user
// lifecycle.
type Credentials struct {
	hasher *PasswordHasher
	tokens *JWTManager
}

// NewCredentials combines a hasher and a token manager.
func NewCredentials(hasher *PasswordHasher, tokens *JWTManager) *Credentials {
	return &Credentials{hasher: hasher, tokens: tokens}
}

// HashPassword returns the stored form of password.
func (c *Credentials) HashPassword(password string) (string, error) {
	return c.hasher.Hash(password)
}

// VerifyPassword checks password against hash.
func (c *Credentials) VerifyPassword(password, hash string) error {
	return c.hasher.Verify(password, hash)
}

// IssueToken signs a session token for the user.
func (c *Credentials) IssueToken(userID, email string) (string, error) {
	return c.tokens.GenerateToken(userID, email)
}

// ValidateToken parses a session token.
func (c *Credentials) ValidateToken(token string) (*Claims, error) {
	return c.tokens.ValidateToken(token)
}
