// Package apikey issues and verifies organization API keys.
//
// Keys are opaque: fg_<org-id>.<secret>. The secret is random, only its
// argon2id hash is stored, and the plaintext is shown exactly once at
// creation. The org-id prefix lets the API layer resolve the owning
// organization before paying for a hash verification.
package apikey
