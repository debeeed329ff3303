package internal

import "crypto/sha256"

// HashBackupCode returns the salted SHA-256 hash of a backup code. The
// account ID is the salt so equal codes on different accounts never share
// a hash.
func HashBackupCode(userID, code string) [32]byte {
	return sha256.Sum256([]byte(userID + ":" + code))
}

// HashChallengeCode returns the SHA-256 hash stored on a one-time code
// challenge. Codes are short-lived and single-use, so no salt is needed.
func HashChallengeCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}
