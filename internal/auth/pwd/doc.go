// Package pwd hashes and validates passwords through a closed registry of
// versioned schemes.
//
// A stored hash has the form
//
//	#_<scheme_id>_#<payload>
//
// New hashes always use the latest scheme. Validation resolves the scheme
// from the stored tag, so hashes made by older schemes keep working, and
// reports StatusOutdated for them so the caller can re-hash and persist
// the upgraded value after a successful login.
//
// Known schemes:
//
//	01  HMAC-SHA512(pwd key, content || salt), base64url
//	02  argon2id over HMAC-SHA512(pwd key, content), PHC encoded (latest)
//
// Hashing is CPU bound and runs on a workerpool.Pool; Hash and Validate
// block the calling goroutine only while waiting on the result.
package pwd
