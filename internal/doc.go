// Package internal contains helper utilities that are intentionally private
// to totpgate, currently secure random state identifier generation.
//
// # What this package must NOT do
//
//   - Export types that appear in the public totpgate API.
//   - Be imported by any package outside the totpgate module.
package internal
