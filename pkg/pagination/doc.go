// Package pagination harvests a range of ISBNdb search result pages into a
// book collection.
//
// Pages are fetched one at a time with the current API key. Each page
// result carries an explicit outcome:
//
//	success      records appended, keystats fed to the quota tracker
//	recoverable  logged with its body, the run moves to the next page
//	rotate_key   the next key is selected and the same page refetched
//	fatal        the run stops
//
// Example usage:
//
//	h, err := pagination.New(isbnClient, rotator, tracker, pagination.DefaultConfig(), logger)
//	books, report, err := h.Run(ctx, books)
//
// Run always returns the collection gathered so far, so callers can save
// partial results when it fails. Key exhaustion surfaces as
// keys.ErrKeysExhausted.
package pagination
