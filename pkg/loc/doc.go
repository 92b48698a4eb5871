// Package loc provides a client for the Library of Congress collections
// JSON API and the asset hosts its records reference.
//
// This package includes:
//   - A configurable HTTP client with polite headers and typed errors
//   - Listing page fetches decoded into order-preserving JSON values
//   - A metadata probe (HEAD with a one-byte ranged GET fallback)
//   - Streaming asset downloads suitable for the atomic writer
//
// Example usage:
//
//	client := loc.NewClient("https://www.loc.gov/collections/brady-handy/",
//		30*time.Second, 15*time.Second, log)
//
//	page, err := client.FetchPage(1, 25)
//	if err != nil {
//	    if apiErr, ok := err.(*errors.Error); ok {
//	        switch apiErr.Type {
//	        case errors.ErrorTypeRateLimit:
//	            // Back off and retry
//	        case errors.ErrorTypeNotFound:
//	            // Collection does not exist
//	        }
//	    }
//	}
//
//	for _, rec := range page.Records {
//	    // Hand each record to the mirror engine
//	}
//
//	info := client.Probe(assetURL)
//	if info.HasSize() {
//	    // Compare against the local copy without downloading
//	}
package loc
