// Package tasks runs download work on behalf of the CLI.
//
// An [Orchestrator] handles a single (title, artist) request: it consults the failure
// ledger, resolves a stream through the catalog (direct resolution first, then search
// and matching), downloads the file, and applies cover art and tags on a best-effort
// basis. Expected failures are reported through [models.Outcome], not errors.
//
// A [Session] walks a playlist with it. It skips tracks already present in the download
// folder or already in the ledger, retries each remaining track a bounded number of
// times, paces track starts with a rate limiter, records definitive failures in the
// ledger, and writes the failed-downloads CSV when it stops, including on cancellation.
//
// Both emit [ProgressUpdate] values over an optional channel. Sends never block.
package tasks
