// Package services talks to the outside world: the catalog server pool and the
// playlist provider.
//
// # Server Pool and Router
//
// [ServerPool] holds the interchangeable catalog servers. [Router] issues each GET to
// a random untried server, falling back to round-robin so every server is tried once
// before any repeats. Status codes are classified per attempt:
//   - 200: success, body returned
//   - 404: authoritative miss, [shared.ErrNotFound] without further attempts
//   - 429: rate limited, wait the rate-limit backoff and move on
//   - 5xx, other statuses, transport errors: wait the retry backoff and move on
//
// The budget is maxAttemptsPerServer × pool size; exhausting it yields [shared.ErrRequestFailed].
//
// # Catalog Client
//
// [CatalogClient] exposes search, direct resolution and stream lookup. Responses come
// back either as positional lists or as objects, so both shapes are normalized into
// [models.Track] and [models.StreamInfo]. Stream URLs may be embedded in a base64
// manifest; see [ExtractManifestURL].
//
// # Playlist Source
//
// [SpotifySource] reads playlists through the Spotify Web API using client credentials
// and keeps a JSON cache with an expiry.
package services
