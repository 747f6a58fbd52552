// Package internal contains the implementation packages of frontpage.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - tstree: Setup tree parsing and hot-swappable access
//   - cobj: Content object evaluation (TEXT, COA, USER and stdWrap)
//   - page: Per-request render state and the cached page record
//   - assets: CSS, JS, meta and header data registry with concatenation
//   - document: Doctype, html tag and head framing
//   - placeholder: INT_SCRIPT, section and HD/FD markers
//   - nonce: Per-request content-security-policy nonce
//   - frontend: Page assembly, the cached/uncached split and replay
//   - pagecache, locking: Page storage and per-key generation locks
//   - events: Listener hooks around rendering
//   - server: HTTP front with security headers, health and metrics
//   - watcher: Setup file reload with debouncing
//   - config, logging, errors, metrics, version: Ambient infrastructure
//   - scaffolding: Starter sites for frontpage init
//
// # Request Flow
//
// A request is resolved to a page type and a cache key. On a miss the
// frontend renders the page object under a generation lock, stores the
// markup with its uncached fragments still marked, and then finishes those
// fragments. On a hit the stored markup is replayed and only the uncached
// fragments run again, with the nonce of the current request substituted.
//
// For detailed documentation, see the individual package documentation.
package internal
