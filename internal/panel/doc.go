// Package panel serves the bridge settings page as an embedded asset.
//
// The page is a single HTML document with a small script that logs in to
// the settings API, edits the broker and schedule settings, and shows the
// session state and recent run-once programs. Assets are compiled into the
// binary with go:embed; a directory on disk can replace them during
// development.
//
// Unknown paths without a file extension fall back to index.html so the
// page's hash and path routes survive a reload. Missing assets (paths with
// an extension) return 404.
package panel
