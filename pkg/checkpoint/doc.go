// Package checkpoint records what each sync cycle did.
//
// After every cycle the poller writes a small JSON report (cycle times,
// per-kind download counts, the newest media timestamp seen) to the data
// directory:
//   - Linux: ~/.local/share/blinksync/
//   - macOS: ~/Library/Application Support/blinksync/
//   - Windows: %APPDATA%/blinksync/
//
// The report exists for `blinksync status` and for operators. Download
// decisions never read it; the mirror tree is the only source of truth.
package checkpoint
