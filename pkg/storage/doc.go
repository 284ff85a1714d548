// Package storage lays out the local mirror and writes media files into it.
//
// Files live under <save dir>/Blink/<network>/<camera>/. A file's presence is
// the only record that it was fetched, so writes go to a ".part" sibling and
// are renamed into place once the body is complete:
//
//	m, err := storage.NewManager(cfg.Output.SaveDirectory)
//	dest := m.VideoPath("Home", "Front", "2024-01-01T00-00-00")
//	if !m.Exists(dest) {
//	    n, err := m.Save(body, dest)
//	}
package storage
