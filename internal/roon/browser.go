// Package roon enumerates albums from the source library through a browse
// bridge. The reconciler only consumes the Browser interface; the wire
// protocol lives in the bridge client.
package roon

import "context"

// Item is one album entry as reported by the source catalog
type Item struct {
	Artist string `json:"artist"`
	Album  string `json:"album"`
}

// Browser lists the source catalog's albums in pages over a session cursor.
//
// Albums returns one page at the given offset along with the total number of
// items the catalog currently reports. An expired session cursor surfaces
// util.ErrSessionExpired; the caller is expected to abandon the whole scan
// and retry on a later cycle.
type Browser interface {
	Albums(ctx context.Context, offset, count int) ([]Item, int, error)

	// Refresh (re)establishes the browse session cursor
	Refresh(ctx context.Context) error
}
