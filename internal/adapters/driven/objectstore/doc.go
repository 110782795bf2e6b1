// Package objectstore fetches raw document bytes from local paths and
// HTTP(S) URLs.
//
// Missing objects wrap domain.ErrNotFound. Network failures and 5xx
// responses wrap domain.ErrTransientProvider.
package objectstore
