// Package imageinfo identifies downloaded image bytes and reads their
// dimensions for the resolution filter.
//
// Content type and file extension come from magic-byte sniffing, never from
// the URL. Dimensions are read with image.DecodeConfig so most images are
// measured from their header alone.
package imageinfo
