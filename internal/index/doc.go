// Package index builds the board index of a forum in two phases. The
// shallow phase reads the labeled section links of the landing page (or the
// flat site map when the landing page has none); the deep phase visits every
// section concurrently and records its child forums and collections while
// reporting progress with an ETA.
package index
