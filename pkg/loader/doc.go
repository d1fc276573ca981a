// Package loader resolves template names to template text across an ordered
// set of sources. In-memory mappings are consulted first, in registration
// order; filesystem roots are probed concurrently afterwards and the root
// configured first wins whenever several contain the same name, no matter
// which probe answers first.
//
// A name that no source holds produces a *NotFoundError. Filesystem faults
// such as permission errors count as a miss for the faulty root but are
// kept on the error (and logged) so they can be told apart from a clean miss.
package loader
