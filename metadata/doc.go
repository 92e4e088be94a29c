// Package metadata contains facilities for working with bag metadata.
// At the moment, it is mostly a 1:1 reflection of the BagIt tag files (bagit.txt,
// bag-info.txt, manifest-<alg>.txt) plus a small element tree for the XML
// metadata documents a DANS bag carries under metadata/.
//
// Nothing in this package touches the filesystem.  Everything is parsed from an
// io.Reader, so the bag package decides where the bytes come from and how long
// parsed results are kept around.
package metadata
