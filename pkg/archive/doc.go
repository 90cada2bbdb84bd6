// Package archive reads and writes deployer packages.
//
// # Format
//
// An archive starts with the magic bytes "DPKG", a big-endian uint32 header
// length and a JSON [Header]. The header names the format version (checked
// against [SupportedVersions]) and the compression of the entry stream that
// follows.
//
// The entry stream is a sequence of length-prefixed entries in install order:
//
//	uint32   record length (never 0)
//	record   JSON: type, id, display name, inclusion flag, child keys,
//	         payload length, data file names and lengths
//	payload  opaque bytes produced by the type's exporter
//	files    each data file's bytes, in record order
//	uint64   number of entry bytes counted while writing
//	[32]byte SHA-256 of the entry bytes
//
// A zero record length marks the end; it is followed by the uint32 number
// of entries. When the stream is zstd compressed, lengths and counts refer
// to the uncompressed bytes, so [CountingWriter] and [CountingReader] see
// the same numbers on both sides.
//
// # Integrity
//
// [Reader.Next] verifies every entry before returning it. [Stage] unpacks a
// whole archive into a staging directory and only succeeds once the end
// marker has been verified, which lets installs reject a corrupt or
// truncated archive before touching the target system.
//
// # Atomic Writes
//
// [Create] and [Write] write to a temporary file next to the destination and
// rename it into place on success, so a failed or canceled export never
// leaves a partial archive behind.
package archive
