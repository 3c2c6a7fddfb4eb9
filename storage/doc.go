// Package storage provides content-addressed pinning with pluggable backends.
//
// Backends implement interfaces.Pinner and are created from location URIs:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - pinata://?jwt=TOKEN&gateway=https://gateway.pinata.cloud
//   - ipfs://127.0.0.1:5001/?timeout=30s
//   - s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix/?region=us-east-1&endpoint=...
//   - file:///var/lib/divs/pins
//
// The Pinata JWT may be left out of the URI and supplied through PINATA_JWT.
//
// # Content Addressing
//
// Pinata and IPFS report the CID assigned by the IPFS node. The file and S3
// backends derive a CIDv1 (raw codec, sha2-256) themselves and re-check it on
// every fetch, rejecting bytes that no longer match.
//
// # Redundancy
//
// MultiPinner pins to every available backend and fetches from the first one
// that has the content. When a later backend derives a different identifier
// than the first, the payload is mirrored under the first identifier so reads
// by that CID succeed everywhere.
package storage
