// Package presign issues time-limited, signed URLs that let clients upload
// and download objects directly against an S3-compatible store.
//
// The gateway never touches object bytes. An Issuer derives a collision-free
// object key, makes sure the bucket exists, and asks the store's SDK to sign
// a PUT or GET request; the store itself enforces the signature and expiry.
// Listing goes through the store's internal endpoint.
//
// Endpoints
//
// Signing and admin calls may use different hosts. Requests issued by the
// gateway go to the internal endpoint (e.g. the "minio" service in a compose
// network) while URLs handed to clients are signed for the public endpoint.
// The host is part of the signature, so a URL cannot be rewritten after the
// fact; see the storage/s3 subpackage.
//
// Subpackages provide token verification (auth), key derivation (objectkey),
// configuration (config), the HTTP surface (api), Prometheus instrumentation
// (metrics) and a Go client (client).
package presign
