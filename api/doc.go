/*
Package api exposes the identity agent over HTTP.

It is organized into subpackages:

 1. ownerhandler - the owner's dashboard: list, approve and reject requests
 2. requesterhandler - filing requests and reading shared data
 3. identityhandler - registering and updating the wallet's own record
 4. clients - an HTTP client for all of the above, used by the CLI

This package holds what they share: request and response types, the server
configuration and the mapping from workflow errors to status codes.

# Status codes

  - 400 Bad Request: malformed input, unknown field or status filter
  - 403 Forbidden: the request is addressed to another wallet
  - 404 Not Found: unknown request, unregistered user, missing content
  - 409 Conflict: request already approved or rejected, operation in flight,
    already registered, data requested before approval
  - 502 Bad Gateway: a chain write, the pinning service or decryption failed
  - 503 Service Unavailable: no wallet, wrong network, no signer

Failed workflow operations carry the failing step and a notice in the
ErrorResponse body.
*/
package api
