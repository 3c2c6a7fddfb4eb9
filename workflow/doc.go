// Package workflow implements the owner and requester workflows on top of
// the contract gateway, the pinning client and the wallet.
//
// The Controller approves or rejects requests addressed to the wallet. An
// approval decrypts the owner's record, narrows it to the requested fields,
// seals it for the requester, pins it, records the new pointer on-chain and
// only then marks the request approved. A Guard keeps two transitions of
// the same request from overlapping and a Journal lets a retried approval
// skip straight to the status change once the pointer is confirmed.
//
// Requester files requests and reads what owners shared; Registrar manages
// the wallet's own identity entry.
package workflow
