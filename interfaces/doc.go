// Package interfaces defines the domain types, error taxonomy and component
// contracts shared by the identity agent.
//
// The agent is assembled from four collaborators, each behind an interface
// declared here so that the workflow code never depends on a concrete
// transport:
//
//   - ContractGateway: typed reads and confirmed writes against the Identity
//     and DataRequest registry contracts.
//   - Pinner: content-addressed storage of ciphertext (Pinata, an IPFS node,
//     S3 or a local directory).
//   - Wallet: the signing and decryption capability of the agent operator.
//     Private key material never leaves the wallet implementation.
//   - PinnerFactory: builds pinning backends from location URIs.
//
// # Errors
//
// Failures are reported with the sentinel errors in errors.go wrapped with
// fmt.Errorf("...: %w", err), so callers classify them with errors.Is.
// Chain writes fail with *TxError, which records whether the transaction
// failed at submission (signing, gas estimation, broadcast) or at
// confirmation (receipt wait, revert).
package interfaces
