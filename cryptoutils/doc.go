// Package cryptoutils implements the field-scoped encryption used to share
// identity data with requesters.
//
// Payloads use the x25519-xsalsa20-poly1305 envelope produced by
// eth-sig-util and opened by the MetaMask eth_decrypt RPC method:
//
//	{
//	  "version": "x25519-xsalsa20-poly1305",
//	  "nonce": "<base64, 24 bytes>",
//	  "ephemPublicKey": "<base64, 32 bytes>",
//	  "ciphertext": "<base64>"
//	}
//
// A fresh ephemeral key pair is generated per payload. The recipient's
// encryption public key is the curve25519 public key of its 32-byte
// secp256k1 private key, which is what eth_getEncryptionPublicKey returns.
//
// SelectAndEncrypt filters an identity record down to an allowed field set
// before sealing, so a requester can only ever decrypt the fields it was
// granted.
package cryptoutils
