// Package registry implements interfaces.ContractGateway for the Identity and
// DataRequest registries.
//
// OnchainGateway wraps the contract bindings. Reads are plain eth_calls issued
// from the configured signer address. Writes go through a two-stage path:
// the transaction is signed and submitted, then the gateway blocks in
// bind.WaitMined until a receipt is available. A failure in either stage is
// returned as *interfaces.TxError carrying the stage, the contract method and,
// once known, the transaction hash. A mined receipt with a failed status is
// reported as interfaces.ErrReverted at the confirm stage.
//
// Usage:
//
//	gw, err := registry.NewOnchainGateway(client, client, identityAddr, requestAddr)
//	if err != nil {
//	    return err
//	}
//	gw.SetTransactOpts(auth)
//	receipt, err := gw.Approve(ctx, id)
//
// MockGatewayClient keeps both registries in memory and enforces the
// contract rules, which makes it suitable for workflow tests and local
// development. MockGateway is a testify mock for expectation-style tests.
package registry
