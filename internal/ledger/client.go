package ledger

import (
	"context"
	"math/big"
)

// Receipt is the confirmation returned for a state-changing
// transaction once the ledger has accepted it.
type Receipt struct {
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
}

// SendOpts carries the signer and optional value for a transaction.
// Key custody is external: the client forwards the from-address to a
// node-side signer and never sees private keys.
type SendOpts struct {
	From  string
	Value *big.Int
}

// Client is the opaque ledger RPC surface the gateway is built on.
// Call never mutates state; Send submits a transaction and blocks
// until confirmation or rejection.
type Client interface {
	Call(ctx context.Context, result interface{}, method string, args ...interface{}) error
	Send(ctx context.Context, opts SendOpts, method string, args ...interface{}) (*Receipt, error)
	BalanceAt(ctx context.Context, address string) (*big.Int, error)
	Close() error
}
