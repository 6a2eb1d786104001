package domain

// ForwardRequest is a signed meta-transaction envelope. It is created by the
// requester's signing capability, consumed exactly once (the nonce is
// single-use per From), and never mutated after signing.
type ForwardRequest struct {
	From       Address `json:"from"`
	To         Address `json:"to"`
	Value      Amount  `json:"value"`
	GasLimit   uint64  `json:"gasLimit"`
	Nonce      uint64  `json:"nonce"`
	Data       []byte  `json:"data"`
	ValidUntil int64   `json:"validUntil"` // unix seconds; zero means no expiry
	Signature  []byte  `json:"signature"`
}
