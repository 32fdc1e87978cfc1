package vault

import (
	"fmt"
	"math/big"
	"time"
)

// Router is the minimum contract the vault requires from the external
// exchange. Swap sends the proceeds to recipient and returns the amounts
// realised along the path; implementations refuse execution past deadline.
type Router interface {
	QuoteOutput(amountIn *big.Int, path []string) ([]*big.Int, error)
	Swap(amountIn, minOut *big.Int, path []string, recipient Account, deadline time.Time) ([]*big.Int, error)
	WrappedNative() string
}

// Converter wraps router calls with slippage-bounded minimum outputs. It
// never retries and never partially credits: any router failure aborts the
// enclosing operation.
type Converter struct {
	router Router
	now    func() time.Time
}

// NewConverter constructs a converter over the supplied router.
func NewConverter(router Router) *Converter {
	return &Converter{router: router, now: time.Now}
}

// SetClock overrides the deadline clock, primarily for deterministic tests.
func (c *Converter) SetClock(now func() time.Time) {
	if c == nil || now == nil {
		return
	}
	c.now = now
}

// MinimumOutput asks the router for its best-effort estimate and applies the
// slippage tolerance: minOut = estimate × (10000 − bps) / 10000, integer
// division truncating toward zero.
func (c *Converter) MinimumOutput(amountIn *big.Int, path []string, slippageBps uint64) (*big.Int, error) {
	if c == nil || c.router == nil {
		return nil, fmt.Errorf("vault: router not configured")
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	amounts, err := c.router.QuoteOutput(amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("%w: quote: %v", ErrSwapFailed, err)
	}
	if len(amounts) == 0 {
		return nil, fmt.Errorf("%w: empty quote", ErrSwapFailed)
	}
	estimate := amounts[len(amounts)-1]
	if estimate == nil || estimate.Sign() < 0 {
		return nil, fmt.Errorf("%w: invalid quote", ErrSwapFailed)
	}
	minOut := new(big.Int).Mul(estimate, new(big.Int).SetUint64(bpsDenominator-slippageBps))
	return minOut.Quo(minOut, new(big.Int).SetUint64(bpsDenominator)), nil
}

// StricterMinimum returns the larger of the caller-supplied and the
// protocol-computed minimum output. The protocol floor is a safety net, never
// a ceiling on user-chosen protection.
func StricterMinimum(callerMin, protocolMin *big.Int) *big.Int {
	caller := cloneBigInt(callerMin)
	protocol := cloneBigInt(protocolMin)
	if caller.Cmp(protocol) > 0 {
		return caller
	}
	return protocol
}

// Execute performs the swap with a fresh deadline and returns the actual
// output amount. Any router failure, including an output below minOut, is
// reported as ErrSwapFailed.
func (c *Converter) Execute(amountIn, minOut *big.Int, path []string, recipient Account) (*big.Int, error) {
	if c == nil || c.router == nil {
		return nil, fmt.Errorf("vault: router not configured")
	}
	deadline := c.now().Add(SwapDeadlineWindow)
	amounts, err := c.router.Swap(amountIn, minOut, path, recipient, deadline)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSwapFailed, err)
	}
	if len(amounts) == 0 {
		return nil, fmt.Errorf("%w: no output reported", ErrSwapFailed)
	}
	out := amounts[len(amounts)-1]
	if out == nil || out.Sign() <= 0 {
		return nil, fmt.Errorf("%w: zero output", ErrSwapFailed)
	}
	if minOut != nil && out.Cmp(minOut) < 0 {
		return nil, fmt.Errorf("%w: output %s below minimum %s", ErrSwapFailed, out, minOut)
	}
	return new(big.Int).Set(out), nil
}
