package vault

import "fmt"

// Every counter increment is guarded against MaxCounter; the check runs
// before the mutation so a rejected bump leaves the counter untouched.

func guardCounter(current uint64, name string) error {
	if current >= MaxCounter {
		return fmt.Errorf("%w: %s counter at ceiling", ErrCounterOverflow, name)
	}
	return nil
}

// CheckDepositCounter verifies the deposit counter can be incremented.
func (g *GlobalState) CheckDepositCounter() error {
	return guardCounter(g.DepositCount, "deposit")
}

// CheckWithdrawalCounter verifies the withdrawal counter can be incremented.
func (g *GlobalState) CheckWithdrawalCounter() error {
	return guardCounter(g.WithdrawalCount, "withdrawal")
}

// CheckSwapCounter verifies the swap counter can be incremented.
func (g *GlobalState) CheckSwapCounter() error {
	return guardCounter(g.SwapCount, "swap")
}

// BumpDeposit increments the deposit counter after re-checking the guard.
func (g *GlobalState) BumpDeposit() error {
	if err := g.CheckDepositCounter(); err != nil {
		return err
	}
	g.DepositCount++
	return nil
}

// BumpWithdrawal increments the withdrawal counter after re-checking the guard.
func (g *GlobalState) BumpWithdrawal() error {
	if err := g.CheckWithdrawalCounter(); err != nil {
		return err
	}
	g.WithdrawalCount++
	return nil
}

// BumpSwap increments the swap counter after re-checking the guard.
func (g *GlobalState) BumpSwap() error {
	if err := g.CheckSwapCounter(); err != nil {
		return err
	}
	g.SwapCount++
	return nil
}
