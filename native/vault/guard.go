package vault

// reentrancyGuard is the single "operation in progress" token shared by
// every mutating entry point. The ledger is a non-reentrant state machine:
// a collaborator calling back into the vault while an operation is live is
// rejected, never interleaved.
type reentrancyGuard struct {
	locked bool
}

func (g *reentrancyGuard) enter() error {
	if g.locked {
		return ErrReentrancy
	}
	g.locked = true
	return nil
}

func (g *reentrancyGuard) exit() {
	g.locked = false
}
