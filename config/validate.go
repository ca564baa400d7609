package config

import (
	"fmt"

	"synthex/native/exchange"
)

var pausableOperations = map[string]bool{
	string(exchange.OpCreateAccount):          true,
	string(exchange.OpDeposit):                true,
	string(exchange.OpWithdraw):               true,
	string(exchange.OpMint):                   true,
	string(exchange.OpBurn):                   true,
	string(exchange.OpSwap):                   true,
	string(exchange.OpLiquidate):              true,
	string(exchange.OpClaimRewards):           true,
	string(exchange.OpWithdrawRewards):        true,
	string(exchange.OpCheckCollateralization): true,
	string(exchange.OpUpdatePrices):           true,
}

// Validate checks that the file converts into a genesis the exchange
// accepts.
func Validate(p *Protocol) error {
	if p == nil {
		return fmt.Errorf("protocol config missing")
	}
	for _, op := range p.Pauses.Operations {
		if !pausableOperations[op] {
			return fmt.Errorf("pauses: unknown operation %q", op)
		}
	}
	g, err := p.ToGenesis()
	if err != nil {
		return err
	}
	if _, _, err := exchange.BuildGenesis(g); err != nil {
		return fmt.Errorf("genesis: %w", err)
	}
	return nil
}
