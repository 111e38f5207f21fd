// Package txplan assembles transactions from an ordered list of named steps.
package txplan

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

type Step struct {
	Name        string
	Instruction solana.Instruction
}

// Plan preserves insertion order; instructions execute in the order appended.
type Plan struct {
	steps []Step
}

func New() *Plan {
	return &Plan{}
}

func (p *Plan) Append(name string, ix solana.Instruction) *Plan {
	p.steps = append(p.steps, Step{Name: name, Instruction: ix})
	return p
}

func (p *Plan) Len() int {
	return len(p.steps)
}

// Steps returns step names in execution order.
func (p *Plan) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name
	}
	return names
}

func (p *Plan) Has(name string) bool {
	for _, s := range p.steps {
		if s.Name == name {
			return true
		}
	}
	return false
}

func (p *Plan) Instructions() []solana.Instruction {
	ixs := make([]solana.Instruction, len(p.steps))
	for i, s := range p.steps {
		ixs[i] = s.Instruction
	}
	return ixs
}

// Transaction compiles the plan into an unsigned transaction paid by payer.
func (p *Plan) Transaction(blockhash solana.Hash, payer solana.PublicKey) (*solana.Transaction, error) {
	if len(p.steps) == 0 {
		return nil, errors.New("plan has no steps")
	}
	tx, err := solana.NewTransaction(p.Instructions(), blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("failed to compile transaction: %w", err)
	}
	return tx, nil
}
