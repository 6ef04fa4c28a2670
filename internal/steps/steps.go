// Package steps runs a named sequence of operations with a per-step failure
// policy, so "this failure is tolerable" is declared once at the step, not
// scattered through the calling code.
package steps

import (
	"context"
	"fmt"
	"log"
)

// Policy decides what a step's failure means for the sequence.
type Policy int

const (
	// Mandatory failures halt the sequence.
	Mandatory Policy = iota
	// BestEffort failures are logged as warnings and the sequence continues.
	BestEffort
)

// Step is one named operation in a sequence.
type Step struct {
	Name   string
	Policy Policy
	Run    func(ctx context.Context) error
}

// Run executes the steps in order. The first Mandatory failure is returned
// wrapped with the step name; BestEffort failures only produce a warning.
func Run(ctx context.Context, sequence []Step) error {
	for _, s := range sequence {
		if err := s.Run(ctx); err != nil {
			if s.Policy == BestEffort {
				log.Printf("warning: %s: %v (continuing)", s.Name, err)
				continue
			}
			return fmt.Errorf("%s: %w", s.Name, err)
		}
	}
	return nil
}
