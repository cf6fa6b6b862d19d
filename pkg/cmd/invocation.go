// Package cmd is a transport-agnostic command core. A command has a name, a
// description and Run(ctx, invocation); the Discord bot and the CLI adapt their
// own events into an Invocation and look commands up in a Registry.
package cmd

import "context"

// Invocation carries positional arguments plus an adapter specific payload.
// The Discord adapter stores its request context in Data.
type Invocation struct {
	Args []string
	Data any
}

// Arg returns the i-th argument or "" when there are fewer.
func (inv *Invocation) Arg(i int) string {
	if inv == nil || i < 0 || i >= len(inv.Args) {
		return ""
	}
	return inv.Args[i]
}

// Command is the universal contract: identity plus execution.
type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}
