package namelist

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

// Mode selects how the substitution helper treats keys missing from the
// source namelist.
type Mode int

const (
	// Merge updates existing keys and leaves the rest of the file alone.
	Merge Mode = 0

	// Full rewrites the namelist so it contains exactly the given keys in
	// their proper sections.
	Full Mode = 1
)

// Pair is one key/value substitution. Order is significant: the helper
// applies pairs in argument order.
type Pair struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// Patcher rewrites a namelist with a set of key/value pairs.
type Patcher interface {
	Patch(ctx context.Context, src, dst string, mode Mode, pairs []Pair) error
}

// DefaultPatcherBinary is the substitution helper's conventional name on
// PATH.
const DefaultPatcherBinary = "search_replace"

// ExecPatcher drives the external substitution helper. Its argument
// convention is fixed: source, destination, mode (1 full rewrite, 0 merge),
// then alternating keys and values.
type ExecPatcher struct {
	Binary string
}

func (p *ExecPatcher) Patch(ctx context.Context, src, dst string, mode Mode, pairs []Pair) error {
	binary := p.Binary
	if binary == "" {
		binary = DefaultPatcherBinary
	}

	args := make([]string, 0, 3+2*len(pairs))
	args = append(args, src, dst, strconv.Itoa(int(mode)))
	for _, pair := range pairs {
		args = append(args, pair.Key, pair.Value)
	}

	out, err := exec.CommandContext(ctx, binary, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w (output: %s)", binary, err, out)
	}
	return nil
}
