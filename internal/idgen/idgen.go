// Package idgen issues sequential, prefixed, human-readable identifiers
// backed by an atomic per-kind counter.
package idgen

import (
	"context"
	"errors"
	"fmt"

	"printshop/internal/docstore"
)

// Kind names an entity family with its own counter.
type Kind string

const (
	Job         Kind = "job"
	Internship  Kind = "internship"
	Certificate Kind = "certificate"
	Product     Kind = "product"
)

var prefixes = map[Kind]string{
	Job:         "ITEKJ",
	Internship:  "ITEKI",
	Certificate: "ITEK001CER",
	Product:     "PROD",
}

var (
	// ErrUnknownKind is returned for a kind without a registered prefix.
	ErrUnknownKind = errors.New("unknown identifier kind")
	// ErrStorageUnavailable means the counter could not be incremented.
	ErrStorageUnavailable = errors.New("counter storage unavailable")
)

// Prefix returns the identifier prefix for k.
func (k Kind) Prefix() (string, bool) {
	p, ok := prefixes[k]
	return p, ok
}

// Kinds lists every known kind.
func Kinds() []Kind {
	return []Kind{Job, Internship, Certificate, Product}
}

// ParseKind maps a name such as "certificate" to its Kind.
func ParseKind(name string) (Kind, error) {
	k := Kind(name)
	if _, ok := prefixes[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
	return k, nil
}

// Format renders prefix followed by n zero-padded to at least three digits.
func Format(prefix string, n int64) string {
	return fmt.Sprintf("%s%03d", prefix, n)
}

// Counter atomically increments and returns a named sequence. The first call
// for a name returns 1.
type Counter interface {
	Increment(ctx context.Context, name string) (int64, error)
}

// Generator hands out identifiers. Two concurrent calls for the same kind
// never return the same value; a value whose entity write later fails is
// simply skipped.
type Generator struct {
	counter Counter
	onIssue func(Kind)
}

// New returns a Generator over counter. onIssue, if set, is called after every
// successfully issued identifier.
func New(counter Counter, onIssue func(Kind)) *Generator {
	return &Generator{counter: counter, onIssue: onIssue}
}

// Next returns the next identifier for kind.
func (g *Generator) Next(ctx context.Context, kind Kind) (string, error) {
	prefix, ok := kind.Prefix()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	n, err := g.counter.Increment(ctx, string(kind))
	if err != nil {
		return "", fmt.Errorf("%w: increment %s: %w", ErrStorageUnavailable, kind, err)
	}
	if g.onIssue != nil {
		g.onIssue(kind)
	}
	return Format(prefix, n), nil
}

// maxSkips bounds how many already-used identifiers Assign steps over.
const maxSkips = 1000

// Assign issues identifiers for kind and hands each to write until one is
// accepted. An identifier that write reports as taken (docstore.ErrExists) is
// skipped, so a counter that fell behind its records catches up. Other write
// errors are returned unchanged.
func (g *Generator) Assign(ctx context.Context, kind Kind, write func(id string) error) (string, error) {
	for skipped := 0; ; skipped++ {
		id, err := g.Next(ctx, kind)
		if err != nil {
			return "", err
		}
		err = write(id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, docstore.ErrExists) || skipped+1 >= maxSkips {
			return "", err
		}
	}
}
