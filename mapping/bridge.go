package mapping

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

const tokenPrefix = "strata:ref:"

// Token is a placeholder written into a StoreObject in place of a value that
// is known only once a pending operation completes.
type Token string

// IsToken reports whether v is a reference token.
func IsToken(v any) (Token, bool) {
	switch t := v.(type) {
	case Token:
		return t, true
	case string:
		if strings.HasPrefix(t, tokenPrefix) {
			return Token(t), true
		}
	}
	return "", false
}

// PendingFunc is an operation whose result replaces a token.
type PendingFunc func(ctx context.Context) (any, error)

type pending struct {
	field  string
	done   chan struct{}
	result any
	err    error
}

// Bridge pairs tokens with pending operations for one entity conversion.
type Bridge struct {
	mu      sync.Mutex
	tokens  []Token
	pending map[Token]*pending
}

// NewBridge returns an empty Bridge.
func NewBridge() *Bridge {
	return &Bridge{pending: make(map[Token]*pending)}
}

// Register starts op and returns the token standing in for its result.
// field names the value the token stands in for, as "type.field", and is
// reported if op fails. op runs detached from ctx cancellation and always
// runs to completion.
func (b *Bridge) Register(ctx context.Context, field string, op PendingFunc) Token {
	token := Token(tokenPrefix + uuid.NewString())
	p := &pending{field: field, done: make(chan struct{})}

	b.mu.Lock()
	b.tokens = append(b.tokens, token)
	b.pending[token] = p
	b.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	go func() {
		defer close(p.done)
		p.result, p.err = op(detached)
	}()
	return token
}

// Len returns the number of registered tokens.
func (b *Bridge) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.tokens)
}

// Wait blocks until every registered operation has completed.
func (b *Bridge) Wait(ctx context.Context) error {
	b.mu.Lock()
	ps := make([]*pending, 0, len(b.tokens))
	for _, t := range b.tokens {
		ps = append(ps, b.pending[t])
	}
	b.mu.Unlock()

	for _, p := range ps {
		select {
		case <-p.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Resolve waits for the pending operations and replaces every token in so
// with its operation's result. If any operation failed, so is left untouched
// and a *ResolutionError carrying the cause is returned. Resolving an
// already-resolved object is a no-op.
func (b *Bridge) Resolve(ctx context.Context, so *StoreObject) error {
	if err := b.Wait(ctx); err != nil {
		return &ResolutionError{Err: err}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var (
		merr    *multierror.Error
		failed  Token
		results = make(map[Token]any, len(b.tokens))
	)
	for _, t := range b.tokens {
		p := b.pending[t]
		if p.err != nil {
			if failed == "" {
				failed = t
			}
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", p.label(t), p.err))
			continue
		}
		results[t] = p.result
	}
	if merr != nil {
		if merr.Len() == 1 {
			p := b.pending[failed]
			return &ResolutionError{Field: p.field, Token: failed, Err: p.err}
		}
		return &ResolutionError{Err: merr.ErrorOrNil()}
	}

	for _, k := range so.keys {
		v, err := replaceTokens(so.values[k], results)
		if err != nil {
			return err
		}
		so.values[k] = v
	}
	return nil
}

func (p *pending) label(t Token) string {
	if p.field == "" {
		return string(t)
	}
	return p.field
}

func replaceTokens(v any, results map[Token]any) (any, error) {
	if t, ok := v.(Token); ok {
		r, found := results[t]
		if !found {
			return nil, &ResolutionError{Token: t, Err: fmt.Errorf("token not registered with this bridge")}
		}
		return r, nil
	}
	switch c := v.(type) {
	case *StoreObject:
		if c == nil {
			return v, nil
		}
		for _, k := range c.keys {
			r, err := replaceTokens(c.values[k], results)
			if err != nil {
				return nil, err
			}
			c.values[k] = r
		}
	case []any:
		for i, item := range c {
			r, err := replaceTokens(item, results)
			if err != nil {
				return nil, err
			}
			c[i] = r
		}
	case map[string]any:
		for k, item := range c {
			r, err := replaceTokens(item, results)
			if err != nil {
				return nil, err
			}
			c[k] = r
		}
	}
	return v, nil
}
