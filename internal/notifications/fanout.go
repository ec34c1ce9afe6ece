package notifications

import (
	"context"
	"errors"
	"strconv"
	"sync"
)

// Fanout delivers each update to every sink and keeps one replace token per
// sink behind the single token it hands out.
type Fanout struct {
	sinks []Sink

	mu     sync.Mutex
	next   int
	tokens map[Token][]Token
}

// NewFanout combines sinks.
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, tokens: make(map[Token][]Token)}
}

func (f *Fanout) Progress(ctx context.Context, update Update) (Token, error) {
	f.mu.Lock()
	token := update.Replace
	inner, ok := f.tokens[token]
	if !ok {
		f.next++
		token = Token("fanout-" + strconv.Itoa(f.next))
		inner = make([]Token, len(f.sinks))
	}
	f.mu.Unlock()

	var errs []error
	result := make([]Token, len(f.sinks))
	for i, sink := range f.sinks {
		sub := update
		sub.Replace = inner[i]
		got, err := sink.Progress(ctx, sub)
		if err != nil {
			errs = append(errs, err)
		}
		result[i] = got
	}

	f.mu.Lock()
	if update.Final {
		delete(f.tokens, token)
	} else {
		f.tokens[token] = result
	}
	f.mu.Unlock()
	return token, errors.Join(errs...)
}
