package notifier

import (
	"context"
	"errors"
)

// Sink delivers a rendered message to a recipient. A disabled sink returns
// nil without doing anything.
type Sink interface {
	Send(ctx context.Context, recipient, subject, bodyHTML string) error
}

// MultiSink delivers to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Send(ctx context.Context, recipient, subject, bodyHTML string) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, recipient, subject, bodyHTML); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Disabled is a sink that accepts and drops everything.
type Disabled struct{}

func (Disabled) Send(context.Context, string, string, string) error { return nil }
