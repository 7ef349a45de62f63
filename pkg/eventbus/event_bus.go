// Package eventbus is an in-process publisher that routes events to handlers
// by matching the handler's parameter types against the published arguments.
package eventbus

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/recruit-sla/pkg/serrors"
)

type Subscriber struct {
	Handler any
}

type EventBus interface {
	Publish(args ...any)
	Subscribe(handler any)
	Unsubscribe(handler any)
	Clear()
	SubscribersCount() int
}

// EventBusWithError is implemented by buses that can report handler failures.
type EventBusWithError interface {
	EventBus
	PublishE(args ...any) error
}

var (
	ErrNoSubscribers        = serrors.NewError("EVENTBUS_NO_SUBSCRIBERS", "no matching subscribers", "")
	ErrInvalidHandlerReturn = serrors.NewError("EVENTBUS_INVALID_HANDLER_RETURN", "invalid handler return signature", "")
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

type publisherImpl struct {
	log *logrus.Logger

	mu          sync.RWMutex
	subscribers []Subscriber
}

func NewEventPublisher(log *logrus.Logger) EventBusWithError {
	return &publisherImpl{log: log}
}

// MatchSignature reports whether handler can be called with args.
func MatchSignature(handler any, args []any) bool {
	t := reflect.TypeOf(handler)
	if t == nil || t.Kind() != reflect.Func || t.NumIn() != len(args) {
		return false
	}
	for i, arg := range args {
		paramType := t.In(i)
		if arg == nil {
			switch paramType.Kind() {
			case reflect.Interface, reflect.Ptr, reflect.Map, reflect.Slice:
				continue
			default:
				return false
			}
		}
		argType := reflect.TypeOf(arg)
		if paramType.Kind() == reflect.Interface {
			if !argType.Implements(paramType) {
				return false
			}
			continue
		}
		if !argType.AssignableTo(paramType) {
			return false
		}
	}
	return true
}

func (p *publisherImpl) matching(args []any) []Subscriber {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Subscriber, 0, len(p.subscribers))
	for _, s := range p.subscribers {
		if MatchSignature(s.Handler, args) {
			out = append(out, s)
		}
	}
	return out
}

func callArgs(handler reflect.Value, args []any) []reflect.Value {
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		if arg == nil {
			in[i] = reflect.Zero(handler.Type().In(i))
			continue
		}
		in[i] = reflect.ValueOf(arg)
	}
	return in
}

// Publish calls every matching handler. Handler panics are logged and do not
// stop the remaining handlers.
func (p *publisherImpl) Publish(args ...any) {
	handled := false
	for _, s := range p.matching(args) {
		v := reflect.ValueOf(s.Handler)
		func() {
			defer func() {
				if r := recover(); r != nil && p.log != nil {
					p.log.Errorf("eventbus: handler %s panicked with args %v: %v", v.Type(), args, r)
				}
			}()
			v.Call(callArgs(v, args))
			handled = true
		}()
	}
	if !handled && p.log != nil {
		p.log.Warnf("eventbus.Publish: no matching subscribers for event with args: %v", args)
	}
}

// PublishE is Publish for handlers returning error. Errors and recovered
// panics from all handlers are joined.
func (p *publisherImpl) PublishE(args ...any) error {
	subs := p.matching(args)
	if len(subs) == 0 {
		return ErrNoSubscribers
	}

	var errs []error
	for _, s := range subs {
		v := reflect.ValueOf(s.Handler)
		func() {
			defer func() {
				if r := recover(); r != nil {
					errs = append(errs, fmt.Errorf("eventbus: handler %s panicked: %v", v.Type(), r))
				}
			}()
			out := v.Call(callArgs(v, args))
			switch {
			case len(out) == 0:
			case len(out) != 1:
				errs = append(errs, fmt.Errorf("%w: handler %s returned %d values", ErrInvalidHandlerReturn, v.Type(), len(out)))
			case out[0].Type() != errorType:
				errs = append(errs, fmt.Errorf("%w: handler %s return type is %s", ErrInvalidHandlerReturn, v.Type(), out[0].Type()))
			case !out[0].IsNil():
				errs = append(errs, out[0].Interface().(error))
			}
		}()
	}
	return errors.Join(errs...)
}

func (p *publisherImpl) Subscribe(handler any) {
	if t := reflect.TypeOf(handler); t == nil || t.Kind() != reflect.Func {
		panic("handler must be a function")
	}
	p.mu.Lock()
	p.subscribers = append(p.subscribers, Subscriber{Handler: handler})
	p.mu.Unlock()
}

// Unsubscribe removes the first subscriber whose handler is the same function value.
func (p *publisherImpl) Unsubscribe(handler any) {
	target := reflect.ValueOf(handler).Pointer()
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, s := range p.subscribers {
		if reflect.ValueOf(s.Handler).Pointer() == target {
			p.subscribers = append(p.subscribers[:i], p.subscribers[i+1:]...)
			return
		}
	}
}

func (p *publisherImpl) Clear() {
	p.mu.Lock()
	p.subscribers = nil
	p.mu.Unlock()
}

func (p *publisherImpl) SubscribersCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscribers)
}
