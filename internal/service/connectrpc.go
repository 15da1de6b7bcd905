package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"platonus-notifier/internal/components/assert"

	"connectrpc.com/connect"
)

type authInterceptor = func(ctx context.Context, header string) (context.Context, error)

type genericAuthInterceptor struct {
	fn authInterceptor
}

func newGenericAuthInterceptor(fn authInterceptor) genericAuthInterceptor {
	return genericAuthInterceptor{fn: fn}
}

func (a genericAuthInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}
		var err error
		ctx, err = a.fn(ctx, req.Header().Get("Authorization"))
		if err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

func (a genericAuthInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (a genericAuthInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, shc connect.StreamingHandlerConn) error {
		var err error
		ctx, err = a.fn(ctx, shc.RequestHeader().Get("Authorization"))
		if err != nil {
			return err
		}
		return next(ctx, shc)
	}
}

var errInvalidToken = errors.New("invalid bearer token")

// NewTokenInterceptor only lets through requests carrying "Authorization: Bearer <token>".
func NewTokenInterceptor(token string) connect.Interceptor {
	assert.NotEmptyStr(token)
	expected := []byte(token)
	return newGenericAuthInterceptor(func(ctx context.Context, header string) (context.Context, error) {
		given, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(given), expected) != 1 {
			return ctx, connect.NewError(connect.CodeUnauthenticated, errInvalidToken)
		}
		return ctx, nil
	})
}
