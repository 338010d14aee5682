// Package interceptors provides gRPC server interceptors backed by a layered
// cache.
package interceptors

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/zeebo/xxh3"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"

	"github.com/Keksclan/layercache/cache"
)

// CacheRule enables response caching for one RPC method.
type CacheRule struct {
	// TTL is how long a response stays valid. Zero or negative caches the
	// response without expiry.
	TTL time.Duration

	// New returns an empty response message to decode cached bytes into.
	New func() proto.Message
}

// CacheUnary returns a unary interceptor that read-through-caches the
// responses of the methods listed in rules, keyed by full method name and a
// hash of the deterministically marshalled request. Handler errors are
// returned and never cached. Methods without a rule, and requests that are
// not protobuf messages, go straight to the handler.
func CacheUnary(lc *cache.Layered[[]byte], rules map[string]CacheRule) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		rule, ok := rules[info.FullMethod]
		if !ok || lc == nil || rule.New == nil {
			return handler(ctx, req)
		}
		msg, ok := req.(proto.Message)
		if !ok {
			return handler(ctx, req)
		}
		key, err := RequestKey(info.FullMethod, msg)
		if err != nil {
			return handler(ctx, req)
		}

		var expiry cache.Expiry[[]byte]
		if rule.TTL > 0 {
			expiry = cache.After[[]byte](rule.TTL)
		}

		// fresh holds the handler's own response when it ran, so it is
		// returned without a decode round trip.
		var fresh any
		b, err := lc.Get(ctx, key, func(ctx context.Context) ([]byte, error) {
			resp, err := handler(ctx, req)
			if err != nil {
				return nil, err
			}
			fresh = resp
			pm, ok := resp.(proto.Message)
			if !ok {
				return nil, errNotProto
			}
			return proto.Marshal(pm)
		}, expiry)
		if fresh != nil {
			return fresh, nil
		}
		if err != nil {
			return nil, err
		}

		out := rule.New()
		if err := proto.Unmarshal(b, out); err != nil {
			// Stale or foreign bytes under our key; serve from the handler.
			return handler(ctx, req)
		}
		return out, nil
	}
}

// RequestKey returns "<fullMethod>:<xxh3-128 hex>" of the deterministic
// encoding of req.
func RequestKey(fullMethod string, req proto.Message) (string, error) {
	b, err := proto.MarshalOptions{Deterministic: true}.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := xxh3.Hash128(b).Bytes()
	return fullMethod + ":" + hex.EncodeToString(sum[:]), nil
}
