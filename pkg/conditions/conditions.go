// Package conditions provides reusable pipeline.Condition implementations that
// decide whether a plugin applies to a request.
package conditions

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/cecil-the-coder/convoy/pkg/pipeline"
	"github.com/cecil-the-coder/convoy/pkg/stream"
	"github.com/cecil-the-coder/convoy/pkg/types"
)

// Predicate is a synchronous decision over a request
type Predicate func(req *types.Request) bool

// ShouldHandle implements pipeline.Condition
func (p Predicate) ShouldHandle(_ context.Context, args pipeline.ConditionArgs) stream.Source[bool] {
	return stream.Eager(p(args.Request))
}

// MatchMethod matches requests using any of the given methods
func MatchMethod(methods ...types.Method) Predicate {
	set := make(map[types.Method]struct{}, len(methods))
	for _, m := range methods {
		set[types.Method(strings.ToUpper(string(m)))] = struct{}{}
	}
	return func(req *types.Request) bool {
		_, ok := set[types.Method(strings.ToUpper(string(req.Method)))]
		return ok
	}
}

// MatchOrigin matches requests whose URL scheme and host equal one of origins,
// given as "https://api.example.com". Comparison ignores case.
func MatchOrigin(origins ...string) Predicate {
	set := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if key, ok := originOf(o); ok {
			set[key] = struct{}{}
		}
	}
	return func(req *types.Request) bool {
		key, ok := originOf(req.URL)
		if !ok {
			return false
		}
		_, found := set[key]
		return found
	}
}

func originOf(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), true
}

// MatchPath matches requests whose URL path matches one of the shell patterns
// accepted by path.Match, for example "/api/*".
func MatchPath(patterns ...string) Predicate {
	return func(req *types.Request) bool {
		u, err := url.Parse(req.URL)
		if err != nil {
			return false
		}
		p := u.Path
		if p == "" {
			p = "/"
		}
		for _, pattern := range patterns {
			if ok, _ := path.Match(pattern, p); ok {
				return true
			}
		}
		return false
	}
}

// All matches when every condition answers true. It stops at the first false.
// With no conditions it always matches.
func All(conds ...pipeline.Condition) pipeline.Condition {
	return pipeline.ConditionFunc(func(ctx context.Context, args pipeline.ConditionArgs) stream.Source[bool] {
		return stream.Deferred(func(ctx context.Context) (bool, error) {
			for _, c := range conds {
				ok, err := evaluate(ctx, c, args)
				if err != nil || !ok {
					return false, err
				}
			}
			return true, nil
		})
	})
}

// Any matches when at least one condition answers true. It stops at the
// first true. With no conditions it never matches.
func Any(conds ...pipeline.Condition) pipeline.Condition {
	return pipeline.ConditionFunc(func(ctx context.Context, args pipeline.ConditionArgs) stream.Source[bool] {
		return stream.Deferred(func(ctx context.Context) (bool, error) {
			for _, c := range conds {
				ok, err := evaluate(ctx, c, args)
				if err != nil || ok {
					return ok, err
				}
			}
			return false, nil
		})
	})
}

// Not inverts cond
func Not(cond pipeline.Condition) pipeline.Condition {
	return pipeline.ConditionFunc(func(ctx context.Context, args pipeline.ConditionArgs) stream.Source[bool] {
		return stream.Deferred(func(ctx context.Context) (bool, error) {
			ok, err := evaluate(ctx, cond, args)
			return !ok, err
		})
	})
}

// evaluate resolves the first answer of c
func evaluate(ctx context.Context, c pipeline.Condition, args pipeline.ConditionArgs) (bool, error) {
	if p, ok := c.(Predicate); ok {
		return p(args.Request), nil
	}
	s := stream.FailIfEmpty(stream.From(ctx, c.ShouldHandle(ctx, args)), pipeline.ErrConditionEmpty)
	defer func() { _ = s.Close() }()
	return s.Next()
}
