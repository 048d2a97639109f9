package stream_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/cecil-the-coder/convoy/pkg/stream"
)

// ExampleMap demonstrates transforming and collecting a stream
func ExampleMap() {
	doubled := stream.Map(stream.Of(1, 2, 3), func(v int) int { return v * 2 })

	values, err := stream.Collect(doubled)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println(values)

	// Output:
	// [2 4 6]
}

// ExampleFrom demonstrates normalizing the three shapes a result may take
func ExampleFrom() {
	ctx := context.Background()
	sources := []stream.Source[string]{
		stream.Eager("eager"),
		stream.Deferred(func(ctx context.Context) (string, error) { return "deferred", nil }),
		stream.Streaming(stream.Of("streaming", "twice")),
	}

	for _, src := range sources {
		values, _ := stream.Collect(stream.From(ctx, src))
		fmt.Printf("%s: %v\n", src.Kind(), values)
	}

	// Output:
	// eager: [eager]
	// deferred: [deferred]
	// streaming: [streaming twice]
}

// ExampleCatch demonstrates replacing a failure with a fallback stream
func ExampleCatch() {
	failing := stream.Fail[string](errors.New("connection refused"))

	recovered := stream.Catch(failing, func(err error) stream.Stream[string] {
		return stream.Of("fallback after: " + err.Error())
	})

	_ = stream.ForEach(recovered, func(v string) error {
		fmt.Println(v)
		return nil
	})

	// Output:
	// fallback after: connection refused
}
