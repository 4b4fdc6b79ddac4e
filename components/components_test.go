package components

import (
	"reflect"
	"testing"

	"github.com/erhlee-bird/vector/config"
)

func TestBuiltinsAreRegistered(t *testing.T) {
	sources := config.Types(config.CategorySource)
	transforms := config.Types(config.CategoryTransform)
	sinks := config.Types(config.CategorySink)
	want := struct{ sources, transforms, sinks []string }{
		sources:    []string{"file", "generator", "http_client", "redis", "socket", "stdin"},
		transforms: []string{"add_fields", "dedupe", "filter", "json_parser", "lua", "route", "sampler", "throttle"},
		sinks:      []string{"aws_s3", "blackhole", "console", "postgres", "redis", "sse"},
	}
	if !reflect.DeepEqual(sources, want.sources) {
		t.Errorf("sources = %v, want %v", sources, want.sources)
	}
	if !reflect.DeepEqual(transforms, want.transforms) {
		t.Errorf("transforms = %v, want %v", transforms, want.transforms)
	}
	if !reflect.DeepEqual(sinks, want.sinks) {
		t.Errorf("sinks = %v, want %v", sinks, want.sinks)
	}
}
