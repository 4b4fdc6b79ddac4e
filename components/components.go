// Package components registers every built-in source, transform and sink.
// Import it for its side effects.
package components

import (
	_ "github.com/erhlee-bird/vector/sinks/awss3"
	_ "github.com/erhlee-bird/vector/sinks/blackhole"
	_ "github.com/erhlee-bird/vector/sinks/console"
	_ "github.com/erhlee-bird/vector/sinks/postgres"
	_ "github.com/erhlee-bird/vector/sinks/redis"
	_ "github.com/erhlee-bird/vector/sinks/sse"
	_ "github.com/erhlee-bird/vector/sources/file"
	_ "github.com/erhlee-bird/vector/sources/generator"
	_ "github.com/erhlee-bird/vector/sources/httpclient"
	_ "github.com/erhlee-bird/vector/sources/redis"
	_ "github.com/erhlee-bird/vector/sources/socket"
	_ "github.com/erhlee-bird/vector/sources/stdin"
	_ "github.com/erhlee-bird/vector/transforms/addfields"
	_ "github.com/erhlee-bird/vector/transforms/dedupe"
	_ "github.com/erhlee-bird/vector/transforms/filter"
	_ "github.com/erhlee-bird/vector/transforms/jsonparser"
	_ "github.com/erhlee-bird/vector/transforms/lua"
	_ "github.com/erhlee-bird/vector/transforms/route"
	_ "github.com/erhlee-bird/vector/transforms/sampler"
	_ "github.com/erhlee-bird/vector/transforms/throttle"
)
