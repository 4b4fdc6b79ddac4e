package config

import (
	"fmt"
	"sort"
	"sync"
)

type Category string

const (
	CategorySource    Category = "source"
	CategoryTransform Category = "transform"
	CategorySink      Category = "sink"
)

// Factories return a new configuration value, with defaults applied, for
// the YAML decoder to fill in.
type (
	SourceFactory    func() SourceConfig
	TransformFactory func() TransformConfig
	SinkFactory      func() SinkConfig
)

var registryMu sync.RWMutex

var (
	sourceRegistry    = map[string]SourceFactory{}
	transformRegistry = map[string]TransformFactory{}
	sinkRegistry      = map[string]SinkFactory{}
)

// RegisterSource makes a source kind available under tag. It is meant to be
// called from init functions and panics if the tag is already taken.
func RegisterSource(tag string, factory SourceFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := sourceRegistry[tag]; dup {
		panic(fmt.Sprintf("config: source type %q registered twice", tag))
	}
	sourceRegistry[tag] = factory
}

func RegisterTransform(tag string, factory TransformFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := transformRegistry[tag]; dup {
		panic(fmt.Sprintf("config: transform type %q registered twice", tag))
	}
	transformRegistry[tag] = factory
}

func RegisterSink(tag string, factory SinkFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := sinkRegistry[tag]; dup {
		panic(fmt.Sprintf("config: sink type %q registered twice", tag))
	}
	sinkRegistry[tag] = factory
}

func newSourceConfig(tag string) (SourceConfig, error) {
	registryMu.RLock()
	factory, ok := sourceRegistry[tag]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnknownComponentError{Category: CategorySource, Tag: tag}
	}
	return factory(), nil
}

func newTransformConfig(tag string) (TransformConfig, error) {
	registryMu.RLock()
	factory, ok := transformRegistry[tag]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnknownComponentError{Category: CategoryTransform, Tag: tag}
	}
	return factory(), nil
}

func newSinkConfig(tag string) (SinkConfig, error) {
	registryMu.RLock()
	factory, ok := sinkRegistry[tag]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnknownComponentError{Category: CategorySink, Tag: tag}
	}
	return factory(), nil
}

// Types lists the registered tags of a category, sorted.
func Types(category Category) []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	var tags []string
	switch category {
	case CategorySource:
		for tag := range sourceRegistry {
			tags = append(tags, tag)
		}
	case CategoryTransform:
		for tag := range transformRegistry {
			tags = append(tags, tag)
		}
	case CategorySink:
		for tag := range sinkRegistry {
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags
}
