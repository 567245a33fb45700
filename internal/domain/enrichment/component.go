// Package enrichment holds the core types shared by every layer of the
// request manager: the Component extensibility point, the Request record,
// its single-assignment completion Future, the error-kind registry, and
// declared-license payload parsing. It has no dependency on infrastructure.
package enrichment

// Component is the caller-owned record a Request enriches. It is the
// core's only extensibility point into caller data: add a named string
// property. The core never otherwise inspects or type-asserts it.
type Component interface {
	AddProperty(name, value string)
}
