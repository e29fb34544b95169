package search

import (
	"strings"
	"sync"
)

// builderPool pools strings.Builder instances used to assemble clipped
// snippet text, avoiding a fresh allocation per matched field per
// candidate message during a search pass.
var builderPool = sync.Pool{
	New: func() any {
		b := &strings.Builder{}
		b.Grow(snippetBefore + snippetAfter)
		return b
	},
}

func getBuilder() *strings.Builder {
	return builderPool.Get().(*strings.Builder)
}

func putBuilder(b *strings.Builder) {
	b.Reset()
	builderPool.Put(b)
}
