package transport

// Middleware decorates a Converter.
type Middleware func(Converter) Converter

// Chain returns a middleware that applies mws with the first one
// outermost: Chain(a, b)(c) converts through a, then b, then c.
func Chain(mws ...Middleware) Middleware {
	return func(c Converter) Converter {
		for i := range mws {
			c = mws[len(mws)-1-i](c)
		}
		return c
	}
}
