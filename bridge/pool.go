package bridge

import (
	"github.com/ngaut/tokenlimiter"
)

// Pool bounds the number of concurrently running background tasks.
// Go blocks once the limit is reached, which backpressures submitters
// instead of growing an unbounded goroutine pile.
type Pool struct {
	limiter *tokenlimiter.TokenLimiter
}

func NewPool(concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = 100
	}
	return &Pool{
		limiter: tokenlimiter.NewTokenLimiter(concurrency),
	}
}

func (p *Pool) Go(fn func()) {
	token := p.limiter.Get()
	go func() {
		defer p.limiter.Put(token)
		fn()
	}()
}
