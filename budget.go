package spfeval

// lookupLimit is the number of DNS-querying terms a single check_host()
// evaluation may process, includes and redirects included.
const lookupLimit = 10

// budget is shared by pointer between a top-level evaluation and every
// evaluation it spawns through include and redirect.
type budget struct {
	lookups int
	visited map[string]struct{}
}

func newBudget() *budget {
	return &budget{visited: make(map[string]struct{}, 8)}
}

// consume accounts for one DNS-querying term.
func (b *budget) consume() {
	b.lookups++
}

func (b *budget) exceeded() bool {
	return b.lookups > lookupLimit
}

// visit marks domain as visited. It returns false if domain has already been
// visited during this evaluation.
func (b *budget) visit(domain string) bool {
	key := normalizeDomain(domain)
	if _, ok := b.visited[key]; ok {
		return false
	}
	b.visited[key] = struct{}{}
	return true
}
