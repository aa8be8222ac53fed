package corpus

// Counter maintains corpus-wide keyword statistics.
// Pair co-occurrence is derived from Docs on demand, so adding a document
// costs time linear in its distinct terms.
type Counter struct {
	N    int64            // total number of documents
	TF   map[string]int64 // corpus-wide occurrence count per term
	DF   map[string]int64 // document frequency per term
	Docs map[string][]int // document indexes containing each term, ascending
}

// NewCounter creates a new co-occurrence counter
func NewCounter() *Counter {
	return &Counter{
		TF:   make(map[string]int64),
		DF:   make(map[string]int64),
		Docs: make(map[string][]int),
	}
}

// AddDocument updates counts for one document given its per-term counts
func (c *Counter) AddDocument(counts map[string]int) {
	doc := int(c.N)
	c.N++

	for t, n := range counts {
		if n <= 0 {
			continue
		}
		c.TF[t] += int64(n)
		c.DF[t]++
		c.Docs[t] = append(c.Docs[t], doc)
	}
}

// GetPairCount returns the number of documents containing both terms
func (c *Counter) GetPairCount(t1, t2 string) int64 {
	if t1 == t2 {
		return 0
	}
	a, b := c.Docs[t1], c.Docs[t2]
	var n int64
	for i, j := 0, 0; i < len(a) && j < len(b); {
		switch {
		case a[i] == b[j]:
			n++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return n
}

// TotalDocs returns the total number of documents processed
func (c *Counter) TotalDocs() int64 {
	return c.N
}

// UniqueTerms returns the number of distinct terms
func (c *Counter) UniqueTerms() int {
	return len(c.DF)
}

// TotalOccurrences returns the sum of all term counts
func (c *Counter) TotalOccurrences() int64 {
	var total int64
	for _, n := range c.TF {
		total += n
	}
	return total
}
