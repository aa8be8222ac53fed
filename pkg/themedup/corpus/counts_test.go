package corpus

import "testing"

func TestCounterAddDocument(t *testing.T) {
	c := NewCounter()
	c.AddDocument(map[string]int{"shipping": 2, "slow": 1})
	c.AddDocument(map[string]int{"shipping": 1, "refund": 1, "ignored": 0})

	if c.TotalDocs() != 2 {
		t.Errorf("TotalDocs = %d, want 2", c.TotalDocs())
	}
	if c.TF["shipping"] != 3 || c.DF["shipping"] != 2 {
		t.Errorf("shipping tf/df = %d/%d, want 3/2", c.TF["shipping"], c.DF["shipping"])
	}
	if _, ok := c.DF["ignored"]; ok {
		t.Error("zero counts should not register a term")
	}
	if got := c.Docs["shipping"]; len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("shipping docs = %v", got)
	}
	if c.UniqueTerms() != 3 {
		t.Errorf("UniqueTerms = %d, want 3", c.UniqueTerms())
	}
	if c.TotalOccurrences() != 5 {
		t.Errorf("TotalOccurrences = %d, want 5", c.TotalOccurrences())
	}
}

func TestCounterPairOrderInsensitive(t *testing.T) {
	c := NewCounter()
	c.AddDocument(map[string]int{"alpha": 1, "beta": 1})
	c.AddDocument(map[string]int{"beta": 1, "alpha": 1, "gamma": 1})

	if got := c.GetPairCount("alpha", "beta"); got != 2 {
		t.Errorf("alpha/beta = %d, want 2", got)
	}
	if got := c.GetPairCount("beta", "alpha"); got != 2 {
		t.Errorf("beta/alpha = %d, want 2", got)
	}
	if got := c.GetPairCount("alpha", "delta"); got != 0 {
		t.Errorf("unseen pair = %d, want 0", got)
	}
}
