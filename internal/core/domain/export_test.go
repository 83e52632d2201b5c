// export_test.go exports private functions for white-box testing.
package domain

// CycleChains exposes cycle chain extraction for testing.
func (g *Graph) CycleChains() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cycleChainsLocked()
}
