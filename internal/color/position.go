package color

// PositionStrategy colors a participant by their position in the fetched record list.
// Colors shift when the fetch order changes between reloads.
type PositionStrategy struct{}

// Type returns the strategy type identifier
func (s *PositionStrategy) Type() StrategyType {
	return StrategyPosition
}

// Pick returns the palette color at index
func (s *PositionStrategy) Pick(index int, _ string) Color {
	return Assign(index)
}
