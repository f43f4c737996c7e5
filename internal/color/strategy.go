package color

import (
	"fmt"
	"strings"
)

// StrategyType defines how a participant is mapped onto the palette
type StrategyType string

const (
	StrategyPosition    StrategyType = "POSITION"
	StrategyParticipant StrategyType = "PARTICIPANT"
)

// Strategy is the interface that all color strategies must implement
type Strategy interface {
	// Pick returns the color for the participant at the given position
	Pick(index int, participantID string) Color

	// Type returns the type identifier for this strategy
	Type() StrategyType
}

// Factory creates color strategies based on the requested type
type Factory struct{}

// NewStrategyFactory creates a new factory instance
func NewStrategyFactory() *Factory {
	return &Factory{}
}

// Create returns the appropriate strategy implementation based on the type
func (f *Factory) Create(strategyType StrategyType) (Strategy, error) {
	switch strategyType {
	case StrategyPosition:
		return &PositionStrategy{}, nil
	case StrategyParticipant:
		return &ParticipantStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown color strategy: %s", strategyType)
	}
}

// CreateFromString creates a strategy from a config value such as "participant"
func (f *Factory) CreateFromString(strategyType string) (Strategy, error) {
	return f.Create(StrategyType(strings.ToUpper(strings.TrimSpace(strategyType))))
}
