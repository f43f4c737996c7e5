package color

import "github.com/cespare/xxhash/v2"

// ParticipantStrategy colors a participant by a hash of their stable id,
// so the color survives reordering of the record list.
type ParticipantStrategy struct{}

// Type returns the strategy type identifier
func (s *ParticipantStrategy) Type() StrategyType {
	return StrategyParticipant
}

// Pick ignores the position and hashes the participant id
func (s *ParticipantStrategy) Pick(_ int, participantID string) Color {
	return ForParticipant(participantID)
}

// ForParticipant returns the palette color for a participant id
func ForParticipant(participantID string) Color {
	return Assign(int(xxhash.Sum64String(participantID) % uint64(len(palette))))
}
