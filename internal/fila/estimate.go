package fila

// EstimateWait returns the expected wait in seconds for a client holding
// clientTurn while the queue serves currentTurn: the historical average
// service time per resolved turn, multiplied by the turns still ahead.
// With no resolved history there is nothing to extrapolate from and the
// estimate is zero. Integer arithmetic throughout; the average truncates.
// The result is not clamped, so a non-positive value means the client's
// turn has already arrived.
func EstimateWait(accumulatedWait, resolvedTurns, currentTurn, clientTurn int) int {
	if resolvedTurns == 0 {
		return 0
	}
	return accumulatedWait / resolvedTurns * (clientTurn - currentTurn)
}
