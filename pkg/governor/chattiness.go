package governor

// DefaultChattinessLevel is assumed when a tenant configures an unrecognized
// level. The substitution is logged as a warning so a misconfigured tenant is
// visible upstream rather than silently coerced.
const DefaultChattinessLevel = 2

// casualTurnBudgets maps a tenant-configured chattiness level to the number
// of non-business conversational turns tolerated before redirecting.
var casualTurnBudgets = map[int]int{
	0: 0,
	1: 1,
	2: 2,
	3: 4,
}

// TurnDecision is the outcome of a casual-turn budget check
type TurnDecision struct {
	WithinLimit    bool `json:"within_limit"`
	ShouldRedirect bool `json:"should_redirect"`
	MaxAllowed     int  `json:"max_allowed"`
	CasualTurns    int  `json:"casual_turns"`
}

// CheckCasualTurnLimit applies the chattiness budget for the tenant's level.
// Unknown levels fall back to the default level's budget.
func (g *Governor) CheckCasualTurnLimit(casualTurns, chattinessLevel int) TurnDecision {
	maxAllowed, ok := casualTurnBudgets[chattinessLevel]
	if !ok {
		g.logger.Warn("Unrecognized chattiness level, using default budget",
			"chattiness_level", chattinessLevel,
			"default_level", DefaultChattinessLevel,
		)
		maxAllowed = casualTurnBudgets[DefaultChattinessLevel]
	}

	within := casualTurns <= maxAllowed
	return TurnDecision{
		WithinLimit:    within,
		ShouldRedirect: !within,
		MaxAllowed:     maxAllowed,
		CasualTurns:    casualTurns,
	}
}
