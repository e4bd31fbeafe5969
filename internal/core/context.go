package core

import "sdata.ir/ai-chat/internal/store"

// ContextWindowSize bounds how much history rides along on a generation
// call. The window is the chat's most recent messages, not its oldest.
const ContextWindowSize = 10

// Turn is one role-tagged entry of the generation payload.
type Turn struct {
	Role string
	Text string
}

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// BuildContextWindow converts the newest-first messages returned by
// store.LatestMessages into the ascending role-tagged sequence the
// generation call expects. AI messages map to the model role, everything
// else to the user role. The just-persisted user message is the newest
// record, so it lands as the window's final turn.
func BuildContextWindow(latest []store.Message) []Turn {
	turns := make([]Turn, 0, len(latest))
	for i := len(latest) - 1; i >= 0; i-- {
		role := RoleUser
		if latest[i].IsAI {
			role = RoleModel
		}
		turns = append(turns, Turn{Role: role, Text: latest[i].Content})
	}
	return turns
}
