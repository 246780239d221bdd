package main

// Messages coming from clients
type ClientMessage struct {
	Type          string         `json:"type"`                    // "join", "select_categories", "start_game", "submit_answer", "submit_vote", "submit_multi_vote", "next_prompt", "next_round", "restart_game", "add_dummy_players", "ping"
	PlayerName    string         `json:"playerName,omitempty"`    // join
	Categories    []string       `json:"categories,omitempty"`    // select_categories
	PromptID      string         `json:"promptId,omitempty"`      // submit_answer
	Answer        string         `json:"answer,omitempty"`        // submit_answer
	VotedPlayerID string         `json:"votedPlayerId,omitempty"` // submit_vote
	Votes         map[string]int `json:"votes,omitempty"`         // submit_multi_vote: answer owner -> vote count
	Count         int            `json:"count,omitempty"`         // add_dummy_players
}

// StateMessage carries the full authoritative room state to every client.
type StateMessage struct {
	Type  string     `json:"type"` // "state_update"
	State *GameState `json:"state"`
}

// PromptsMessage is sent only to the owning player, so nobody sees
// anyone else's prompts before answering closes.
type PromptsMessage struct {
	Type    string   `json:"type"` // "your_prompts"
	Prompts []Prompt `json:"prompts"`
}

type TimerMessage struct {
	Type    string `json:"type"` // "timer_tick"
	Seconds int    `json:"seconds"`
}

// ErrorMessage is always private to the client whose action was rejected.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

type PongMessage struct {
	Type string `json:"type"` // "pong"
}
