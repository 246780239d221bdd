package main

import "strings"

// GamePhase drives which client actions are currently valid.
type GamePhase string

const (
	PhaseLobby          GamePhase = "lobby"
	PhaseCategorySelect GamePhase = "category_select"
	PhaseAnswering      GamePhase = "answering"
	PhaseVoting         GamePhase = "voting"
	PhaseVoteResults    GamePhase = "vote_results"
	PhaseRoundScores    GamePhase = "round_scores"
	PhaseFinalScores    GamePhase = "final_scores"
)

// Player is one participant. The ID is the browser-stable identity, not
// the websocket connection, so a refresh re-binds to the same record.
type Player struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Score       int    `json:"score"`
	IsHost      bool   `json:"isHost"`
	IsAudience  bool   `json:"isAudience"`
	IsConnected bool   `json:"isConnected"`
	IsDummy     bool   `json:"isDummy,omitempty"`
}

// PromptContext is the flavor payload attached to each prompt.
type PromptContext struct {
	Snippet      string   `json:"snippet"`
	Date         string   `json:"date"`
	Participants []string `json:"participants"`
}

type Prompt struct {
	ID            string        `json:"id"`
	Category      string        `json:"category"`
	Prompt        string        `json:"prompt"`
	Context       PromptContext `json:"context"`
	ImageURL      string        `json:"imageUrl,omitempty"`
	IsImagePrompt bool          `json:"isImagePrompt,omitempty"`
}

type Answer struct {
	PromptID   string   `json:"promptId"`
	PlayerID   string   `json:"playerId"`
	PlayerName string   `json:"playerName"`
	Text       string   `json:"text"`
	Votes      int      `json:"votes"`
	VoterIDs   []string `json:"voterIds"`
}

// VotingRound is the matchup currently on screen: two answers in normal
// rounds, every answer in the caption round.
type VotingRound struct {
	PromptID       string   `json:"promptId"`
	Prompt         Prompt   `json:"prompt"`
	Answers        []Answer `json:"answers"`
	VotedPlayerIDs []string `json:"votedPlayerIds"`
	IsFinalRound   bool     `json:"isFinalRound"`
}

func (v *VotingRound) hasVoted(playerID string) bool {
	for _, id := range v.VotedPlayerIDs {
		if id == playerID {
			return true
		}
	}
	return false
}

func (v *VotingRound) hasAnswerBy(playerID string) bool {
	for _, a := range v.Answers {
		if a.PlayerID == playerID {
			return true
		}
	}
	return false
}

// GameConfig is fixed for the lifetime of a room.
type GameConfig struct {
	AnswerTimeSeconds    int `json:"answerTimeSeconds"`
	VoteTimeSeconds      int `json:"voteTimeSeconds"`
	FinalVoteTimeSeconds int `json:"finalVoteTimeSeconds"`
	ResultsTimeSeconds   int `json:"resultsTimeSeconds"`
	MinPlayers           int `json:"minPlayers"`
	MaxActivePlayers     int `json:"maxActivePlayers"`
	RoundsPerGame        int `json:"roundsPerGame"`
}

// GameState is the canonical record of one game session. It doubles as
// the wire format of the state_update broadcast, so the JSON field names
// are part of the protocol. Mutated only by the owning room loop.
type GameState struct {
	RoomID             string              `json:"roomId"`
	Phase              GamePhase           `json:"phase"`
	Players            []*Player           `json:"players"`
	SelectedCategories []string            `json:"selectedCategories"`
	CurrentRound       int                 `json:"currentRound"`
	TotalRounds        int                 `json:"totalRounds"`
	CurrentPromptIndex int                 `json:"currentPromptIndex"`
	Prompts            []Prompt            `json:"prompts"`
	PromptAssignments  map[string][]string `json:"promptAssignments"`
	Answers            []Answer            `json:"answers"`
	CurrentVotingRound *VotingRound        `json:"currentVotingRound"`
	Timer              int                 `json:"timer"`
	Config             GameConfig          `json:"config"`
}

func newGameState(roomID string, config GameConfig) *GameState {
	return &GameState{
		RoomID:             roomID,
		Phase:              PhaseLobby,
		Players:            []*Player{},
		SelectedCategories: []string{},
		TotalRounds:        config.RoundsPerGame,
		Prompts:            []Prompt{},
		PromptAssignments:  map[string][]string{},
		Answers:            []Answer{},
		Config:             config,
	}
}

func (s *GameState) player(id string) *Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *GameState) playerByName(name string) *Player {
	for _, p := range s.Players {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

func (s *GameState) activePlayers() []*Player {
	active := make([]*Player, 0, len(s.Players))
	for _, p := range s.Players {
		if !p.IsAudience {
			active = append(active, p)
		}
	}
	return active
}

func (s *GameState) answersFor(promptID string) []Answer {
	matched := make([]Answer, 0, 2)
	for _, a := range s.Answers {
		if a.PromptID == promptID {
			matched = append(matched, a)
		}
	}
	return matched
}

func (s *GameState) hasAnswer(promptID, playerID string) bool {
	for _, a := range s.Answers {
		if a.PromptID == promptID && a.PlayerID == playerID {
			return true
		}
	}
	return false
}

func (s *GameState) isAssigned(playerID, promptID string) bool {
	for _, id := range s.PromptAssignments[playerID] {
		if id == promptID {
			return true
		}
	}
	return false
}

// expectedAnswers is the total number of submissions the current round
// can produce: one per (player, prompt) assignment. Two per prompt in
// normal rounds, one per active player in the caption round.
func (s *GameState) expectedAnswers() int {
	total := 0
	for _, promptIDs := range s.PromptAssignments {
		total += len(promptIDs)
	}
	return total
}

// isFinalRound reports whether the round in progress is the shared-image
// caption round with multi-vote scoring.
func (s *GameState) isFinalRound() bool {
	return s.CurrentRound == s.TotalRounds
}

// rebindPlayer moves every reference to a player's previous stable id to
// a new one, so a name-matched reconnect from a fresh browser keeps its
// assignments and any answers already submitted.
func (s *GameState) rebindPlayer(oldID, newID string) {
	if oldID == newID {
		return
	}
	if promptIDs, ok := s.PromptAssignments[oldID]; ok {
		s.PromptAssignments[newID] = promptIDs
		delete(s.PromptAssignments, oldID)
	}
	for i := range s.Answers {
		if s.Answers[i].PlayerID == oldID {
			s.Answers[i].PlayerID = newID
		}
	}
	if v := s.CurrentVotingRound; v != nil {
		for i := range v.Answers {
			if v.Answers[i].PlayerID == oldID {
				v.Answers[i].PlayerID = newID
			}
		}
		for i := range v.VotedPlayerIDs {
			if v.VotedPlayerIDs[i] == oldID {
				v.VotedPlayerIDs[i] = newID
			}
		}
	}
}
