// Partyprompt prompt game
//
// One shared "host" screen and a handful of phones join the same room.
// The game runs a fixed number of rounds: in each, every active player
// writes answers to prompts, then the group votes on head-to-head
// matchups. The last round swaps text prompts for a single shared image
// everyone captions, voted on with a 3-vote allocation.
//
// Features:
// - WebSockets per game ID: /play/:gameid/ws (and a host view at /host)
// - The host display registers with ?host=true; host authority follows
//   its stable cookie identity across reconnects
// - Players identified by cookie, so refreshes rejoin instead of duplicating
// - Players beyond the active cap join as audience and only vote
// - Prompts are paired round-robin so every prompt gets exactly two authors
// - Per-room prompt history is durable, with reset-on-exhaustion
// - Dummy players can be added from the host for testing; they answer
//   and vote on their own
// - In-browser QR button to share the current session, backed by go-qrcode

package main

import (
	"math/rand"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	pointsPerVote      = 100
	finalPointsPerVote = 200
	allVotesBonus      = 250

	maxDummyPlayersPerAdd = 8
	maxSelectedCategories = 3

	noAnswerText = "(No answer)"
)

// envelope pairs a decoded client message with its sender.
type envelope struct {
	client *Client
	msg    ClientMessage
}

// Room owns one game session. All state mutation happens on the run
// goroutine, which selects over registrations, client messages, deferred
// tasks, and the timer tick, so no two mutations ever interleave.
type Room struct {
	id      string
	cfg     *Config
	bank    *promptBank
	state   *GameState
	clients map[*Client]bool

	// Stable identity of the dedicated host display, set by the
	// ?host=true connection flag. Host-gated actions also accept any
	// player whose record carries IsHost, so a hostless room can still
	// be driven from its first player's phone.
	hostID string

	timer   countdown
	dummies int

	register chan *Client
	unreg    chan *Client
	inbox    chan envelope
	tasks    chan func()
	done     chan struct{}

	lastActive atomic.Int64 // unix seconds, read by the reaper
}

func newRoom(cfg *Config, bank *promptBank, id string) *Room {
	r := &Room{
		id:       id,
		cfg:      cfg,
		bank:     bank,
		state:    newGameState(id, cfg.gameConfig()),
		clients:  make(map[*Client]bool),
		register: make(chan *Client),
		unreg:    make(chan *Client),
		inbox:    make(chan envelope, 64),
		tasks:    make(chan func(), 16),
		done:     make(chan struct{}),
	}
	r.touch()
	return r
}

func (r *Room) touch() {
	r.lastActive.Store(time.Now().Unix())
}

func (r *Room) idleSince() time.Time {
	return time.Unix(r.lastActive.Load(), 0)
}

func (r *Room) run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			for c := range r.clients {
				close(c.send)
				if c.conn != nil {
					_ = c.conn.Close()
				}
				delete(r.clients, c)
			}
			return

		case <-ticker.C:
			r.tickTimer()

		case c := <-r.register:
			r.handleRegister(c)

		case c := <-r.unreg:
			r.handleUnregister(c)

		case env := <-r.inbox:
			r.dispatch(env.client, env.msg)

		case task := <-r.tasks:
			task()
		}
	}
}

// stop shuts the room down; used by the reaper. Idempotent via the
// manager, which removes the room from its map before calling it.
func (r *Room) stop() {
	close(r.done)
}

// enqueue hands a closure to the room loop. Used by delayed side effects
// (dummy vote scheduling) that must not mutate state from their own
// goroutine.
func (r *Room) enqueue(task func()) {
	select {
	case r.tasks <- task:
	case <-r.done:
	}
}

// dispatch is the single entry point for client actions. Every handler
// below validates phase and actor before touching state.
func (r *Room) dispatch(c *Client, msg ClientMessage) {
	r.touch()

	switch msg.Type {
	case "ping":
		r.sendTo(c, PongMessage{Type: "pong"})
	case "join":
		r.handleJoin(c, msg.PlayerName)
	case "select_categories":
		r.handleSelectCategories(c, msg.Categories)
	case "start_game":
		r.handleStartGame(c)
	case "submit_answer":
		r.handleSubmitAnswer(c, msg.PromptID, msg.Answer)
	case "submit_vote":
		r.handleSubmitVote(c, msg.VotedPlayerID)
	case "submit_multi_vote":
		r.handleSubmitMultiVote(c, msg.Votes)
	case "next_prompt":
		r.handleNextPrompt(c)
	case "next_round":
		r.handleNextRound(c)
	case "restart_game":
		r.handleRestartGame(c)
	case "add_dummy_players":
		r.handleAddDummyPlayers(c, msg.Count)
	default:
		// ignore unknown types
	}
}

func (r *Room) handleRegister(c *Client) {
	r.touch()

	if c.isHostDisplay && c.playerID != "" {
		r.hostID = c.playerID
		logf(r.cfg, "GAMES: Host display connected to %s", r.id)
	}

	r.clients[c] = true

	// If this identity already has a player record, a refresh or second
	// tab shouldn't leave them showing as disconnected.
	if player := r.state.player(c.playerID); player != nil && !player.IsConnected {
		player.IsConnected = true
		r.broadcastState()
		return
	}

	r.sendTo(c, StateMessage{Type: "state_update", State: r.state})
}

func (r *Room) handleUnregister(c *Client) {
	r.touch()

	if _, ok := r.clients[c]; ok {
		delete(r.clients, c)
		close(c.send)
	}

	// Another tab may share the same identity; only mark the player
	// disconnected once the last connection is gone.
	for other := range r.clients {
		if other.playerID == c.playerID {
			return
		}
	}

	if player := r.state.player(c.playerID); player != nil && player.IsConnected {
		player.IsConnected = false
		r.broadcastState()
	}
}

// isHostClient reports host authority via either mechanism: the stable
// identity registered by the host display, or a player record flagged
// IsHost (the first human to join a hostless room).
func (r *Room) isHostClient(c *Client) bool {
	if r.hostID != "" && c.playerID == r.hostID {
		return true
	}

	player := r.state.player(c.playerID)
	return player != nil && player.IsHost
}

func (r *Room) handleJoin(c *Client, name string) {
	name = strings.TrimSpace(name)
	if name == "" || c.playerID == "" {
		return
	}

	existing := r.state.player(c.playerID)
	if existing == nil {
		if byName := r.state.playerByName(name); byName != nil {
			// A connected player's name can't be claimed by a second
			// device; a disconnected one is treated as a reconnect.
			if byName.IsConnected {
				r.sendTo(c, ErrorMessage{Type: "error", Message: "That name is already taken"})
				return
			}
			existing = byName
		}
	}

	if existing != nil {
		r.state.rebindPlayer(existing.ID, c.playerID)
		existing.ID = c.playerID
		existing.IsConnected = true
		r.broadcastState()
		return
	}

	active := r.state.activePlayers()
	player := &Player{
		ID:          c.playerID,
		Name:        name,
		IsHost:      len(r.state.Players) == 0,
		IsAudience:  len(active) >= r.state.Config.MaxActivePlayers,
		IsConnected: true,
	}

	r.state.Players = append(r.state.Players, player)
	logf(r.cfg, "GAMES: Player %q joined %s", name, r.id)
	r.broadcastState()
}

func (r *Room) handleSelectCategories(c *Client, categories []string) {
	if !r.isHostClient(c) {
		return
	}
	if r.state.Phase != PhaseLobby && r.state.Phase != PhaseCategorySelect {
		return
	}

	if len(categories) > maxSelectedCategories {
		categories = categories[:maxSelectedCategories]
	}

	r.state.SelectedCategories = categories
	r.state.Phase = PhaseCategorySelect
	r.broadcastState()
}

func (r *Room) handleStartGame(c *Client) {
	if !r.isHostClient(c) {
		return
	}
	if r.state.Phase != PhaseLobby && r.state.Phase != PhaseCategorySelect {
		return
	}

	if len(r.state.activePlayers()) < r.state.Config.MinPlayers {
		r.sendTo(c, ErrorMessage{
			Type:    "error",
			Message: "Need at least " + strconv.Itoa(r.state.Config.MinPlayers) + " players to start",
		})
		return
	}

	if len(r.state.SelectedCategories) == 0 {
		r.sendTo(c, ErrorMessage{Type: "error", Message: "Please select at least one category"})
		return
	}

	r.startRound()
}

// startRound advances to the next round and hands out prompts. The
// final round assigns one shared image prompt to every active player;
// earlier rounds pair each category prompt with exactly two authors.
func (r *Room) startRound() {
	s := r.state

	s.CurrentRound++
	s.CurrentPromptIndex = 0
	s.Answers = []Answer{}
	s.PromptAssignments = map[string][]string{}

	active := s.activePlayers()
	playerIDs := make([]string, 0, len(active))
	for _, p := range active {
		playerIDs = append(playerIDs, p.ID)
	}

	if s.isFinalRound() {
		prompt := r.bank.captionPrompt(r.cfg, r.id)
		s.Prompts = []Prompt{prompt}
		for _, id := range playerIDs {
			s.PromptAssignments[id] = []string{prompt.ID}
		}
	} else {
		categoryIndex := min(s.CurrentRound-1, len(s.SelectedCategories)-1)
		category := s.SelectedCategories[categoryIndex]

		available := r.bank.availablePrompts(r.cfg, r.id, category)
		shufflePrompts(available)
		if len(available) > len(playerIDs) {
			available = available[:len(playerIDs)]
		}
		s.Prompts = available

		promptIDs := make([]string, 0, len(available))
		for _, p := range available {
			promptIDs = append(promptIDs, p.ID)
		}
		r.bank.markPromptsUsed(r.cfg, r.id, category, promptIDs)

		// Round-robin pairing: prompt i goes to players i%n and
		// (i+1)%n, so every prompt has exactly two authors and every
		// player answers two prompts.
		for i, prompt := range s.Prompts {
			first := playerIDs[i%len(playerIDs)]
			second := playerIDs[(i+1)%len(playerIDs)]
			s.PromptAssignments[first] = append(s.PromptAssignments[first], prompt.ID)
			s.PromptAssignments[second] = append(s.PromptAssignments[second], prompt.ID)
		}
	}

	s.Phase = PhaseAnswering
	r.broadcastState()
	r.sendAssignedPrompts()
	r.submitDummyAnswers()

	r.startTimer(s.Config.AnswerTimeSeconds, r.endAnswering)
}

// sendAssignedPrompts delivers each player's own prompts privately.
func (r *Room) sendAssignedPrompts() {
	s := r.state

	for _, player := range s.activePlayers() {
		promptIDs := s.PromptAssignments[player.ID]
		if len(promptIDs) == 0 {
			continue
		}

		prompts := make([]Prompt, 0, len(promptIDs))
		for _, prompt := range s.Prompts {
			if s.isAssigned(player.ID, prompt.ID) {
				prompts = append(prompts, prompt)
			}
		}

		for c := range r.clients {
			if c.playerID == player.ID {
				r.sendTo(c, PromptsMessage{Type: "your_prompts", Prompts: prompts})
			}
		}
	}
}

func (r *Room) handleSubmitAnswer(c *Client, promptID, text string) {
	s := r.state
	if s.Phase != PhaseAnswering {
		return
	}

	player := s.player(c.playerID)
	if player == nil || player.IsAudience {
		return
	}
	if !s.isAssigned(player.ID, promptID) {
		return
	}
	// A second submission for the same prompt is a no-op, not an error.
	if s.hasAnswer(promptID, player.ID) {
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		text = noAnswerText
	}

	s.Answers = append(s.Answers, Answer{
		PromptID:   promptID,
		PlayerID:   player.ID,
		PlayerName: player.Name,
		Text:       text,
		VoterIDs:   []string{},
	})
	r.broadcastState()

	if len(s.Answers) >= s.expectedAnswers() {
		r.cancelTimer()
		r.endAnswering()
	}
}

// endAnswering backfills a placeholder for every assigned player who
// never submitted, so voting can't stall on missing answers.
func (r *Room) endAnswering() {
	s := r.state

	for playerID, promptIDs := range s.PromptAssignments {
		for _, promptID := range promptIDs {
			if s.hasAnswer(promptID, playerID) {
				continue
			}

			name := "Unknown"
			if player := s.player(playerID); player != nil {
				name = player.Name
			}

			s.Answers = append(s.Answers, Answer{
				PromptID:   promptID,
				PlayerID:   playerID,
				PlayerName: name,
				Text:       noAnswerText,
				VoterIDs:   []string{},
			})
		}
	}

	r.startVotingRound()
}

// startVotingRound selects the next prompt with enough answers to vote
// on; prompts with fewer than two are skipped. Past the last prompt the
// round is over.
func (r *Room) startVotingRound() {
	s := r.state

	var promptAnswers []Answer
	for {
		if s.CurrentPromptIndex >= len(s.Prompts) {
			r.showRoundScores()
			return
		}

		promptAnswers = s.answersFor(s.Prompts[s.CurrentPromptIndex].ID)
		if len(promptAnswers) >= 2 {
			break
		}

		s.CurrentPromptIndex++
	}

	prompt := s.Prompts[s.CurrentPromptIndex]
	isFinal := s.isFinalRound()

	if !isFinal {
		promptAnswers = promptAnswers[:2]
	}

	s.CurrentVotingRound = &VotingRound{
		PromptID:       prompt.ID,
		Prompt:         prompt,
		Answers:        promptAnswers,
		VotedPlayerIDs: []string{},
		IsFinalRound:   isFinal,
	}
	s.Phase = PhaseVoting
	r.broadcastState()

	// Dummy voters "think" for a moment before voting.
	delay := time.Second + time.Duration(rand.Intn(2000))*time.Millisecond
	time.AfterFunc(delay, func() {
		r.enqueue(r.submitDummyVotes)
	})

	voteSeconds := s.Config.VoteTimeSeconds
	if isFinal {
		voteSeconds = s.Config.FinalVoteTimeSeconds
	}
	r.startTimer(voteSeconds, r.endVotingRound)
}

// eligibleVoterCount is the completion target for the current matchup:
// every connected non-author in normal rounds, every connected active
// player in the final round (authors vote too, there are enough other
// captions to pick from).
func (r *Room) eligibleVoterCount() int {
	s := r.state
	voting := s.CurrentVotingRound

	count := 0
	for _, p := range s.Players {
		if !p.IsConnected {
			continue
		}
		if voting.IsFinalRound {
			if !p.IsAudience {
				count++
			}
			continue
		}
		if !voting.hasAnswerBy(p.ID) {
			count++
		}
	}
	return count
}

func (r *Room) checkVotingComplete() {
	voting := r.state.CurrentVotingRound
	if voting == nil {
		return
	}

	if len(voting.VotedPlayerIDs) >= r.eligibleVoterCount() {
		r.cancelTimer()
		r.endVotingRound()
	}
}

func (r *Room) handleSubmitVote(c *Client, votedPlayerID string) {
	s := r.state
	if s.Phase != PhaseVoting || s.CurrentVotingRound == nil {
		return
	}

	voting := s.CurrentVotingRound
	voter := s.player(c.playerID)
	if voter == nil {
		return
	}
	if voting.hasAnswerBy(voter.ID) {
		return
	}
	if voting.hasVoted(voter.ID) {
		return
	}

	for i := range voting.Answers {
		if voting.Answers[i].PlayerID == votedPlayerID {
			voting.Answers[i].Votes++
			voting.Answers[i].VoterIDs = append(voting.Answers[i].VoterIDs, voter.ID)
			voting.VotedPlayerIDs = append(voting.VotedPlayerIDs, voter.ID)
			break
		}
	}

	r.broadcastState()
	r.checkVotingComplete()
}

func (r *Room) handleSubmitMultiVote(c *Client, votes map[string]int) {
	s := r.state
	if s.Phase != PhaseVoting || s.CurrentVotingRound == nil {
		return
	}

	voting := s.CurrentVotingRound
	if !voting.IsFinalRound {
		return
	}

	voter := s.player(c.playerID)
	if voter == nil {
		return
	}
	if voting.hasVoted(voter.ID) {
		return
	}

	total := 0
	for playerID, count := range votes {
		if count > 1 {
			return
		}
		if playerID == voter.ID && count > 0 {
			return
		}
		total += count
	}
	if total != 3 {
		return
	}

	// Validated; apply the whole allocation atomically.
	for i := range voting.Answers {
		count := votes[voting.Answers[i].PlayerID]
		if count > 0 {
			voting.Answers[i].Votes += count
			voting.Answers[i].VoterIDs = append(voting.Answers[i].VoterIDs, voter.ID)
		}
	}
	voting.VotedPlayerIDs = append(voting.VotedPlayerIDs, voter.ID)

	r.broadcastState()
	r.checkVotingComplete()
}

// endVotingRound scores the matchup, folds the resolved answers back
// into the round's answer list, and shows results.
func (r *Room) endVotingRound() {
	s := r.state
	voting := s.CurrentVotingRound
	if voting == nil {
		return
	}

	points := pointsPerVote
	if voting.IsFinalRound {
		points = finalPointsPerVote
	}

	for i := range voting.Answers {
		answer := &voting.Answers[i]
		player := s.player(answer.PlayerID)
		if player == nil {
			continue
		}

		player.Score += answer.Votes * points

		// Shutout bonus: only meaningful in two-answer matchups, where
		// "all votes" has a single opponent to compare against.
		if !voting.IsFinalRound && answer.Votes > 0 {
			for j := range voting.Answers {
				if voting.Answers[j].PlayerID != answer.PlayerID && voting.Answers[j].Votes == 0 {
					player.Score += allVotesBonus
				}
			}
		}
	}

	for _, answer := range voting.Answers {
		for i := range s.Answers {
			if s.Answers[i].PromptID == answer.PromptID && s.Answers[i].PlayerID == answer.PlayerID {
				s.Answers[i] = answer
				break
			}
		}
	}

	s.Phase = PhaseVoteResults
	r.broadcastState()

	r.startTimer(s.Config.ResultsTimeSeconds, func() {
		r.advancePrompt(nil)
	})
}

// advancePrompt moves to the next matchup. A nil client means the
// results timer expired; otherwise the caller must hold host authority.
func (r *Room) advancePrompt(c *Client) {
	s := r.state
	if c != nil && !r.isHostClient(c) {
		return
	}
	if s.Phase != PhaseVoting && s.Phase != PhaseVoteResults {
		return
	}

	r.cancelTimer()
	s.CurrentPromptIndex++
	s.CurrentVotingRound = nil
	r.startVotingRound()
}

func (r *Room) handleNextPrompt(c *Client) {
	r.advancePrompt(c)
}

func (r *Room) showRoundScores() {
	s := r.state
	s.Phase = PhaseRoundScores
	s.CurrentVotingRound = nil
	r.broadcastState()
}

func (r *Room) handleNextRound(c *Client) {
	s := r.state
	if !r.isHostClient(c) {
		return
	}
	if s.Phase != PhaseRoundScores {
		return
	}

	if s.CurrentRound >= s.TotalRounds {
		s.Phase = PhaseFinalScores
		r.broadcastState()
		return
	}

	r.startRound()
}

// handleRestartGame returns to the lobby with scores zeroed. The roster
// and its connections survive so the same group can play again.
func (r *Room) handleRestartGame(c *Client) {
	s := r.state
	if !r.isHostClient(c) {
		return
	}

	for _, p := range s.Players {
		p.Score = 0
	}

	s.Phase = PhaseLobby
	s.CurrentRound = 0
	s.CurrentPromptIndex = 0
	s.SelectedCategories = []string{}
	s.Prompts = []Prompt{}
	s.Answers = []Answer{}
	s.CurrentVotingRound = nil
	s.PromptAssignments = map[string][]string{}

	r.cancelTimer()
	r.broadcastState()
}

func (r *Room) handleAddDummyPlayers(c *Client, count int) {
	s := r.state
	if s.Phase != PhaseLobby {
		return
	}
	if !r.isHostClient(c) {
		return
	}

	if count > maxDummyPlayersPerAdd {
		count = maxDummyPlayersPerAdd
	}

	for i := 0; i < count; i++ {
		if len(s.activePlayers()) >= s.Config.MaxActivePlayers {
			break
		}

		s.Players = append(s.Players, &Player{
			ID:          "dummy-" + uuid.NewString(),
			Name:        dummyName(r.dummies),
			IsConnected: true,
			IsDummy:     true,
		})
		r.dummies++
	}

	r.broadcastState()
}

// submitDummyAnswers files a canned answer for every prompt assigned to
// a dummy player, immediately after the round starts.
func (r *Room) submitDummyAnswers() {
	s := r.state

	submitted := false
	for _, player := range s.Players {
		if !player.IsDummy || player.IsAudience {
			continue
		}

		for _, promptID := range s.PromptAssignments[player.ID] {
			if s.hasAnswer(promptID, player.ID) {
				continue
			}

			s.Answers = append(s.Answers, Answer{
				PromptID:   promptID,
				PlayerID:   player.ID,
				PlayerName: player.Name,
				Text:       randomDummyAnswer(),
				VoterIDs:   []string{},
			})
			submitted = true
		}
	}

	if submitted {
		r.broadcastState()
	}
}

// submitDummyVotes casts votes for every dummy player that hasn't voted
// yet. Runs on the room loop via enqueue, after a randomized delay.
func (r *Room) submitDummyVotes() {
	s := r.state
	if s.Phase != PhaseVoting || s.CurrentVotingRound == nil {
		return
	}

	voting := s.CurrentVotingRound

	for _, player := range s.Players {
		if !player.IsDummy || !player.IsConnected {
			continue
		}
		if voting.hasVoted(player.ID) {
			continue
		}

		if voting.IsFinalRound {
			eligible := make([]int, 0, len(voting.Answers))
			for i := range voting.Answers {
				if voting.Answers[i].PlayerID != player.ID {
					eligible = append(eligible, i)
				}
			}
			if len(eligible) < 3 {
				continue
			}

			rand.Shuffle(len(eligible), func(i, j int) {
				eligible[i], eligible[j] = eligible[j], eligible[i]
			})
			for _, idx := range eligible[:3] {
				voting.Answers[idx].Votes++
				voting.Answers[idx].VoterIDs = append(voting.Answers[idx].VoterIDs, player.ID)
			}
		} else {
			if voting.hasAnswerBy(player.ID) {
				continue
			}

			idx := rand.Intn(len(voting.Answers))
			voting.Answers[idx].Votes++
			voting.Answers[idx].VoterIDs = append(voting.Answers[idx].VoterIDs, player.ID)
		}

		voting.VotedPlayerIDs = append(voting.VotedPlayerIDs, player.ID)
	}

	r.broadcastState()
	r.checkVotingComplete()
}

// broadcastState pushes the full authoritative state to every client.
func (r *Room) broadcastState() {
	r.broadcast(StateMessage{Type: "state_update", State: r.state})
}

func (r *Room) broadcast(msg any) {
	for c := range r.clients {
		select {
		case c.send <- msg:
		default:
			// Client is slow/full - drop them.
			delete(r.clients, c)
			close(c.send)
		}
	}
}

func (r *Room) sendTo(c *Client, msg any) {
	if !r.clients[c] {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(r.clients, c)
		close(c.send)
	}
}

func shufflePrompts(prompts []Prompt) {
	rand.Shuffle(len(prompts), func(i, j int) {
		prompts[i], prompts[j] = prompts[j], prompts[i]
	})
}
