package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		answerTime:       60 * time.Second,
		finalVoteTime:    45 * time.Second,
		maxActivePlayers: 8,
		minPlayers:       3,
		port:             8080,
		resultsTime:      12 * time.Second,
		rounds:           3,
		voteTime:         20 * time.Second,
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().validate())

	cfg := validConfig()
	cfg.port = 0
	assert.Error(t, cfg.validate())

	cfg = validConfig()
	cfg.tlsCert = "cert.pem"
	assert.Error(t, cfg.validate())

	cfg = validConfig()
	cfg.minPlayers = 1
	assert.Error(t, cfg.validate())

	cfg = validConfig()
	cfg.maxActivePlayers = 2
	assert.Error(t, cfg.validate())

	cfg = validConfig()
	cfg.rounds = 0
	assert.Error(t, cfg.validate())

	cfg = validConfig()
	cfg.voteTime = 500 * time.Millisecond
	assert.Error(t, cfg.validate())
}

func TestScheme(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "http", cfg.scheme())

	cfg.tlsCert = "cert.pem"
	cfg.tlsKey = "key.pem"
	assert.Equal(t, "https", cfg.scheme())
}

func TestGameConfigSeconds(t *testing.T) {
	game := validConfig().gameConfig()

	assert.Equal(t, 60, game.AnswerTimeSeconds)
	assert.Equal(t, 20, game.VoteTimeSeconds)
	assert.Equal(t, 45, game.FinalVoteTimeSeconds)
	assert.Equal(t, 12, game.ResultsTimeSeconds)
	assert.Equal(t, 3, game.MinPlayers)
	assert.Equal(t, 8, game.MaxActivePlayers)
	assert.Equal(t, 3, game.RoundsPerGame)
}
