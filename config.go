package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	answerTime       time.Duration
	bind             string
	database         string
	finalVoteTime    time.Duration
	maxActivePlayers int
	minPlayers       int
	port             int
	prefix           string
	profile          bool
	promptsDir       string
	resultsTime      time.Duration
	rounds           int
	sessionTimeout   time.Duration
	tlsCert          string
	tlsKey           string
	verbose          bool
	version          bool
	voteTime         time.Duration
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.minPlayers < 2 {
		return fmt.Errorf("invalid minimum player count (must be at least 2): %d", c.minPlayers)
	}
	if c.maxActivePlayers < c.minPlayers {
		return fmt.Errorf("invalid active player cap (must be at least --min-players): %d", c.maxActivePlayers)
	}
	if c.rounds < 1 {
		return fmt.Errorf("invalid round count (must be at least 1): %d", c.rounds)
	}
	for name, d := range map[string]time.Duration{
		"--answer-time":     c.answerTime,
		"--vote-time":       c.voteTime,
		"--final-vote-time": c.finalVoteTime,
		"--results-time":    c.resultsTime,
	} {
		if d < time.Second {
			return fmt.Errorf("invalid duration for %s (must be at least 1s): %s", name, d)
		}
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// gameConfig converts the flag-level durations into the per-room
// settings broadcast to clients.
func (c *Config) gameConfig() GameConfig {
	return GameConfig{
		AnswerTimeSeconds:    int(c.answerTime.Seconds()),
		VoteTimeSeconds:      int(c.voteTime.Seconds()),
		FinalVoteTimeSeconds: int(c.finalVoteTime.Seconds()),
		ResultsTimeSeconds:   int(c.resultsTime.Seconds()),
		MinPlayers:           c.minPlayers,
		MaxActivePlayers:     c.maxActivePlayers,
		RoundsPerGame:        c.rounds,
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PARTYPROMPT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "partyprompt",
		Short:         "A prompt-answering party game for one shared screen and a handful of phones.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.DurationVar(&cfg.answerTime, "answer-time", 60*time.Second, "time players get to write answers (env: PARTYPROMPT_ANSWER_TIME)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: PARTYPROMPT_BIND)")
	fs.StringVar(&cfg.database, "database", "partyprompt.db", "path to the prompt history database (env: PARTYPROMPT_DATABASE)")
	fs.DurationVar(&cfg.finalVoteTime, "final-vote-time", 45*time.Second, "voting time in the caption round (env: PARTYPROMPT_FINAL_VOTE_TIME)")
	fs.IntVar(&cfg.maxActivePlayers, "max-active-players", 8, "players beyond this count join as audience (env: PARTYPROMPT_MAX_ACTIVE_PLAYERS)")
	fs.IntVar(&cfg.minPlayers, "min-players", 3, "minimum active players needed to start (env: PARTYPROMPT_MIN_PLAYERS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: PARTYPROMPT_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: PARTYPROMPT_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: PARTYPROMPT_PROFILE)")
	fs.StringVar(&cfg.promptsDir, "prompts", "", "directory with prompts.json and imageprompts.json, overriding the embedded banks (env: PARTYPROMPT_PROMPTS)")
	fs.DurationVar(&cfg.resultsTime, "results-time", 12*time.Second, "time vote results stay on screen before auto-advancing (env: PARTYPROMPT_RESULTS_TIME)")
	fs.IntVar(&cfg.rounds, "rounds", 3, "rounds per game; the last round is the caption round (env: PARTYPROMPT_ROUNDS)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle game sessions are ended (env: PARTYPROMPT_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: PARTYPROMPT_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: PARTYPROMPT_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: PARTYPROMPT_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: PARTYPROMPT_VERSION)")
	fs.DurationVar(&cfg.voteTime, "vote-time", 20*time.Second, "voting time in normal rounds (env: PARTYPROMPT_VOTE_TIME)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("partyprompt v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
