package features

import (
	"regexp"
	"strings"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/records"
)

// #region config
// BehaviorConfig holds the fixed vocabularies behind the behavioral counters.
type BehaviorConfig struct {
	ChallengeStems    []string // matched case-insensitively at a word start
	VerificationTypes []string // event types that count as fact-checking
}

// DefaultBehaviorConfig returns the critical-thinking stems and the
// document/panel/PDF/memo open and download event types.
func DefaultBehaviorConfig() BehaviorConfig {
	return BehaviorConfig{
		ChallengeStems: []string{
			"risk", "trade-off", "assum", "uncertain", "evidence", "counterfactual",
		},
		VerificationTypes: []string{
			"document_opened", "panel_opened", "pdf_opened", "memo_opened", "file_downloaded",
		},
	}
}

// #endregion config

// #region counter
// Counter computes keyword and interaction counts from chat and event traces.
type Counter struct {
	challenge    *regexp.Regexp
	verification map[string]bool
}

// NewCounter compiles the configured vocabularies.
func NewCounter(cfg BehaviorConfig) *Counter {
	c := &Counter{verification: make(map[string]bool, len(cfg.VerificationTypes))}
	for _, t := range cfg.VerificationTypes {
		c.verification[strings.ToLower(t)] = true
	}
	if len(cfg.ChallengeStems) > 0 {
		alts := make([]string, len(cfg.ChallengeStems))
		for i, stem := range cfg.ChallengeStems {
			// "trade-off" also matches "tradeoff" and "trade off"
			alts[i] = strings.ReplaceAll(regexp.QuoteMeta(strings.ToLower(stem)), "-", "[- ]?")
		}
		c.challenge = regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)`)
	}
	return c
}

// #endregion counter

// #region counts
// Questions counts user turns containing a question mark.
func (c *Counter) Questions(chats []records.ChatTurn) int {
	n := 0
	for _, t := range chats {
		if t.Role == records.RoleUser && strings.Contains(t.Content, "?") {
			n++
		}
	}
	return n
}

// Challenges counts user turns with at least one critical-thinking marker.
func (c *Counter) Challenges(chats []records.ChatTurn) int {
	if c.challenge == nil {
		return 0
	}
	n := 0
	for _, t := range chats {
		if t.Role == records.RoleUser && c.challenge.MatchString(t.Content) {
			n++
		}
	}
	return n
}

// Verifications counts events whose type signals active fact-checking.
func (c *Counter) Verifications(events []records.Event) int {
	n := 0
	for _, e := range events {
		if c.verification[strings.ToLower(e.Type)] {
			n++
		}
	}
	return n
}

// #endregion counts
