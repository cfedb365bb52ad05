// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package gate

import (
	"github.com/vhc-foundation/luma/lib/budget"
	"github.com/vhc-foundation/luma/lib/delegation"
)

// Action is a gated civic action.
type Action string

const (
	ActionPost           Action = "post"
	ActionComment        Action = "comment"
	ActionSentimentVote  Action = "sentiment_vote"
	ActionGovernanceVote Action = "governance_vote"
	ActionModerate       Action = "moderate"
	ActionAnalyze        Action = "analyze"
	ActionCivicAction    Action = "civic_action"
	ActionShare          Action = "share"
	ActionDraft          Action = "draft"
	ActionTriage         Action = "triage"
	ActionFund           Action = "fund"
)

type actionPolicy struct {
	scope     delegation.Scope
	budgetKey budget.ActionKey
}

var actionOrder = []Action{
	ActionPost, ActionComment, ActionSentimentVote, ActionGovernanceVote,
	ActionModerate, ActionAnalyze, ActionCivicAction, ActionShare,
	ActionDraft, ActionTriage, ActionFund,
}

var policies = map[Action]actionPolicy{
	ActionPost:           {delegation.ScopePost, budget.Posts},
	ActionComment:        {delegation.ScopeComment, budget.Comments},
	ActionSentimentVote:  {delegation.ScopeVote, budget.SentimentVotes},
	ActionGovernanceVote: {delegation.ScopeVote, budget.GovernanceVotes},
	ActionModerate:       {delegation.ScopeModerate, budget.Moderation},
	ActionAnalyze:        {delegation.ScopeAnalyze, budget.Analyses},
	ActionCivicAction:    {delegation.ScopeCivicAction, budget.CivicActions},
	ActionShare:          {delegation.ScopeShare, budget.Shares},
	ActionDraft:          {scope: delegation.ScopeDraft},
	ActionTriage:         {scope: delegation.ScopeTriage},
	ActionFund:           {scope: delegation.ScopeFund},
}

// Actions returns every action in a stable order.
func Actions() []Action {
	return append([]Action(nil), actionOrder...)
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	_, ok := policies[a]
	return ok
}

// Scope returns the delegation scope a familiar needs to perform a.
func (a Action) Scope() delegation.Scope {
	return policies[a].scope
}

// BudgetKey returns the budget a consumes, if any.
func (a Action) BudgetKey() (budget.ActionKey, bool) {
	key := policies[a].budgetKey
	return key, key != ""
}
