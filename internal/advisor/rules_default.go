package advisor

// defaultRulesYAML ships the stock negotiation rule set. Projects extend
// or replace it by dropping YAML files into .neex/rules/.
const defaultRulesYAML = `rules:
  - id: high-financial-risk
    name: High Financial Risk
    priority: Critical
    conditions:
      tags: [FIN]
      min_classification: Critical
    recommendation:
      type: redline
      suggested_change: Add liability caps, penalty limitations, and payment protections
      rationale: Excessive financial exposure poses significant business risk
      strategy: Demand material revisions or consider contract rejection

  - id: unlimited-liability
    name: Unlimited Liability
    priority: High
    conditions:
      contains: [liable, liability]
      lacks: [limit, cap]
    recommendation:
      type: addition
      suggested_change: Add liability limitations clause capping damages
      rationale: Unlimited liability creates unacceptable business risk
      strategy: Negotiate specific dollar amount caps or limit to contract value

  - id: one-sided-indemnification
    name: One-sided Indemnification
    priority: High
    conditions:
      contains: [indemnif]
      lacks: [mutual, reciprocal]
    recommendation:
      type: redline
      suggested_change: Revise to mutual indemnification provisions
      rationale: Asymmetric indemnification creates unfair risk allocation
      strategy: Push for balanced mutual protections

  - id: vague-deliverables
    name: Vague Deliverables
    priority: Medium
    conditions:
      tags: [TEC]
      contains: [deliverable]
      lacks: [specific, criteria]
    recommendation:
      type: clarification
      suggested_change: Add detailed acceptance criteria and specifications
      rationale: Vague deliverables lead to scope disputes and project delays
      strategy: Define clear, measurable deliverable requirements

  - id: missing-cure-period
    name: Missing Cure Period
    priority: Medium
    conditions:
      tags: [TRM]
      contains: [breach, default, terminat]
      lacks: [cure, remedy]
    recommendation:
      type: addition
      suggested_change: Include reasonable cure period (e.g., 30 days written notice)
      rationale: Cure periods provide opportunity to address issues before severe consequences
      strategy: Negotiate fair notice and cure provisions
`
