package config

// defaultReviewConfigYAML is the document written to .neex/config.yaml on
// init and used whenever the project carries no override. The tag patterns
// and leverage points encode the NEEX clause taxonomy.
const defaultReviewConfigYAML = `# neex review configuration
version: 1

# Clause taxonomy. DOC is the fallback tag and must stay in the list.
tags: [TEC, LEG, FIN, COM, IPX, TRM, DIS, DOC, EXE, EXT]

# Keyword patterns used to classify clause text, case-insensitive
# substring match. A tag scores one point per matching pattern.
tag_patterns:
  TEC: [deliverable, milestone, sla, service level, uptime, performance]
  LEG: [jurisdiction, governing law, indemnif, liability, breach, warranty]
  FIN: [payment, invoice, fee, cost, penalty, refund, currency]
  COM: [compliance, regulation, license, aml, gdpr, privacy]
  IPX: [intellectual property, copyright, license, ownership, exclusive]
  TRM: [termination, breach, default, cure period, notice]
  DIS: [dispute, arbitration, mediation, jurisdiction, venue]
  DOC: [document, annex, amendment, modification, version]
  EXE: [signature, execution, authority, effective date]
  EXT: [external, third party, vendor, dependency]

risk:
  # Category weights used when folding the six raw scores into the
  # aggregate. All six categories always contribute to the denominator.
  weights:
    financial: 1.2
    legal: 1.1
    operational: 0.9
    compliance: 1.0
    reputational: 0.8
    strategic: 1.0
  # Classification boundaries on the weighted aggregate, inclusive.
  thresholds:
    critical: 0.70
    material: 0.35

checkpoint:
  # A session pauses at the next whole-clause boundary once either
  # threshold is reached since the previous checkpoint.
  clause_interval: 3
  token_budget: 3000

# Negotiation hooks attached during the opportunity layer: the text is
# offered when every "when" term appears in the clause and every "lacks"
# term is absent.
leverage:
  FIN:
    - text: Consider negotiating penalty caps
      when: [penalty]
      lacks: [cap]
  LEG:
    - text: Negotiate liability limitations
      when: [liability]
      lacks: [limit]
  TEC:
    - text: Define clear acceptance criteria
      when: [deliverable]
      lacks: [acceptance]
  TRM:
    - text: Request a cure period before termination for breach
      when: [termination]
      lacks: [cure]
  IPX:
    - text: Clarify ownership of work product and pre-existing materials
      when: [ownership]
      lacks: [retain]

# Directory scanned for negotiation rule overrides, relative to .neex/.
rules_dir: rules
`
