package stage

import (
	"fmt"

	"github.com/neexlegal/neex-review/internal/review"
)

// Pipeline is a validated, ordered stage sequence. Once assembled, the
// declarations are known to be consistent: every read is satisfied by a
// source field or an earlier stage's write, and no two stages produce the
// same field.
type Pipeline struct {
	stages []Stage
}

// Assemble validates stage declarations and fixes their execution order.
// Declaration problems are reported as *review.ContractViolationError so
// sessions refuse to start instead of failing mid-document.
func Assemble(stages ...Stage) (Pipeline, error) {
	if len(stages) == 0 {
		return Pipeline{}, fmt.Errorf("stage: pipeline requires at least one stage")
	}
	seen := map[string]struct{}{}
	written := map[Field]string{}
	for _, st := range stages {
		info := st.Info()
		if err := info.Validate(); err != nil {
			return Pipeline{}, err
		}
		if _, dup := seen[info.ID]; dup {
			return Pipeline{}, fmt.Errorf("stage: %s declared twice", info.ID)
		}
		seen[info.ID] = struct{}{}

		for _, field := range st.Reads() {
			if !knownField(field) {
				return Pipeline{}, &review.ContractViolationError{Stage: info.ID, Field: string(field), Detail: "unknown read field"}
			}
			if sourceField(field) {
				continue
			}
			if _, ok := written[field]; !ok {
				return Pipeline{}, &review.ContractViolationError{Stage: info.ID, Field: string(field), Detail: "read before any stage writes it"}
			}
		}
		for _, field := range st.Writes() {
			if !knownField(field) {
				return Pipeline{}, &review.ContractViolationError{Stage: info.ID, Field: string(field), Detail: "unknown write field"}
			}
			if sourceField(field) {
				return Pipeline{}, &review.ContractViolationError{Stage: info.ID, Field: string(field), Detail: "source fields are read-only"}
			}
			if owner, ok := written[field]; ok {
				return Pipeline{}, &review.ContractViolationError{Stage: info.ID, Field: string(field), Detail: fmt.Sprintf("already produced by %s", owner)}
			}
			written[field] = info.ID
		}
	}
	return Pipeline{stages: append([]Stage{}, stages...)}, nil
}

// Stages returns the execution order.
func (p Pipeline) Stages() []Stage {
	return append([]Stage{}, p.stages...)
}

// Len returns the stage count.
func (p Pipeline) Len() int {
	return len(p.stages)
}
