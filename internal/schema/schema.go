// Package schema performs boundary validation of kernel records. Data is
// structurally typed in Go; JSON Schema validation runs only at the few
// points where data crosses a process or storage boundary (request intake,
// caller-supplied effects payloads, record deserialization) and on the
// assessor output records before they are returned.
//
// A validation failure here is a programmer or caller error, not a policy
// block: callers must not proceed past it.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonschema"

	"ceopilot/internal/types"
)

const routingRequestSchema = `{
  "type": "object",
  "required": ["request_id", "task", "task_class", "risk_level", "reasoning_depth", "expected_tokens", "budget_cents"],
  "properties": {
    "request_id": {"type": "string", "minLength": 1},
    "task": {"type": "string", "minLength": 1},
    "task_class": {"enum": ["routine", "high_risk", "exploratory"]},
    "risk_level": {"enum": ["low", "medium", "high", "critical"]},
    "irreversible": {"type": "boolean"},
    "compliance_sensitive": {"type": "boolean"},
    "novelty_score": {"type": "number", "minimum": 0, "maximum": 1},
    "ambiguity_score": {"type": "number", "minimum": 0, "maximum": 1},
    "reasoning_depth": {"enum": ["shallow", "medium", "deep"]},
    "expected_tokens": {"type": "integer", "minimum": 1},
    "budget_cents": {"type": "integer", "minimum": 0},
    "requires_arbitration": {"type": "boolean"}
  }
}`

const memoryRecordSchema = `{
  "type": "object",
  "required": ["memory_id", "kind", "subject", "confidence", "source"],
  "properties": {
    "memory_id": {"type": "string", "minLength": 1},
    "kind": {"enum": ["fact", "decision", "outcome"]},
    "subject": {"type": "string", "minLength": 1},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "source": {"enum": ["system", "human", "agent"]},
    "tags": {"type": "array", "items": {"type": "string"}}
  }
}`

const secondOrderEffectsSchema = `{
  "type": "object",
  "required": ["summary", "uncertainty"],
  "properties": {
    "summary": {"type": "string", "minLength": 1},
    "uncertainty": {"type": "number", "minimum": 0, "maximum": 1},
    "incentive_risks": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "affected_parties": {"type": "array", "items": {"type": "string", "minLength": 1}}
  }
}`

const normDecisionSchema = `{
  "type": "object",
  "required": ["allowed", "requires_human_review", "checked_at"],
  "properties": {
    "allowed": {"type": "boolean"},
    "reason": {"type": "string"},
    "requires_human_review": {"type": "boolean"},
    "checked_at": {"type": "string"}
  }
}`

const epistemicDecisionSchema = `{
  "type": "object",
  "required": ["allowed", "novelty_score", "requires_human_review", "checked_at"],
  "properties": {
    "allowed": {"type": "boolean"},
    "novelty_score": {"type": "number", "minimum": 0, "maximum": 1},
    "evidence_count": {"type": "integer", "minimum": 0},
    "required_evidence": {"type": "integer", "minimum": 0},
    "checked_at": {"type": "string"}
  }
}`

const secondOrderDecisionSchema = `{
  "type": "object",
  "required": ["allowed", "uncertainty", "requires_human_review", "checked_at"],
  "properties": {
    "allowed": {"type": "boolean"},
    "uncertainty": {"type": "number", "minimum": 0, "maximum": 1},
    "checked_at": {"type": "string"}
  }
}`

var (
	routingRequest      = mustCompile("routing_request", routingRequestSchema)
	memoryRecord        = mustCompile("memory_record", memoryRecordSchema)
	secondOrderEffects  = mustCompile("second_order_effects", secondOrderEffectsSchema)
	normDecision        = mustCompile("norm_decision", normDecisionSchema)
	epistemicDecision   = mustCompile("epistemic_decision", epistemicDecisionSchema)
	secondOrderDecision = mustCompile("second_order_decision", secondOrderDecisionSchema)
)

// mustCompile compiles an embedded schema. Schemas are package constants, so
// a compile failure is unreachable in a correct build.
func mustCompile(name, raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	s, err := compiler.Compile([]byte(raw))
	if err != nil {
		panic(fmt.Sprintf("schema %s failed to compile: %v", name, err))
	}
	return s
}

func validate(s *jsonschema.Schema, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	result := s.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("%s schema validation failed: %v", name, result.Errors)
}

// ValidateRoutingRequest checks a routing request at the intake boundary.
func ValidateRoutingRequest(req types.ModelRoutingRequest) error {
	return validate(routingRequest, "routing_request", req)
}

// ValidateMemoryRecord checks a memory record before it is written.
func ValidateMemoryRecord(rec types.MemoryRecord) error {
	return validate(memoryRecord, "memory_record", rec)
}

// ValidateSecondOrderEffects checks a caller-supplied effects payload.
func ValidateSecondOrderEffects(fx types.SecondOrderEffects) error {
	return validate(secondOrderEffects, "second_order_effects", fx)
}

// ValidateNormDecision checks a norm evaluator output record.
func ValidateNormDecision(d types.NormDecision) error {
	return validate(normDecision, "norm_decision", d)
}

// ValidateEpistemicDecision checks an epistemic assessor output record.
func ValidateEpistemicDecision(d types.EpistemicDecision) error {
	return validate(epistemicDecision, "epistemic_decision", d)
}

// ValidateSecondOrderDecision checks a second-order assessor output record.
func ValidateSecondOrderDecision(d types.SecondOrderDecision) error {
	return validate(secondOrderDecision, "second_order_decision", d)
}
