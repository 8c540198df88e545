package envelope

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"

	"Pylon/internal/calc/calcerr"
	"Pylon/internal/calc/units"
)

// Envelope wraps exactly one top-level result with its audit trail. It is not
// modified after Build returns.
type Envelope struct {
	Result           any                  `json:"result"`
	Assumptions      []string             `json:"assumptions"`
	Warnings         []Warning            `json:"warnings,omitempty"`
	Confidence       float64              `json:"confidence"`
	ContentHash      string               `json:"content_hash"`
	SolverVersions   map[string]string    `json:"solver_versions"`
	ConstantsVersion map[string]string    `json:"constants_version"`
	Errors           []calcerr.FieldError `json:"errors,omitempty"`
}

// Pins records which solver functions and reference data produced a result.
type Pins struct {
	Solvers   map[string]string
	Constants map[string]string
}

// Merge combines several version maps; later entries win on equal keys.
func Merge(ms ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range ms {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

type hashed struct {
	Result           any               `json:"result"`
	SolverVersions   map[string]string `json:"solver_versions"`
	ConstantsVersion map[string]string `json:"constants_version"`
}

// Build assembles an envelope. Assumptions keep their order and are followed by
// the warning messages in order.
func Build(result any, assumptions []string, warnings []Warning, pins Pins) (Envelope, error) {
	solvers := Merge(pins.Solvers)
	consts := Merge(pins.Constants)

	sum, err := Hash(hashed{Result: result, SolverVersions: solvers, ConstantsVersion: consts})
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope: hash result: %w", err)
	}

	as := make([]string, 0, len(assumptions)+len(warnings))
	as = append(as, assumptions...)
	for _, w := range warnings {
		as = append(as, w.Message)
	}
	ws := make([]Warning, len(warnings))
	copy(ws, warnings)

	return Envelope{
		Result:           result,
		Assumptions:      as,
		Warnings:         ws,
		Confidence:       Confidence(warnings),
		ContentHash:      sum,
		SolverVersions:   solvers,
		ConstantsVersion: consts,
	}, nil
}

// Failure is the envelope a transport boundary returns for a failed call:
// confidence 0, the error and every offending field spelled out.
func Failure(err error, pins Pins) Envelope {
	fields := calcerr.FieldsOf(err)
	as := []string{err.Error()}
	for _, f := range fields {
		as = append(as, f.String())
	}
	return Envelope{
		Assumptions:      as,
		Confidence:       0,
		SolverVersions:   Merge(pins.Solvers),
		ConstantsVersion: Merge(pins.Constants),
		Errors:           fields,
	}
}

// Hash returns the hex SHA-256 of v's canonical form.
func Hash(v any) (string, error) {
	b, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Canonicalize renders v as JSON with object keys sorted and every number
// rounded to units.Precision decimals.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	rounded, err := roundTree(generic)
	if err != nil {
		return nil, err
	}
	// encoding/json writes map keys in sorted order.
	return json.Marshal(rounded)
}

func roundTree(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		for k, x := range t {
			r, err := roundTree(x)
			if err != nil {
				return nil, err
			}
			t[k] = r
		}
		return t, nil
	case []any:
		for i, x := range t {
			r, err := roundTree(x)
			if err != nil {
				return nil, err
			}
			t[i] = r
		}
		return t, nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, fmt.Errorf("non-finite number in result")
		}
		return units.Round(t), nil
	default:
		return t, nil
	}
}
