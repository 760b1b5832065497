// Package classifications stores classification results. There is exactly one
// result per (company, taxonomy version); re-running a company replaces its
// row instead of appending a new one.
package classifications

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/entity"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/fusion"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/signal"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/taxonomy"
)

// Status is the variant tag of a Result.
type Status string

const (
	// StatusClassified carries codes, a confidence and a band.
	StatusClassified Status = "CLASSIFIED"
	// StatusHold carries a reason and a retry stage but no codes.
	StatusHold Status = "HOLD"
	// StatusNotClassified means the company had no usable input.
	StatusNotClassified Status = "NOT_CLASSIFIED"
)

var statuses = []Status{StatusClassified, StatusHold, StatusNotClassified}

// UnmarshalJSON rejects unknown statuses.
func (s *Status) UnmarshalJSON(data []byte) error {
	return unmarshalClosed(data, statuses, s)
}

// HoldReason explains why no decision was emitted.
type HoldReason string

const (
	ReasonInsufficientText    HoldReason = "INSUFFICIENT_TEXT"
	ReasonMissingStructured   HoldReason = "MISSING_STRUCTURED_DATA"
	ReasonAmbiguousCandidates HoldReason = "AMBIGUOUS_CANDIDATES"
	ReasonNoCandidates        HoldReason = "NO_CANDIDATES"
	ReasonStageUnavailable    HoldReason = "STAGE_UNAVAILABLE"
)

var reasons = []HoldReason{
	ReasonInsufficientText,
	ReasonMissingStructured,
	ReasonAmbiguousCandidates,
	ReasonNoCandidates,
	ReasonStageUnavailable,
}

// Reasons returns every hold reason.
func Reasons() []HoldReason {
	return reasons
}

// UnmarshalJSON rejects unknown reasons.
func (r *HoldReason) UnmarshalJSON(data []byte) error {
	return unmarshalClosed(data, reasons, r)
}

// Hold is the payload of a HOLD result.
type Hold struct {
	Reason     HoldReason   `json:"reason"`
	RetryStage signal.Stage `json:"retry_stage,omitempty"`
}

// Result is one company's classification for one taxonomy version.
type Result struct {
	ID               uuid.UUID        `json:"id"`
	CompanyID        string           `json:"company_id"`
	TaxonomyVersion  string           `json:"taxonomy_version"`
	InputHash        string           `json:"input_hash"`
	Status           Status           `json:"status"`
	Method           fusion.Method    `json:"method"`
	Codes            *taxonomy.Codes  `json:"codes,omitempty"`
	Secondary        string           `json:"secondary,omitempty"`
	Confidence       float64          `json:"confidence"`
	Band             fusion.Band      `json:"band"`
	Entity           entity.Detection `json:"entity"`
	Hold             *Hold            `json:"hold,omitempty"`
	Override         *entity.Override `json:"override,omitempty"`
	ConflictResolved bool             `json:"conflict_resolved"`
	ConflictCodes    []string         `json:"conflict_codes,omitempty"`
	Weights          fusion.Weights   `json:"weights"`
	Trace            []signal.Outcome `json:"trace"`
	ClassifiedAt     time.Time        `json:"classified_at"`
}

// Validate checks that the fields present match the status.
func (r *Result) Validate() error {
	if r.CompanyID == "" || r.TaxonomyVersion == "" {
		return fmt.Errorf("%w: company id and taxonomy version required", ErrInvalidResult)
	}

	switch r.Status {
	case StatusClassified:
		if r.Codes == nil || r.Codes.L1 == "" {
			return fmt.Errorf("%w: classified result without codes", ErrInvalidResult)
		}
		if r.Hold != nil {
			return fmt.Errorf("%w: classified result with hold", ErrInvalidResult)
		}
		if r.Method == fusion.MethodHold || r.Method == fusion.MethodNotClassified || r.Method == "" {
			return fmt.Errorf("%w: classified result with method %q", ErrInvalidResult, r.Method)
		}
		if r.Band == fusion.BandHold || r.Band == "" {
			return fmt.Errorf("%w: classified result with band %q", ErrInvalidResult, r.Band)
		}
		if r.Confidence <= 0 || r.Confidence > 1 {
			return fmt.Errorf("%w: confidence %g outside (0,1]", ErrInvalidResult, r.Confidence)
		}
	case StatusHold:
		if r.Hold == nil || !slices.Contains(reasons, r.Hold.Reason) {
			return fmt.Errorf("%w: hold without reason", ErrInvalidResult)
		}
		if r.Hold.RetryStage == "" {
			return fmt.Errorf("%w: hold without retry stage", ErrInvalidResult)
		}
		if r.Codes != nil || r.Secondary != "" {
			return fmt.Errorf("%w: hold result with codes", ErrInvalidResult)
		}
		if r.Method != fusion.MethodHold || r.Band != fusion.BandHold {
			return fmt.Errorf("%w: hold result must use method and band HOLD", ErrInvalidResult)
		}
	case StatusNotClassified:
		if r.Codes != nil || r.Hold != nil {
			return fmt.Errorf("%w: unclassified result with codes or hold", ErrInvalidResult)
		}
		if r.Method != fusion.MethodNotClassified {
			return fmt.Errorf("%w: unclassified result with method %q", ErrInvalidResult, r.Method)
		}
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidResult, r.Status)
	}
	return nil
}

// Current reports whether r was computed from input with hash.
func (r *Result) Current(hash string) bool {
	return r != nil && r.InputHash == hash
}

func unmarshalClosed[T ~string](data []byte, allowed []T, dst *T) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v := T(raw)
	if !slices.Contains(allowed, v) {
		return fmt.Errorf("unknown value %q", raw)
	}
	*dst = v
	return nil
}
