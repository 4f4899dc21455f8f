package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	scenarios "github.com/goliatone/go-scenarios"
)

var ErrETagMismatch = errors.New("state: etag mismatch")

// Ref identifies one persisted resolved config.
type Ref struct {
	Study        string
	CaseID       string
	PlanningYear int
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads and saves one snapshot for a single reference.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error)
}

// Identifier returns the canonical storage key study/year/case.
func (r Ref) Identifier() (string, error) {
	study := strings.TrimSpace(r.Study)
	caseID := strings.TrimSpace(r.CaseID)
	switch {
	case study == "":
		return "", fmt.Errorf("state: study is required")
	case caseID == "":
		return "", fmt.Errorf("state: case id is required")
	case strings.Contains(caseID, "/"):
		return "", fmt.Errorf("state: case id %q must not contain '/'", caseID)
	case r.PlanningYear <= 0:
		return "", fmt.Errorf("state: planning year must be positive, got %d", r.PlanningYear)
	}
	return study + "/" + strconv.Itoa(r.PlanningYear) + "/" + caseID, nil
}

// SaveResult persists every resolved config of result under study, in
// scenario table order. The run id becomes each snapshot id. Failures do not
// stop the remaining saves; they are joined into the returned error.
func SaveResult(ctx context.Context, store Store[scenarios.ResolvedConfig], study string, result *scenarios.Result) (int, error) {
	if store == nil {
		return 0, fmt.Errorf("state: store is required")
	}
	if result == nil {
		return 0, nil
	}
	now := time.Now().UTC()
	saved := 0
	var errs []error
	result.Each(func(config *scenarios.ResolvedConfig) bool {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			return false
		}
		ref := Ref{Study: study, CaseID: config.CaseID, PlanningYear: config.PlanningYear}
		meta := Meta{
			SnapshotID: result.RunID,
			UpdatedAt:  now,
			Extra:      appliedExtra(config.Applied),
		}
		if _, err := store.Save(ctx, ref, *config, meta); err != nil {
			errs = append(errs, fmt.Errorf("state: save %s/%d: %w", config.CaseID, config.PlanningYear, err))
			return true
		}
		saved++
		return true
	})
	return saved, errors.Join(errs...)
}

// LoadCase returns the stored config for a case and planning year.
func LoadCase(ctx context.Context, store Store[scenarios.ResolvedConfig], ref Ref) (*scenarios.ResolvedConfig, Meta, bool, error) {
	if store == nil {
		return nil, Meta{}, false, fmt.Errorf("state: store is required")
	}
	config, meta, ok, err := store.Load(ctx, ref)
	if err != nil || !ok {
		return nil, meta, ok, err
	}
	return &config, meta, true, nil
}

func appliedExtra(applied []scenarios.AppliedOverride) map[string]string {
	if len(applied) == 0 {
		return nil
	}
	labels := make([]string, len(applied))
	for i, override := range applied {
		labels[i] = override.Label()
	}
	return map[string]string{"applied": strings.Join(labels, ",")}
}

func nextETag(current string) string {
	version, _ := strconv.Atoi(strings.TrimPrefix(current, "v"))
	return "v" + strconv.Itoa(version+1)
}

func checkETag(expected, stored string) error {
	if expected == "" || expected == stored {
		return nil
	}
	return fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, expected, stored)
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
