package rolemine

import (
	"context"
	"time"

	"github.com/spcon-go/rolemine/pkg/models"
)

// Run is the engine's single entry point: it wires C1→C2→C3→(C4 or an
// alternative C7 miner)→C5 end to end, producing either a populated
// MiningRun or a typed *Error for conditions that must abort before any
// partial result is usable (spec §7).
//
// Grounded on internal/heuristics/investigation.go's manager-style
// "load → analyze → summarize" shape, generalized from one fixed
// analysis to this pipeline's five stages.
func Run(ctx context.Context, address string, history HistorySource, rw RWSummarySource, cfg Config) (*models.MiningRun, error) {
	run := &models.MiningRun{
		Address:   address,
		Status:    "running",
		StartedAt: time.Now(),
	}

	records, err := history.Load(ctx)
	if err != nil {
		return nil, newError(InputMalformed, "loading call history", err)
	}

	if n := SuccessfulRecordCount(records); n < cfg.MinHistoryRecords {
		return nil, newError(InsufficientHistory,
			"fewer successful calls than the configured minimum", nil)
	}

	dataset := LoadHistory(records)
	if dataset.NumUsers() == 0 || dataset.NumFunctions() == 0 {
		return nil, newError(InsufficientHistory, "no distinct users or functions observed", nil)
	}

	run.UserCount = dataset.NumUsers()
	run.FunctionCount = dataset.NumFunctions()

	latticeResult := BuildLattice(dataset, cfg)
	if latticeResult.Warning != nil {
		run.Warnings = append(run.Warnings, *latticeResult.Warning)
	}

	basicRoles := ReduceHierarchy(latticeResult.Concepts)
	run.BasicRoleN = len(basicRoles)

	miner, err := SelectMiner(cfg.Miner)
	if err != nil {
		return nil, err
	}

	gaCtx, cancelGA := context.WithTimeout(ctx, gaTimeout(cfg))
	defer cancelGA()
	finalRoles, err := miner.Mine(gaCtx, basicRoles, dataset, cfg)
	if err != nil {
		return nil, newError(InternalInvariantViolation, "role clustering failed", err)
	}

	for _, fr := range finalRoles {
		run.Roles = append(run.Roles, roleToModel(fr, dataset.UserMap, dataset.Functions))
	}

	var summary models.RWSummary
	if rw != nil {
		summary, err = rw.Load(ctx, dataset.Functions)
		if err != nil {
			run.Warnings = append(run.Warnings, models.Warning{
				Kind:    models.WarningStaticAnalysisMissing,
				Message: "static analysis summary unavailable: " + err.Error(),
			})
		}
	} else {
		run.Warnings = append(run.Warnings, models.Warning{
			Kind:    models.WarningStaticAnalysisMissing,
			Message: "no static analysis summary source configured",
		})
	}

	policies, warn := DerivePolicies(finalRoles, dataset.UserMap, dataset.Functions, summary, cfg.PolicyDenyFunctions)
	if warn != nil {
		run.Warnings = append(run.Warnings, *warn)
	}
	run.Policies = policies

	run.Status = "done"
	run.FinishedAt = time.Now()
	return run, nil
}

func gaTimeout(cfg Config) time.Duration {
	if cfg.TimeoutGASeconds <= 0 {
		return 365 * 24 * time.Hour
	}
	return time.Duration(cfg.TimeoutGASeconds) * time.Second
}
