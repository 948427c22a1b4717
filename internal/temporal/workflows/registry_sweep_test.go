package workflows_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/gdw-platform/gdw-audit/internal/config"
	"github.com/gdw-platform/gdw-audit/internal/domain"
	"github.com/gdw-platform/gdw-audit/internal/temporal/activities"
	"github.com/gdw-platform/gdw-audit/internal/temporal/workflows"
)

type RegistrySweepSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *RegistrySweepSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.env.RegisterActivity(&activities.Activities{})
	s.env.RegisterWorkflow(workflows.TableAuditWorkflow)
}

func (s *RegistrySweepSuite) AfterTest(_, _ string) {
	s.env.AssertExpectations(s.T())
}

func TestRegistrySweepSuite(t *testing.T) {
	suite.Run(t, new(RegistrySweepSuite))
}

func (s *RegistrySweepSuite) registry(names ...string) {
	entries := make([]config.TableEntry, 0, len(names))
	for _, n := range names {
		entries = append(entries, auditInput(n).Entry)
	}
	s.env.OnActivity("LoadRegistry", testAnyCtx, testAnyInput).Return(activities.LoadRegistryOutput{Entries: entries}, nil)
}

func (s *RegistrySweepSuite) TestMixedOutcomes() {
	s.registry("customers", "orders", "payments")
	s.env.OnActivity("AuditTable", testAnyCtx, testAnyInput).Return(
		func(_ context.Context, in activities.AuditTableInput) (activities.AuditTableOutput, error) {
			switch in.Entry.Name {
			case "orders":
				r := cleanReport("orders")
				r.RowSummary.DuplicatesInSource = 3
				return activities.AuditTableOutput{Report: r}, nil
			case "payments":
				return activities.AuditTableOutput{}, temporal.NewNonRetryableApplicationError(
					"payments has more than 100 rows", activities.ErrTypeRowLimit, nil)
			}
			return activities.AuditTableOutput{Report: cleanReport(in.Entry.Name)}, nil
		})
	s.env.OnActivity("PersistReport", testAnyCtx, testAnyInput).Return(activities.PersistReportOutput{Sinks: 1}, nil)

	s.env.ExecuteWorkflow(workflows.RegistrySweepWorkflow, workflows.SweepInput{Environment: domain.EnvDev})

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
	var res workflows.SweepResult
	s.NoError(s.env.GetWorkflowResult(&res))

	s.Equal(3, res.TablesAudited)
	s.Equal(1, res.Passed)
	s.Equal(1, res.Failed)
	s.Equal(1, res.Errored)
	s.Equal(domain.VerdictPass, res.Verdicts["customers"])
	s.Equal(domain.VerdictFail, res.Verdicts["orders"])
	s.NotContains(res.Verdicts, "payments")
	s.Equal(domain.VerdictFail, res.Worst())
	s.env.AssertActivityNumberOfCalls(s.T(), "PersistReport", 2)
}

func (s *RegistrySweepSuite) TestAllPass() {
	s.registry("customers", "orders")
	s.env.OnActivity("AuditTable", testAnyCtx, testAnyInput).Return(
		func(_ context.Context, in activities.AuditTableInput) (activities.AuditTableOutput, error) {
			return activities.AuditTableOutput{Report: cleanReport(in.Entry.Name)}, nil
		})

	s.env.ExecuteWorkflow(workflows.RegistrySweepWorkflow, workflows.SweepInput{
		Environment: domain.EnvDev,
		SkipPersist: true,
	})

	var res workflows.SweepResult
	s.NoError(s.env.GetWorkflowResult(&res))
	s.Equal(2, res.Passed)
	s.Equal(domain.VerdictPass, res.Worst())
	s.env.AssertActivityNumberOfCalls(s.T(), "PersistReport", 0)
}

func (s *RegistrySweepSuite) TestEmptyRegistry() {
	s.registry()

	s.env.ExecuteWorkflow(workflows.RegistrySweepWorkflow, workflows.SweepInput{Environment: domain.EnvDev})

	var res workflows.SweepResult
	s.NoError(s.env.GetWorkflowResult(&res))
	s.Zero(res.TablesAudited)
	s.Equal(domain.VerdictPass, res.Worst())
}

func (s *RegistrySweepSuite) TestRegistryLoadFailure() {
	err := temporal.NewNonRetryableApplicationError("registry has no table \"ghost\"", activities.ErrTypeRegistry, nil)
	s.env.OnActivity("LoadRegistry", testAnyCtx, testAnyInput).Return(activities.LoadRegistryOutput{}, err)

	s.env.ExecuteWorkflow(workflows.RegistrySweepWorkflow, workflows.SweepInput{
		Environment: domain.EnvDev,
		Tables:      []string{"ghost"},
	})

	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}
