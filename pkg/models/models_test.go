package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelaySpec_ResumeAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		delay DelaySpec
		want  time.Time
	}{
		{"one hour", DelaySpec{Amount: 1, Unit: "hours"}, now.Add(time.Hour)},
		{"thirty seconds", DelaySpec{Amount: 30, Unit: "seconds"}, now.Add(30 * time.Second)},
		{"two days", DelaySpec{Amount: 2, Unit: "days"}, now.Add(48 * time.Hour)},
		{"default unit is minutes", DelaySpec{Amount: 5}, now.Add(5 * time.Minute)},
		{"zero duration resumes immediately", DelaySpec{Amount: 0, Unit: "minutes"}, now},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.delay.ResumeAt(now))
		})
	}

	until := now.Add(-time.Hour)
	past := DelaySpec{Amount: 99, Unit: "hours", Until: &until}
	assert.Equal(t, until, past.ResumeAt(now), "absolute timestamp wins over duration")
}

func TestExecutionState_Terminal(t *testing.T) {
	for status, terminal := range map[ExecutionStatus]bool{
		ExecutionStatusRunning:   false,
		ExecutionStatusWaiting:   false,
		ExecutionStatusCompleted: true,
		ExecutionStatusFailed:    true,
		ExecutionStatusCancelled: true,
	} {
		state := &ExecutionState{Status: status}
		assert.Equal(t, terminal, state.IsTerminal(), "status %s", status)
	}
}

func TestExecutionState_ReplayGuard(t *testing.T) {
	state := &ExecutionState{}

	assert.False(t, state.HasExecuted("node-1"))

	state.MarkExecuted("node-1")
	state.MarkExecuted("node-1")

	assert.True(t, state.HasExecuted("node-1"))
	assert.Len(t, state.ExecutedNodes, 1, "marking twice must not duplicate the guard entry")
}

func TestNewSchedule(t *testing.T) {
	schedule, err := NewSchedule("sched-1", "wf-1", "company-1", "*/5 * * * *")
	require.NoError(t, err)

	assert.True(t, schedule.Active)
	assert.False(t, schedule.NextDueAt.IsZero())
	assert.True(t, schedule.NextDueAt.After(time.Now().UTC().Add(-time.Minute)))

	_, err = NewSchedule("sched-2", "wf-1", "company-1", "not a cron")
	require.Error(t, err)
}

func TestSchedule_IsDue(t *testing.T) {
	now := time.Now().UTC()

	schedule := &Schedule{Active: true, NextDueAt: now.Add(-time.Minute)}
	assert.True(t, schedule.IsDue(now))

	schedule.NextDueAt = now.Add(time.Minute)
	assert.False(t, schedule.IsDue(now))

	schedule.NextDueAt = now.Add(-time.Minute)
	schedule.Active = false
	assert.False(t, schedule.IsDue(now), "inactive schedules are never due")
}

func TestWorkflow_TriggerNode(t *testing.T) {
	workflow := &Workflow{
		Nodes: []*WorkflowNode{
			{ID: "a", Kind: NodeKindAction},
			{ID: "t", Kind: NodeKindTrigger},
		},
	}

	trigger := workflow.TriggerNode()
	require.NotNil(t, trigger)
	assert.Equal(t, "t", trigger.ID)

	assert.Nil(t, (&Workflow{}).TriggerNode())
	assert.Nil(t, workflow.NodeByID("missing"))
}

func TestChannelForAction(t *testing.T) {
	channel, ok := ChannelForAction(ActionTypeSendEmail)
	require.True(t, ok)
	assert.Equal(t, ChannelEmail, channel)

	_, ok = ChannelForAction(ActionTypeUpdateLead)
	assert.False(t, ok)
}
