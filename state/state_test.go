package state

import (
	"testing"
)

// MockState is a test double for the State interface.
// It helps us track which methods have been called.
type MockState struct {
	ID            string
	OnEnterCalled bool
	OnExitCalled  bool
}

func (m *MockState) OnEnter() {
	m.OnEnterCalled = true
}

func (m *MockState) OnExit() {
	m.OnExitCalled = true
}

func (m *MockState) GetID() string {
	return m.ID
}

// reset clears the call tracking flags.
func (m *MockState) reset() {
	m.OnEnterCalled = false
	m.OnExitCalled = false
}

func TestStateMachine_InitialState(t *testing.T) {
	initialState := &MockState{ID: "initial"}
	sm := NewBaseStateMachine(initialState)

	if !initialState.OnEnterCalled {
		t.Error("Expected OnEnter to be called on the initial state")
	}

	if sm.GetCurrentState() != initialState {
		t.Error("GetCurrentState should return the initial state")
	}
}

func TestStateMachine_ChangeState(t *testing.T) {
	initialState := &MockState{ID: "initial"}
	nextState := &MockState{ID: "next"}

	sm := NewBaseStateMachine(initialState)
	initialState.reset()

	sm.ChangeState(nextState)
	if !initialState.OnExitCalled {
		t.Error("Expected OnExit to be called on the old state")
	}
	if !nextState.OnEnterCalled {
		t.Error("Expected OnEnter to be called on the new state")
	}
	if sm.GetCurrentState() != nextState {
		t.Error("GetCurrentState should return the new state")
	}
}

func TestStateMachine_SameStateIsNoop(t *testing.T) {
	running := &MockState{ID: StateRunning}
	sm := NewBaseStateMachine(running)
	running.reset()

	other := &MockState{ID: StateRunning}
	sm.ChangeState(other)
	if running.OnExitCalled || other.OnEnterCalled {
		t.Error("changing to a state with the same ID must not run hooks")
	}
	if sm.GetCurrentState() != running {
		t.Error("current state should be unchanged")
	}
}

func TestLifecycleState_Hooks(t *testing.T) {
	var calls []string
	stopped := &LifecycleState{ID: StateStopped}
	running := &LifecycleState{
		ID:    StateRunning,
		Enter: func() { calls = append(calls, "enter") },
		Exit:  func() { calls = append(calls, "exit") },
	}

	sm := NewBaseStateMachine(stopped)
	sm.ChangeState(running)
	sm.ChangeState(running)
	sm.ChangeState(stopped)
	sm.ChangeState(stopped)

	if len(calls) != 2 || calls[0] != "enter" || calls[1] != "exit" {
		t.Errorf("expected [enter exit], got %v", calls)
	}
}
