package state

import (
	"sync"
)

// 状态接口
type State interface {
	OnEnter()
	OnExit()
	GetID() string
}

// 基础状态机实现
type BaseStateMachine struct {
	currentState State
	mutex        sync.RWMutex
}

func NewBaseStateMachine(initialState State) *BaseStateMachine {
	machine := &BaseStateMachine{
		currentState: initialState,
	}
	initialState.OnEnter()
	return machine
}

// ChangeState switches to newState. Changing to a state with the current state's ID
// is a no-op, so repeated requests are idempotent. Hooks run under the machine lock.
func (sm *BaseStateMachine) ChangeState(newState State) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if sm.currentState.GetID() == newState.GetID() {
		return
	}
	sm.currentState.OnExit()
	sm.currentState = newState
	sm.currentState.OnEnter()
}

func (sm *BaseStateMachine) GetCurrentState() State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.currentState
}

// Lifecycle IDs shared by the clock and the gateway.
const (
	StateStopped = "stopped"
	StateRunning = "running"
)

// LifecycleState 运行/停止状态，进入与退出时执行回调
type LifecycleState struct {
	ID    string
	Enter func()
	Exit  func()
}

func (s *LifecycleState) GetID() string {
	return s.ID
}

func (s *LifecycleState) OnEnter() {
	if s.Enter != nil {
		s.Enter()
	}
}

func (s *LifecycleState) OnExit() {
	if s.Exit != nil {
		s.Exit()
	}
}
