package state

import (
	"testing"
)

// recordingState 记录生命周期调用与收到的动作
type recordingState struct {
	id      string
	entered int
	exited  int
	actions []Action
	actors  []string
	reject  bool
}

func (s *recordingState) OnEnter()      { s.entered++ }
func (s *recordingState) OnExit()       { s.exited++ }
func (s *recordingState) OnUpdate()     {}
func (s *recordingState) GetID() string { return s.id }

func (s *recordingState) HandleAction(player Player, action Action) error {
	if s.reject {
		return ErrActionNotAllowed
	}
	s.actors = append(s.actors, player.GetID())
	s.actions = append(s.actions, action)
	return nil
}

func TestBaseStateMachine_EntersInitialState(t *testing.T) {
	initial := &recordingState{id: "waiting"}
	sm := NewBaseStateMachine(initial)

	if initial.entered != 1 {
		t.Errorf("initial OnEnter calls = %d, want 1", initial.entered)
	}
	if sm.GetCurrentState() != initial {
		t.Error("current state must be the initial state")
	}
}

func TestBaseStateMachine_ChangeStateRunsExitThenEnter(t *testing.T) {
	a := &recordingState{id: "countdown"}
	b := &recordingState{id: "auction"}
	sm := NewBaseStateMachine(a)

	if err := sm.ChangeState(b); err != nil {
		t.Fatalf("ChangeState: %v", err)
	}
	if a.exited != 1 || b.entered != 1 {
		t.Errorf("exit/enter = %d/%d, want 1/1", a.exited, b.entered)
	}
	if sm.GetCurrentState().GetID() != "auction" {
		t.Errorf("current = %s", sm.GetCurrentState().GetID())
	}
}

// 转换守卫由已处理的动作驱动:先 continue 后放行
func TestBaseStateMachine_GuardGatedByHandledAction(t *testing.T) {
	results := &recordingState{id: "results"}
	next := &recordingState{id: "waiting"}
	sm := NewBaseStateMachine(results)
	sm.AddTransition(results, next, func() bool {
		return len(results.actions) > 0
	})

	if err := sm.ChangeState(next); err != ErrTransitionNotAllowed {
		t.Fatalf("guard not enforced: %v", err)
	}
	if sm.GetCurrentState() != results || results.exited != 0 || next.entered != 0 {
		t.Fatal("blocked transition must leave both states untouched")
	}

	if err := sm.GetCurrentState().HandleAction(playerRef("host"), Action{Type: ActionContinue}); err != nil {
		t.Fatalf("continue: %v", err)
	}
	if err := sm.ChangeState(next); err != nil {
		t.Fatalf("guard still blocking after continue: %v", err)
	}
	if results.exited != 1 || next.entered != 1 {
		t.Errorf("exit/enter after unlock = %d/%d, want 1/1", results.exited, next.entered)
	}
}

// 解码后的动作连同发起者一并到达当前状态
func TestBaseStateMachine_ActionDispatch(t *testing.T) {
	s := &recordingState{id: "finalChoice"}
	sm := NewBaseStateMachine(s)

	if err := sm.GetCurrentState().HandleAction(playerRef("p1"), Action{Type: ActionSubmitCard, Card: 4}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(s.actions) != 1 || s.actions[0].Type != ActionSubmitCard || s.actions[0].Card != 4 {
		t.Fatalf("recorded action = %+v", s.actions)
	}
	if s.actors[0] != "p1" {
		t.Errorf("actor = %s, want p1", s.actors[0])
	}

	s.reject = true
	if err := sm.GetCurrentState().HandleAction(playerRef("p2"), Action{Type: ActionPress}); err != ErrActionNotAllowed {
		t.Errorf("rejecting state: got %v, want ErrActionNotAllowed", err)
	}
}
