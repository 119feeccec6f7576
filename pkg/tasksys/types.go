package tasksys

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
	starsyntax "go.starlark.net/syntax"
	"mvdan.cc/sh/v3/syntax"
)

// ShellCmd is a task command holding a shell snippet that is parsed and
// executed through the sh interpreter.
type ShellCmd struct {
	TaskName string
	Content  string
	Index    int
}

func (s ShellCmd) ToTask() (*Task, error) {
	return nil, nil
}

func (s ShellCmd) ToShellStmts(parser *syntax.Parser) ([]*syntax.Stmt, error) {
	reader := strings.NewReader(s.Content)
	result, err := parser.Parse(reader, fmt.Sprintf("%s:%d", s.TaskName, s.Index))
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse command %s", s.Content)
	}

	return result.Stmts, nil
}

func (s ShellCmd) Run(context.Context) error {
	return nil
}

// TaskRef is a task command that points at another task which should run in
// the referencing task's place.
type TaskRef struct {
	Task *Task
}

func (t TaskRef) ToTask() (*Task, error) {
	return t.Task, nil
}

func (t TaskRef) ToShellStmts(*syntax.Parser) ([]*syntax.Stmt, error) {
	return nil, nil
}

func (t TaskRef) Run(context.Context) error {
	return nil
}

// FuncCmd is a task command backed by a Go function. The built-in packaging
// pipeline uses it for steps that would otherwise have to shell out to this
// very binary.
type FuncCmd struct {
	Name string
	Fn   func(ctx context.Context) error
}

func (f FuncCmd) ToTask() (*Task, error) {
	return nil, nil
}

func (f FuncCmd) ToShellStmts(*syntax.Parser) ([]*syntax.Stmt, error) {
	return nil, nil
}

func (f FuncCmd) Run(ctx context.Context) error {
	if f.Fn == nil {
		return eris.Errorf("command %s has no function attached", f.Name)
	}

	return f.Fn(ctx)
}

// TaskCmd is a single step inside a task. Exactly one of the three accessors
// returns something useful; the runner checks them in order.
type TaskCmd interface {
	ToTask() (*Task, error)
	ToShellStmts(*syntax.Parser) ([]*syntax.Stmt, error)
	Run(ctx context.Context) error
}

// Task contains the processed values declared either by a task script or by
// the built-in pipeline.
type Task struct {
	Env          map[string]string
	Name         string
	Desc         string
	Base         string
	Inputs       []string
	Deps         []string
	SkipIfExists []string
	Outputs      []string
	Cmds         []TaskCmd
	Hidden       bool
}

// TaskList maps task names to their definitions
type TaskList map[string]*Task

type ScriptOption struct {
	DefaultValue starlark.String
	Help         string
}

func (o ScriptOption) Default() string {
	return o.DefaultValue.GoString()
}

// Implement starlark.Value for *Task

// String returns a string representation of the task
func (t *Task) String() string {
	return fmt.Sprintf("<Task %s: %s>", t.Name, t.Desc)
}

// Type always returns "task" to indicate this type
func (t *Task) Type() string {
	return "task"
}

// Freeze doesn't do anything since tasks are immutable anyway
func (t *Task) Freeze() {}

// Truth always returns true since a task can't be nil or None
func (t *Task) Truth() starlark.Bool {
	return starlark.True
}

// Hash always returns an error since task is not a hashable type
func (t *Task) Hash() (uint32, error) {
	return 0, eris.New("task is not a hashable type")
}

// ScriptPath is a filesystem path value exposed to task scripts.
type ScriptPath string

func (p ScriptPath) String() string {
	return starlark.String(p).String()
}

func (p ScriptPath) Type() string {
	return "path"
}

func (p ScriptPath) Freeze() {}

func (p ScriptPath) Truth() starlark.Bool {
	return p != ""
}

func (p ScriptPath) Hash() (uint32, error) {
	return starlark.String(p).Hash()
}

func (p ScriptPath) CompareSameType(op starsyntax.Token, y_ starlark.Value, depth int) (bool, error) {
	y := y_.(ScriptPath)

	switch op {
	case starsyntax.EQL:
		return p == y, nil
	case starsyntax.NEQ:
		return p != y, nil
	case starsyntax.LT:
		return p < y, nil
	case starsyntax.LE:
		return p <= y, nil
	case starsyntax.GT:
		return p > y, nil
	case starsyntax.GE:
		return p >= y, nil
	}

	return false, eris.Errorf("unknown operator %v", op)
}

func (p ScriptPath) Index(i int) starlark.Value {
	return starlark.String(p[i])
}

func (p ScriptPath) Len() int {
	return len(p)
}

func (p ScriptPath) Slice(start, end, step int) starlark.Value {
	return starlark.String(p).Slice(start, end, step)
}
