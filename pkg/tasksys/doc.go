// Package tasksys implements a small task runner built on Starlark for the
// task declarations and mvdan.cc/sh for the shell runtime. Tasks form an
// explicit dependency chain and run strictly sequentially; the first failing
// command aborts everything that follows.
package tasksys
