// Package commands holds the debug console's named actions.
package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kcaldas/devkit/pkg/debuglog"
	"github.com/kcaldas/devkit/pkg/events"
)

// ErrCommandNotFound is returned when executing a name nobody registered.
var ErrCommandNotFound = errors.New("command not found")

// ExecFunc runs a command with its positional arguments.
type ExecFunc func(ctx context.Context, args ...string) (any, error)

// Command is a named debug action.
type Command struct {
	Name        string
	Description string
	Aliases     []string
	Exec        ExecFunc
}

// Executed is published on the bus after every successful command.
type Executed struct {
	Command  string        `json:"command"`
	Args     []string      `json:"args"`
	Result   any           `json:"result,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Topic implements events.Event.
func (Executed) Topic() string { return events.TopicCommand }

// Dispatcher maps command names to executors.
type Dispatcher struct {
	log debuglog.Sink
	pub events.Publisher

	mu       sync.RWMutex
	commands map[string]Command
	aliases  map[string]string
}

// NewDispatcher creates an empty dispatcher. pub may be nil.
func NewDispatcher(log debuglog.Sink, pub events.Publisher) *Dispatcher {
	if log == nil {
		log = debuglog.Discard()
	}
	return &Dispatcher{
		log:      log,
		pub:      pub,
		commands: make(map[string]Command),
		aliases:  make(map[string]string),
	}
}

// Register adds cmd, replacing any command with the same name.
func (d *Dispatcher) Register(cmd Command) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		d.aliases[alias] = cmd.Name
	}
}

// RegisterFunc is shorthand for Register without aliases.
func (d *Dispatcher) RegisterFunc(name, description string, fn ExecFunc) {
	d.Register(Command{Name: name, Description: description, Exec: fn})
}

// Execute runs the named command. Failures are logged and returned.
func (d *Dispatcher) Execute(ctx context.Context, name string, args ...string) (any, error) {
	cmd, ok := d.lookup(name)
	if !ok {
		err := fmt.Errorf("%w: %q", ErrCommandNotFound, name)
		d.log.Error(fmt.Sprintf("Failed to execute command %q", name), "error", err.Error())
		return nil, err
	}

	start := time.Now()
	result, err := d.run(ctx, cmd, args)
	if err != nil {
		d.log.Error(fmt.Sprintf("Failed to execute command %q", cmd.Name), "error", err.Error(), "args", args)
		return nil, fmt.Errorf("command %s: %w", cmd.Name, err)
	}

	if d.pub != nil {
		d.pub.Publish(events.TopicCommand, Executed{
			Command:  cmd.Name,
			Args:     args,
			Result:   result,
			Duration: time.Since(start),
		})
	}
	return result, nil
}

// ExecuteLine parses a console line and executes it. An empty line does
// nothing.
func (d *Dispatcher) ExecuteLine(ctx context.Context, line string) (any, error) {
	name, args, ok := ParseLine(line)
	if !ok {
		return nil, nil
	}
	return d.Execute(ctx, name, args...)
}

// Commands lists the registered commands sorted by name.
func (d *Dispatcher) Commands() []Command {
	d.mu.RLock()
	out := make([]Command, 0, len(d.commands))
	for _, c := range d.commands {
		out = append(out, c)
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Has reports whether name or an alias of it is registered.
func (d *Dispatcher) Has(name string) bool {
	_, ok := d.lookup(name)
	return ok
}

func (d *Dispatcher) lookup(name string) (Command, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if cmd, ok := d.commands[name]; ok {
		return cmd, true
	}
	if target, ok := d.aliases[name]; ok {
		cmd, ok := d.commands[target]
		return cmd, ok
	}
	return Command{}, false
}

func (d *Dispatcher) run(ctx context.Context, cmd Command, args []string) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = events.RecoveredError(rec)
		}
	}()
	if cmd.Exec == nil {
		return nil, nil
	}
	return cmd.Exec(ctx, args...)
}

// ParseLine splits "<name> <arg1> <arg2> ..." on whitespace. A leading ':'
// on the name is accepted.
func ParseLine(line string) (name string, args []string, ok bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return "", nil, false
	}
	name = strings.TrimPrefix(parts[0], ":")
	if name == "" {
		return "", nil, false
	}
	return name, parts[1:], true
}
