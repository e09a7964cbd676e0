package sound

import (
	"fmt"
	"log/slog"
	"slices"
)

// Deps are the collaborators a Dispatcher drives.
type Deps struct {
	// Registry is created from Player when nil.
	Registry  *Registry
	Fields    Fields
	Resources Resources
	Player    Player
	// Factory defaults to StreamFactory.
	Factory IteratorFactory
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithDigitalAudio enables audio assets as a source for play commands.
func WithDigitalAudio(enabled bool) Option {
	return func(d *Dispatcher) {
		d.digitalAudio = enabled
	}
}

// WithTickRate sets the tick rate used to convert voice durations and the
// min/sec/frame timing fields.
func WithTickRate(hz int) Option {
	return func(d *Dispatcher) {
		if hz > 0 {
			d.tickRate = hz
		}
	}
}

// Dispatcher decodes numbered sound commands for one protocol variant.
type Dispatcher struct {
	variant Variant
	table   []command

	registry   *Registry
	fields     Fields
	resources  Resources
	player     Player
	factory    IteratorFactory
	reconciler *Reconciler

	logger       *slog.Logger
	digitalAudio bool
	tickRate     int
}

type command struct {
	name string
	fn   handlerFunc
}

// call carries the decoded operands of one command.
type call struct {
	name     string
	acc      int64
	obj      ObjectRef
	handle   Handle
	value    int
	operands []int64
	err      error
}

func (c *call) operand(i int) (int64, bool) {
	if i < len(c.operands) {
		return c.operands[i], true
	}
	return 0, false
}

// New builds the opcode table for variant. The table is fixed for the
// lifetime of the dispatcher.
func New(variant Variant, deps Deps, opts ...Option) (*Dispatcher, error) {
	names, ok := commandTables[variant]
	if !ok {
		return nil, fmt.Errorf("sound: new dispatcher %s: %w", variant, ErrUnknownVariant)
	}
	switch {
	case deps.Fields == nil:
		return nil, fmt.Errorf("sound: new dispatcher: fields: %w", ErrMissingDependency)
	case deps.Resources == nil:
		return nil, fmt.Errorf("sound: new dispatcher: resources: %w", ErrMissingDependency)
	case deps.Player == nil:
		return nil, fmt.Errorf("sound: new dispatcher: player: %w", ErrMissingDependency)
	}

	d := &Dispatcher{
		variant:   variant,
		fields:    deps.Fields,
		resources: deps.Resources,
		player:    deps.Player,
		factory:   deps.Factory,
		logger:    slog.Default().With("component", "sound"),
		tickRate:  DefaultTickRateHz,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.factory == nil {
		d.factory = StreamFactory{}
	}
	d.registry = deps.Registry
	if d.registry == nil {
		d.registry = NewRegistry(deps.Player, d.logger)
	}

	table, err := buildTable(names)
	if err != nil {
		return nil, fmt.Errorf("sound: new dispatcher %s: %w", variant, err)
	}
	d.table = table
	d.reconciler = NewReconciler(variant, d.registry, d.fields, d.logger)
	d.logger.Debug("dispatcher ready", "variant", variant.String(), "commands", len(table))
	return d, nil
}

func buildTable(names []string) ([]command, error) {
	table := make([]command, 0, len(names))
	for _, name := range names {
		fn, ok := handlers[name]
		if !ok {
			return nil, fmt.Errorf("handler %q: %w", name, ErrUnsupportedOperation)
		}
		table = append(table, command{name: name, fn: fn})
	}
	return table, nil
}

// Dispatch runs one command. Operand 0 is the target object and operand 1
// the signed 16-bit value; sendMidi also reads the controller and parameter
// from operands 2 and 3. The returned accumulator is acc unless the command
// produces a result. Errors are reported but never fatal: the command has
// already degraded to a stopped, signalled handle.
func (d *Dispatcher) Dispatch(acc int64, index int, operands ...int64) (int64, error) {
	if index < 0 || index >= len(d.table) {
		d.logger.Warn("invalid sound command", "command", index, "valid", fmt.Sprintf("0-%d", len(d.table)-1))
		return acc, fmt.Errorf("sound: command %d of %d: %w", index, len(d.table), ErrInvalidCommand)
	}

	cmd := d.table[index]
	c := &call{name: cmd.name, acc: acc, operands: operands}
	if v, ok := c.operand(0); ok {
		c.obj = ObjectRef(v)
	}
	c.handle = HandleOf(c.obj)
	if v, ok := c.operand(1); ok {
		c.value = int(int16(uint16(v)))
	}

	d.logger.Debug("sound command", "command", cmd.name, "object", c.handle.String(), "value", c.value)
	cmd.fn(d, c)
	return c.acc, c.err
}

// Commands returns the opcode table's command names in wire order.
func (d *Dispatcher) Commands() []string {
	names := make([]string, len(d.table))
	for i, c := range d.table {
		names[i] = c.name
	}
	return names
}

// Opcode returns the first index of the named command.
func (d *Dispatcher) Opcode(name string) (int, bool) {
	i := slices.IndexFunc(d.table, func(c command) bool { return c.name == name })
	return i, i >= 0
}

func (d *Dispatcher) Variant() Variant {
	return d.variant
}

func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Reconcile copies pending registry events into script fields. Only the
// oldest variant relies on it; newer ones poll with updateCues.
func (d *Dispatcher) Reconcile() error {
	return d.reconciler.Reconcile()
}

// CommandTable returns the command names of a variant without building a
// dispatcher.
func CommandTable(variant Variant) ([]string, error) {
	names, ok := commandTables[variant]
	if !ok {
		return nil, fmt.Errorf("sound: command table %s: %w", variant, ErrUnknownVariant)
	}
	return slices.Clone(names), nil
}
