package gpio

import "fmt"

// WriteOp records a single Write call against a Fake.
type WriteOp struct {
	Pin   int
	Level Level
}

// Fake is a test double implementing Conn. Input levels are set directly
// by the test; every Write is recorded for assertions.
type Fake struct {
	// Levels holds the current level of every pin, inputs and outputs alike.
	Levels map[int]Level

	// Writes contains every Write call in order.
	Writes []WriteOp

	// Modes tracks configuration: "in" or "out" per pin.
	Modes map[int]string

	// Pulls tracks the pull resistor selected for input pins.
	Pulls map[int]Pull

	// SetupErr, WriteErr and ReadErr inject per-pin failures.
	SetupErr map[int]error
	WriteErr map[int]error
	ReadErr  map[int]error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFake creates a Fake with all pins reading Low.
func NewFake() *Fake {
	return &Fake{
		Levels:   make(map[int]Level),
		Modes:    make(map[int]string),
		Pulls:    make(map[int]Pull),
		SetupErr: make(map[int]error),
		WriteErr: make(map[int]error),
		ReadErr:  make(map[int]error),
	}
}

// SetLevel sets the level a subsequent Read of pin will return.
func (f *Fake) SetLevel(pin int, level Level) {
	f.Levels[pin] = level
}

func (f *Fake) SetOutput(pin int, initial Level) error {
	if err := f.SetupErr[pin]; err != nil {
		return err
	}
	f.Modes[pin] = "out"
	f.Levels[pin] = initial
	return nil
}

func (f *Fake) SetInput(pin int, pull Pull) error {
	if err := f.SetupErr[pin]; err != nil {
		return err
	}
	f.Modes[pin] = "in"
	f.Pulls[pin] = pull
	return nil
}

func (f *Fake) Write(pin int, level Level) error {
	if err := f.WriteErr[pin]; err != nil {
		return err
	}
	f.Levels[pin] = level
	f.Writes = append(f.Writes, WriteOp{Pin: pin, Level: level})
	return nil
}

func (f *Fake) Read(pin int) (Level, error) {
	if err := f.ReadErr[pin]; err != nil {
		return Low, err
	}
	return f.Levels[pin], nil
}

func (f *Fake) Close() error {
	f.Closed = true
	return nil
}

// WritesTo returns the writes issued against a single pin.
func (f *Fake) WritesTo(pin int) []WriteOp {
	var ops []WriteOp
	for _, op := range f.Writes {
		if op.Pin == pin {
			ops = append(ops, op)
		}
	}
	return ops
}

// FailReads makes every Read of pin fail until cleared.
func (f *Fake) FailReads(pin int) {
	f.ReadErr[pin] = fmt.Errorf("simulated read failure on pin %d", pin)
}

// ClearReadFailure restores normal reads for pin.
func (f *Fake) ClearReadFailure(pin int) {
	delete(f.ReadErr, pin)
}
