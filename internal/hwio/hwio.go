// Package hwio defines the hardware port contract the trial engine drives:
// boolean inputs with bounded-timeout polling, boolean outputs with
// synchronous writes, and fire-and-forget audio outputs. Ports wrap a driver
// that exposes narrow capability interfaces; a driver missing a required
// capability fails port construction, before the control loop starts.
//
// BooleanInput.Poll is the only blocking primitive in the runtime. Every
// higher-level wait is expressed as a bounded call to it.
package hwio

import (
	"context"
	"fmt"
	"time"

	"operantcore/pkg/domain"
)

// Params carries driver-specific configuration for one channel.
type Params map[string]any

// BoolReader is the driver capability behind BooleanInput.
type BoolReader interface {
	ReadBool(channel string) (bool, error)
}

// BoolWriter is the driver capability behind BooleanOutput.
type BoolWriter interface {
	WriteBool(channel string, value bool) (bool, error)
}

// AudioDevice is the driver capability behind AudioOutput.
type AudioDevice interface {
	QueueWav(path string) error
	PlayWav() error
	StopWav() error
}

// Configurer is an optional driver capability for per-channel setup.
type Configurer interface {
	Configure(channel string, params Params) error
}

// DefaultRetryInterval bounds how often Poll re-reads the input.
const DefaultRetryInterval = 15 * time.Millisecond

func configure(name string, driver any, params Params) error {
	if c, ok := driver.(Configurer); ok {
		if err := c.Configure(name, params); err != nil {
			return &domain.HardwareError{Port: name, Op: "configure", Err: err}
		}
	}
	return nil
}

// BooleanInput reads a boolean sensor (peck key, IR beam, switch).
type BooleanInput struct {
	name   string
	driver BoolReader
	retry  time.Duration
	sink   domain.Sink
}

// NewBooleanInput wires an input port. The driver must implement BoolReader;
// anything else is a construction-time configuration fault.
func NewBooleanInput(name string, driver any, params Params, sink domain.Sink) (*BooleanInput, error) {
	r, ok := driver.(BoolReader)
	if !ok {
		return nil, domain.NewConfigError(name, fmt.Errorf("driver %T cannot read boolean inputs", driver))
	}
	if err := configure(name, driver, params); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = domain.NopSink{}
	}
	return &BooleanInput{name: name, driver: r, retry: DefaultRetryInterval, sink: sink}, nil
}

// Name returns the port name used in events and errors.
func (p *BooleanInput) Name() string { return p.name }

// Read returns the instantaneous value of the input.
func (p *BooleanInput) Read() (bool, error) {
	v, err := p.driver.ReadBool(p.name)
	if err != nil {
		return false, &domain.HardwareError{Port: p.name, Op: "read", Err: err}
	}
	return v, nil
}

// Poll blocks the control thread, re-reading the input at a bounded retry
// interval until it goes true. It returns the detection timestamp, or
// ok=false if the timeout elapses first. A non-positive timeout polls until
// the input triggers or ctx is done; cancellation is only observed between
// reads, never mid-read.
func (p *BooleanInput) Poll(ctx context.Context, timeout time.Duration) (time.Time, bool, error) {
	p.sink.Write(domain.Event{Name: p.name, Action: "poll"})
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	ticker := time.NewTicker(p.retry)
	defer ticker.Stop()
	for {
		v, err := p.driver.ReadBool(p.name)
		if err != nil {
			return time.Time{}, false, &domain.HardwareError{Port: p.name, Op: "poll", Err: err}
		}
		if v {
			now := time.Now()
			p.sink.Write(domain.Event{Name: p.name, Action: "detect"})
			return now, true, nil
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return time.Time{}, false, nil
		}
		select {
		case <-ctx.Done():
			return time.Time{}, false, ctx.Err()
		case <-ticker.C:
		}
	}
}

// BooleanOutput drives a boolean actuator (lamp, feeder solenoid, valve).
// Writes are synchronous and non-blocking.
type BooleanOutput struct {
	name   string
	writer BoolWriter
	reader BoolReader // optional readback
	last   bool
	sink   domain.Sink
}

// NewBooleanOutput wires an output port. The driver must implement
// BoolWriter; readback uses BoolReader when available and falls back to the
// last written value otherwise.
func NewBooleanOutput(name string, driver any, params Params, sink domain.Sink) (*BooleanOutput, error) {
	w, ok := driver.(BoolWriter)
	if !ok {
		return nil, domain.NewConfigError(name, fmt.Errorf("driver %T cannot write boolean outputs", driver))
	}
	if err := configure(name, driver, params); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = domain.NopSink{}
	}
	out := &BooleanOutput{name: name, writer: w, sink: sink}
	if r, ok := driver.(BoolReader); ok {
		out.reader = r
	}
	return out, nil
}

// Name returns the port name used in events and errors.
func (p *BooleanOutput) Name() string { return p.name }

// Write sets the output and returns the value written.
func (p *BooleanOutput) Write(value bool) (bool, error) {
	v, err := p.writer.WriteBool(p.name, value)
	if err != nil {
		return false, &domain.HardwareError{Port: p.name, Op: "write", Err: err}
	}
	p.last = v
	p.sink.Write(domain.Event{Name: p.name, Action: "write", Metadata: fmt.Sprintf("%v", v)})
	return v, nil
}

// Read returns the output's current value, preferring driver readback.
func (p *BooleanOutput) Read() (bool, error) {
	if p.reader == nil {
		return p.last, nil
	}
	v, err := p.reader.ReadBool(p.name)
	if err != nil {
		return false, &domain.HardwareError{Port: p.name, Op: "read", Err: err}
	}
	return v, nil
}

// Toggle flips the output and returns the new value.
func (p *BooleanOutput) Toggle() (bool, error) {
	v, err := p.Read()
	if err != nil {
		return false, err
	}
	return p.Write(!v)
}

// AudioOutput plays stimulus content through the panel speaker. Queue, Play
// and Stop are fire-and-forget; callers await completion with an explicit
// duration wait, never by blocking inside the port.
type AudioOutput struct {
	name   string
	device AudioDevice
	sink   domain.Sink
}

// NewAudioOutput wires an audio port. The driver must implement AudioDevice.
func NewAudioOutput(name string, driver any, params Params, sink domain.Sink) (*AudioOutput, error) {
	d, ok := driver.(AudioDevice)
	if !ok {
		return nil, domain.NewConfigError(name, fmt.Errorf("driver %T cannot play audio", driver))
	}
	if err := configure(name, driver, params); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = domain.NopSink{}
	}
	return &AudioOutput{name: name, device: d, sink: sink}, nil
}

// Name returns the port name used in events and errors.
func (p *AudioOutput) Name() string { return p.name }

// Queue stages content for playback.
func (p *AudioOutput) Queue(contentRef string) error {
	if err := p.device.QueueWav(contentRef); err != nil {
		return &domain.HardwareError{Port: p.name, Op: "queue", Err: err}
	}
	p.sink.Write(domain.Event{Name: p.name, Action: "queue", Metadata: contentRef})
	return nil
}

// Play starts playback of the queued content.
func (p *AudioOutput) Play() error {
	if err := p.device.PlayWav(); err != nil {
		return &domain.HardwareError{Port: p.name, Op: "play", Err: err}
	}
	p.sink.Write(domain.Event{Name: p.name, Action: "play"})
	return nil
}

// Stop halts playback.
func (p *AudioOutput) Stop() error {
	if err := p.device.StopWav(); err != nil {
		return &domain.HardwareError{Port: p.name, Op: "stop", Err: err}
	}
	p.sink.Write(domain.Event{Name: p.name, Action: "stop"})
	return nil
}
