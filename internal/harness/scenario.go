package harness

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pcd/internal/device"
)

// Scenario is a scripted sequence of file operations against one fresh
// device, plus expectations on each step and on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are keyed by it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Capacity of the device under test. Defaults to device.DefaultCapacity.
	Capacity int `yaml:"capacity,omitempty"`

	// Steps run in order on the same device.
	Steps []Step `yaml:"steps"`

	// Assertions check final state after all steps.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one file operation.
type Step struct {
	// Op is one of open, release, seek, read, write.
	Op string `yaml:"op"`

	// Session names the handle the step runs on. Defaults to DefaultSession.
	// A name that was never opened, or was released, yields a bad handle.
	Session string `yaml:"session,omitempty"`

	// Seek arguments.
	Offset int64  `yaml:"offset,omitempty"`
	Whence string `yaml:"whence,omitempty"`

	// Count for read and write. Write defaults to the payload length.
	Count *int `yaml:"count,omitempty"`

	// Write payload; at most one of Data, Hex, Fill.
	Data string    `yaml:"data,omitempty"`
	Hex  string    `yaml:"hex,omitempty"`
	Fill *FillSpec `yaml:"fill,omitempty"`

	// Fault hands the store an unmapped buffer.
	Fault bool `yaml:"fault,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// FillSpec is count repetitions of one byte.
type FillSpec struct {
	Byte  int `yaml:"byte"`
	Count int `yaml:"count"`
}

// Expect is checked against a step's outcome. Unset fields are not checked.
type Expect struct {
	// N is the byte count for read/write.
	N *int `yaml:"n,omitempty"`

	// Pos is the cursor after the step.
	Pos *int64 `yaml:"pos,omitempty"`

	// Error is the expected error code. Empty means success.
	Error string `yaml:"error,omitempty"`

	// Data or Hex is the expected read payload.
	Data *string `yaml:"data,omitempty"`
	Hex  *string `yaml:"hex,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	// Type is one of buffer, position, sessions.
	Type string `yaml:"type"`

	// buffer: bytes at Offset equal Data, Hex or Fill.
	Offset int64     `yaml:"offset,omitempty"`
	Data   string    `yaml:"data,omitempty"`
	Hex    string    `yaml:"hex,omitempty"`
	Fill   *FillSpec `yaml:"fill,omitempty"`

	// position: Session's cursor equals Pos.
	Session string `yaml:"session,omitempty"`
	Pos     int64  `yaml:"pos,omitempty"`

	// sessions: number of open sessions equals Count.
	Count int `yaml:"count,omitempty"`
}

// Step operation names.
const (
	OpOpen    = "open"
	OpRelease = "release"
	OpSeek    = "seek"
	OpRead    = "read"
	OpWrite   = "write"
)

// Assertion type constants.
const (
	AssertBuffer   = "buffer"
	AssertPosition = "position"
	AssertSessions = "sessions"
)

// DefaultSession is the session name used when a step names none.
const DefaultSession = "s1"

var errorCodes = map[string]bool{
	string(device.ErrCodeInvalidArgument): true,
	string(device.ErrCodeOutOfSpace):      true,
	string(device.ErrCodeFault):           true,
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Capacity < 0 || s.Capacity > device.MaxCapacity {
		return fmt.Errorf("capacity must be positive and at most %d, got %d", device.MaxCapacity, s.Capacity)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch step.Op {
	case OpOpen, OpRelease:
	case OpSeek:
		if step.Whence != "" {
			if _, err := device.ParseWhence(step.Whence); err != nil {
				return err
			}
		}
	case OpRead:
		if step.Count == nil {
			return fmt.Errorf("count is required for read")
		}
	case OpWrite:
		if _, err := payloadOf(step.Data, step.Hex, step.Fill); err != nil {
			return err
		}
		if step.Count == nil && step.Data == "" && step.Hex == "" && step.Fill == nil {
			return fmt.Errorf("write needs a payload or a count")
		}
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	if e := step.Expect; e != nil {
		if e.Error != "" && !errorCodes[e.Error] {
			return fmt.Errorf("expect: unknown error code %q", e.Error)
		}
		if e.Data != nil && e.Hex != nil {
			return fmt.Errorf("expect: data and hex are mutually exclusive")
		}
		if e.Hex != nil {
			if _, err := hex.DecodeString(*e.Hex); err != nil {
				return fmt.Errorf("expect: hex: %w", err)
			}
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertBuffer:
		p, err := payloadOf(a.Data, a.Hex, a.Fill)
		if err != nil {
			return err
		}
		if len(p) == 0 {
			return fmt.Errorf("buffer assertion needs data, hex or fill")
		}
		if a.Offset < 0 {
			return fmt.Errorf("offset must be non-negative")
		}
	case AssertPosition:
	case AssertSessions:
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// payloadOf decodes at most one of text, hex or fill into bytes.
func payloadOf(text, hexStr string, fill *FillSpec) ([]byte, error) {
	set := 0
	for _, ok := range []bool{text != "", hexStr != "", fill != nil} {
		if ok {
			set++
		}
	}
	if set > 1 {
		return nil, fmt.Errorf("data, hex and fill are mutually exclusive")
	}

	switch {
	case text != "":
		return []byte(text), nil
	case hexStr != "":
		b, err := hex.DecodeString(hexStr)
		if err != nil {
			return nil, fmt.Errorf("hex: %w", err)
		}
		return b, nil
	case fill != nil:
		if fill.Byte < 0 || fill.Byte > 0xff {
			return nil, fmt.Errorf("fill byte %d out of range", fill.Byte)
		}
		if fill.Count < 0 {
			return nil, fmt.Errorf("fill count must be non-negative")
		}
		return bytes.Repeat([]byte{byte(fill.Byte)}, fill.Count), nil
	}
	return nil, nil
}

// capacityOf returns the device capacity a scenario runs with.
func capacityOf(s *Scenario) int {
	if s.Capacity > 0 {
		return s.Capacity
	}
	return device.DefaultCapacity
}
