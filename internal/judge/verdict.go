package judge

import "fmt"

// Verdict is the tri-state outcome of a single judging step. It is used
// both as the result of Node.Receive and as the label on graph edges.
type Verdict int

const (
	VerdictOK Verdict = iota
	VerdictFail
	VerdictInconclusive
)

var verdictNames = map[Verdict]string{
	VerdictOK:           "OK",
	VerdictFail:         "FAIL",
	VerdictInconclusive: "INCONCLUSIVE",
}

func (v Verdict) String() string {
	if name, ok := verdictNames[v]; ok {
		return name
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

// ParseVerdict converts a string form ("OK", "FAIL", "INCONCLUSIVE")
// back into a Verdict.
func ParseVerdict(s string) (Verdict, error) {
	for v, name := range verdictNames {
		if name == s {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown verdict: %q", s)
}

// MarshalText implements encoding.TextMarshaler so verdicts render as
// their names in JSON and YAML payloads.
func (v Verdict) MarshalText() ([]byte, error) {
	name, ok := verdictNames[v]
	if !ok {
		return nil, fmt.Errorf("cannot marshal verdict %d", int(v))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Verdict) UnmarshalText(text []byte) error {
	parsed, err := ParseVerdict(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
