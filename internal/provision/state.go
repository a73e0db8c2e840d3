package provision

import "fmt"

// State is a barrier in the provisioning sequence.
type State int

// States in their forced order. Aborted is the only failure state.
const (
	Init State = iota
	EnvironmentDetected
	DependenciesReady
	BootstrapConfigLive
	ProxyRunning
	CertificateIssued
	FinalConfigLive
	RenewalScheduled
	Done
	Aborted
)

var stateNames = [...]string{
	Init:                "Init",
	EnvironmentDetected: "EnvironmentDetected",
	DependenciesReady:   "DependenciesReady",
	BootstrapConfigLive: "BootstrapConfigLive",
	ProxyRunning:        "ProxyRunning",
	CertificateIssued:   "CertificateIssued",
	FinalConfigLive:     "FinalConfigLive",
	RenewalScheduled:    "RenewalScheduled",
	Done:                "Done",
	Aborted:             "Aborted",
}

// String returns the state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText lets states appear by name in JSON and YAML.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Done || s == Aborted
}

// Phases returns the number of transitions from Init to Done.
func Phases() int {
	return int(Done - Init)
}

// Next is the transition function. A nil phase result advances to the
// successor; any error aborts. Terminal and unknown states cannot be left.
func Next(s State, phaseErr error) (State, error) {
	if s.Terminal() {
		return s, fmt.Errorf("no transition out of terminal state %s", s)
	}
	if s < Init || s > Done {
		return s, fmt.Errorf("unknown state %d", int(s))
	}
	if phaseErr != nil {
		return Aborted, nil
	}
	return s + 1, nil
}
