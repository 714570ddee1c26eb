package shared

import "time"

// IntegrateArgs are passed to the Integrate method
type IntegrateArgs struct {
	Function  string
	Lower     float64
	Upper     float64
	Intervals int
	Client    string
}

// IntegrateReply is returned from an Integrate method call
type IntegrateReply struct {
	ID             string
	Function       string
	Canonical      string
	Antiderivative string
	Lower          float64
	Upper          float64
	Intervals      int
	Approx         float64
	HasExact       bool
	Exact          float64
	AbsError       float64
	Grid           []float64
	Values         []float64
	Text           string
}

// FunctionsArgs are passed to the Functions method
type FunctionsArgs struct {
	Client string
}

// FunctionsReply lists the preset functions
type FunctionsReply struct {
	Functions []FunctionInfo
}

// FunctionInfo describes one preset function
type FunctionInfo struct {
	Group string
	Text  string
}

// PingArgs are passed to the Ping method
type PingArgs struct {
	Client string
}

// PingReply is returned from a Ping method call
type PingReply struct {
	Time time.Time
}
