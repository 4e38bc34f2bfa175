package types

// ------------------------
// Capability addressing & kinds
// ------------------------

type Kind string

const (
	KindRTC Kind = "rtc"
)

// CapabilityAddress identifies a public capability on the bus.
type CapabilityAddress struct {
	Domain string `json:"domain"` // e.g. "time"
	Kind   Kind   `json:"kind"`
	Name   string `json:"name"`
}
