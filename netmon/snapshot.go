package netmon

import "time"

// LinkClass is a coarse classification of current network bandwidth,
// mirroring the effective connection types reported by mobile platforms.
// It scales retry backoff: the worse the link, the longer the spacing.
type LinkClass int

const (
	// LinkUnknown means no link-quality hint is available.
	LinkUnknown LinkClass = iota

	// LinkSlow2G is a severely constrained link (~50kbps or worse).
	LinkSlow2G

	// Link2G is a constrained link.
	Link2G

	// Link3G is a moderate link.
	Link3G

	// Link4G is a good link.
	Link4G
)

// String returns the canonical name of the link class.
func (c LinkClass) String() string {
	switch c {
	case LinkSlow2G:
		return "slow-2g"
	case Link2G:
		return "2g"
	case Link3G:
		return "3g"
	case Link4G:
		return "4g"
	default:
		return "unknown"
	}
}

// ParseLinkClass parses a canonical link class name. Unrecognized names
// map to LinkUnknown rather than an error; a bad hint is not fatal.
func ParseLinkClass(s string) LinkClass {
	switch s {
	case "slow-2g":
		return LinkSlow2G
	case "2g":
		return Link2G
	case "3g":
		return Link3G
	case "4g":
		return Link4G
	default:
		return LinkUnknown
	}
}

// MarshalText encodes the link class as its canonical name.
func (c LinkClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a canonical link class name.
func (c *LinkClass) UnmarshalText(b []byte) error {
	*c = ParseLinkClass(string(b))
	return nil
}

// Multiplier returns the backoff scaling factor for this link class.
func (c LinkClass) Multiplier() int {
	switch c {
	case LinkSlow2G:
		return 4
	case Link2G:
		return 3
	case Link3G:
		return 2
	case Link4G:
		return 1
	default:
		return 2
	}
}

// Snapshot is the monitor's view of connectivity at a point in time.
//
// Online reflects the host's connectivity hint (an interface is up);
// APIReachable reflects the last reachability probe (the remote API
// actually answered). The two differ when the network is up but the
// server is down.
type Snapshot struct {
	Online       bool      `json:"online"`
	APIReachable bool      `json:"api_reachable"`
	Link         LinkClass `json:"link"`
	Timestamp    time.Time `json:"timestamp"`
}

// Usable reports whether requests are worth attempting right now.
func (s Snapshot) Usable() bool {
	return s.Online && s.APIReachable
}

// Equal reports whether two snapshots describe the same state,
// ignoring the capture timestamp.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.Online == o.Online && s.APIReachable == o.APIReachable && s.Link == o.Link
}
