package core

import "time"

// ChannelPreference is one channel's opt-in state plus delivery address
// (email address, webhook default URL, device token).
type ChannelPreference struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address,omitempty"`
	Verified bool   `json:"verified,omitempty"`
}

// TypePreference narrows delivery for a single notification type.
type TypePreference struct {
	Enabled  bool      `json:"enabled"`
	Channels []Channel `json:"channels,omitempty"`
	// MinPriority suppresses external channels for notifications ranking
	// below it; empty means no floor.
	MinPriority Priority `json:"minPriority,omitempty"`
}

// QuietHours suppresses non-urgent external delivery inside a daily window.
// Start and End are "HH:MM"; Start > End means the window wraps midnight.
// Urgent notifications always pass through the window.
type QuietHours struct {
	Enabled  bool           `json:"enabled"`
	Start    string         `json:"start"`
	End      string         `json:"end"`
	Timezone string         `json:"timezone,omitempty"`
	Weekdays []time.Weekday `json:"weekdays,omitempty"`

	// AllowUrgentOverride is stored for API compatibility; the resolver
	// treats urgent as exempt regardless of its value.
	AllowUrgentOverride bool `json:"allowUrgentOverride"`
}

// DigestSettings are stored but not acted on by the delivery path.
type DigestSettings struct {
	Enabled   bool   `json:"enabled"`
	Frequency string `json:"frequency,omitempty"` // daily | weekly
	Hour      int    `json:"hour,omitempty"`
}

// Preferences is the per-user notification configuration, created lazily with
// defaults on first read.
type Preferences struct {
	UserID    string                      `json:"userId"`
	Enabled   bool                        `json:"enabled"`
	Channels  map[Channel]ChannelPreference `json:"channels"`
	Types     map[Type]TypePreference     `json:"types,omitempty"`
	Quiet     *QuietHours                 `json:"quietHours,omitempty"`
	Digest    *DigestSettings             `json:"digest,omitempty"`
	CreatedAt time.Time                   `json:"createdAt"`
	UpdatedAt time.Time                   `json:"updatedAt"`
}

// DefaultPreferences returns the lazily-constructed default record: globally
// enabled, in-app on, email known but without an address, webhook off until a
// registration exists.
func DefaultPreferences(userID string) *Preferences {
	now := time.Now().UTC()
	return &Preferences{
		UserID:  userID,
		Enabled: true,
		Channels: map[Channel]ChannelPreference{
			ChannelInApp:   {Enabled: true},
			ChannelEmail:   {Enabled: true},
			ChannelWebhook: {Enabled: true},
		},
		Types:     map[Type]TypePreference{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ChannelEnabled reports whether ch is enabled. A channel absent from the map
// counts as enabled; only an explicit false opts out.
func (p *Preferences) ChannelEnabled(ch Channel) bool {
	cp, ok := p.Channels[ch]
	if !ok {
		return true
	}
	return cp.Enabled
}

// ChannelAddress returns the configured address for ch, if any.
func (p *Preferences) ChannelAddress(ch Channel) string {
	return p.Channels[ch].Address
}
