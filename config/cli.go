package config

// Cli holds every flag/env-configurable parameter the Aid process needs. It is
// populated once in main() via github.com/peterbourgon/ff/v3 and passed down by
// value to the components that need it.
type Cli struct {
	// Mode is currently always "start"; kept as a field so the Process Supervisor has
	// room to grow additional modes without a breaking flag change.
	Mode string

	HTTPAddress         string
	HTTPInternalAddress string

	StoreConnectionString string
	RegistryPath          string

	WebhookURL string

	VideoRecordAPIURL    string
	ClusterDirectoryURL  string

	APIToken string
}
