package domain

// ServiceType is the physical medium a service is bound to.
type ServiceType int

const (
	ServiceTypeUnknown ServiceType = iota
	ServiceTypeEthernet
	ServiceTypeWiFi
	ServiceTypeWiMAX
)

// String returns the boundary name of the type, or "" when it has none.
func (t ServiceType) String() string {
	switch t {
	case ServiceTypeEthernet:
		return "ethernet"
	case ServiceTypeWiFi:
		return "wifi"
	case ServiceTypeWiMAX:
		return "wimax"
	}
	return ""
}

// ParseServiceType is the inverse of String. Unknown names map to ServiceTypeUnknown.
func ParseServiceType(s string) ServiceType {
	switch s {
	case "ethernet":
		return ServiceTypeEthernet
	case "wifi":
		return ServiceTypeWiFi
	case "wimax":
		return ServiceTypeWiMAX
	}
	return ServiceTypeUnknown
}

// ServiceMode is the wireless operating mode.
type ServiceMode int

const (
	ModeUnknown ServiceMode = iota
	ModeManaged
	ModeAdhoc
)

func (m ServiceMode) String() string {
	switch m {
	case ModeManaged:
		return "managed"
	case ModeAdhoc:
		return "adhoc"
	}
	return ""
}

// ParseMode converts a "WiFi.Mode" network property.
func ParseMode(s string) ServiceMode {
	switch s {
	case "managed":
		return ModeManaged
	case "adhoc":
		return ModeAdhoc
	}
	return ModeUnknown
}

// SecurityKind is the link-layer protection advertised by a network.
type SecurityKind int

const (
	SecurityUnknown SecurityKind = iota
	SecurityNone
	SecurityWEP
	SecurityWPA
	SecurityWPA2
)

func (s SecurityKind) String() string {
	switch s {
	case SecurityNone:
		return "none"
	case SecurityWEP:
		return "wep"
	case SecurityWPA:
		return "wpa"
	case SecurityWPA2:
		return "wpa2"
	}
	return ""
}

// ParseSecurity converts a "WiFi.Security" network property.
func ParseSecurity(s string) SecurityKind {
	switch s {
	case "none":
		return SecurityNone
	case "wep":
		return SecurityWEP
	case "wpa":
		return SecurityWPA
	case "wpa2":
		return SecurityWPA2
	}
	return SecurityUnknown
}

// ServiceState is a step of the connection state machine.
type ServiceState int

const (
	StateUnknown ServiceState = iota
	StateIdle
	StateCarrier
	StateAssociation
	StateConfiguration
	StateReady
	StateDisconnect
	StateFailure
)

func (s ServiceState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCarrier:
		return "carrier"
	case StateAssociation:
		return "association"
	case StateConfiguration:
		return "configuration"
	case StateReady:
		return "ready"
	case StateDisconnect:
		return "disconnect"
	case StateFailure:
		return "failure"
	}
	return ""
}

// Connecting reports whether a connect attempt is still waiting for completion.
func (s ServiceState) Connecting() bool {
	return s == StateAssociation || s == StateConfiguration
}

// Property names exposed at the call boundary.
const (
	PropType       = "Type"
	PropMode       = "Mode"
	PropSecurity   = "Security"
	PropState      = "State"
	PropStrength   = "Strength"
	PropFavorite   = "Favorite"
	PropName       = "Name"
	PropPassphrase = "Passphrase"
)

// Network property keys understood by the registry.
const (
	NetworkKeyName       = "Name"
	NetworkKeyStrength   = "Strength"
	NetworkKeyMode       = "WiFi.Mode"
	NetworkKeySecurity   = "WiFi.Security"
	NetworkKeyPassphrase = "WiFi.Passphrase"
)

// ServiceRecord is the persisted subset of a service.
type ServiceRecord struct {
	Identifier string
	Type       ServiceType
	Mode       ServiceMode
	Security   SecurityKind
	Favorite   bool
	Order      uint
	Name       string
	Passphrase string
}

// PropertyChange is emitted whenever an exposed property of a service changes.
type PropertyChange struct {
	Path  string `json:"path"`
	Name  string `json:"name"`
	Value any    `json:"value"`
}
