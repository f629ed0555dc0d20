package session

// Severity of the status banner.
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// State is a snapshot of the session; subscribers never see the live value.
type State struct {
	Account         string // checksummed hex, "" when none
	ChainID         string // decimal, "" when unknown
	Status          string
	Severity        Severity
	Connected       bool
	DepositLoading  bool
	TransferLoading bool
	LastTx          string // hash of the last mined action in this session
}

type EventKind int

const (
	EventConnected EventKind = iota // bootstrap finished (successfully or not)
	EventStatus
	EventAccountChanged
	EventLoading
	EventReloaded // network switch: everything below was reset
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventStatus:
		return "status"
	case EventAccountChanged:
		return "account"
	case EventLoading:
		return "loading"
	case EventReloaded:
		return "reloaded"
	}
	return "unknown"
}

type Event struct {
	Kind  EventKind
	State State
}
