package model

// Messages returned to the registration modal.
const (
	MsgEventFull   = "Sorry, this event is full."
	MsgServerLimit = "Error! Possibly server limit reached. Try again tomorrow."
	MsgTryLater    = "Error! Please try again later."
	MsgNoSelection = "No event selected."
	MsgNotEditor   = "You are not allowed to edit this event."
	MsgInvalidEdit = "Invalid event details."
)

// Reason classifies a failed Result.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonFull
	ReasonNoSelection
	ReasonForbidden
	ReasonInvalid
	ReasonRejected    // remote endpoint answered with a non-200 status
	ReasonUnavailable // remote endpoint unreachable or the call failed
)

// Result is the uniform outcome of a schedule operation.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Reason  Reason `json:"-"`
}

// Succeeded returns a successful Result.
func Succeeded() Result {
	return Result{Success: true}
}

// Failed returns a failed Result.
func Failed(reason Reason, msg string) Result {
	return Result{Reason: reason, Message: msg}
}

// ModalState is what the registration modal is rendered from.
type ModalState struct {
	Show          bool   `json:"show"`
	SelectedEvent *Event `json:"selectedEvent"`
	User          User   `json:"user"`
}

// Toolbar lays out the calendar header controls.
type Toolbar struct {
	Left   string `json:"left"`
	Center string `json:"center"`
	Right  string `json:"right"`
}

// CalendarOptions configures the calendar widget.
type CalendarOptions struct {
	InitialView   string  `json:"initialView"`
	SlotMinTime   string  `json:"slotMinTime"`
	SlotMaxTime   string  `json:"slotMaxTime"`
	HeaderToolbar Toolbar `json:"headerToolbar"`
	Editable      bool    `json:"editable"`
	Selectable    bool    `json:"selectable"`
}

// EntryProps carries extra per-entry data for the calendar widget.
type EntryProps struct {
	Participants string `json:"participants"`
}

// CalendarEntry is one event as the calendar widget draws it.
type CalendarEntry struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Start           string     `json:"start"`
	End             string     `json:"end"`
	ExtendedProps   EntryProps `json:"extendedProps"`
	BackgroundColor string     `json:"backgroundColor,omitempty"`
}

// Calendar is the page model of the schedule view.
type Calendar struct {
	Heading string          `json:"heading"`
	Loading bool            `json:"loading"`
	Options CalendarOptions `json:"options"`
	Events  []CalendarEntry `json:"events"`
}
