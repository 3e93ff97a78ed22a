// internal/loaner/domain.go
package loaner

// Attribute is a single named custom attribute on a remote record.
// ValueText carries the display form when the remote side reports one.
type Attribute struct {
	ID        int    `json:"ID"`
	Name      string `json:"Name"`
	Value     string `json:"Value"`
	ValueText string `json:"ValueText,omitempty"`
}

// AttributeList preserves the remote service's attribute ordering. At most
// one entry per name is authoritative: reads return the first match, and
// writes update the first match in place, appending only when the name is
// absent, so an update never produces two entries with the same name.
type AttributeList []Attribute

// Get returns the first attribute with the given name.
func (l AttributeList) Get(name string) (Attribute, bool) {
	for _, a := range l {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Text returns the display value of the named attribute, falling back to the
// raw value when no display form is set.
func (l AttributeList) Text(name string) string {
	a, ok := l.Get(name)
	if !ok {
		return ""
	}
	if a.ValueText != "" {
		return a.ValueText
	}
	return a.Value
}

// Set overwrites the value of the first attribute with the given name, or
// appends a new entry with the given attribute id when the name is absent.
func (l *AttributeList) Set(name string, id int, value string) {
	for i := range *l {
		if (*l)[i].Name == name {
			(*l)[i].Value = value
			return
		}
	}
	*l = append(*l, Attribute{ID: id, Name: name, Value: value})
}

// Device is a loaner hardware unit tracked in the remote asset service.
// Field names mirror the remote record so the client can round-trip it.
type Device struct {
	ID         int           `json:"ID"`
	Tag        string        `json:"Tag"`
	LocationID int           `json:"LocationID"`
	StatusID   int           `json:"StatusID"`
	OwnerUID   string        `json:"OwningCustomerID,omitempty"`
	Attributes AttributeList `json:"Attributes"`
}

// Ticket is a service-desk record carrying loan approval and term attributes.
type Ticket struct {
	ID            int           `json:"ID"`
	RequesterName string        `json:"RequestorName"`
	RequesterUID  string        `json:"RequestorUid"`
	StatusName    string        `json:"StatusName"`
	Attributes    AttributeList `json:"Attributes"`
}

// TicketAsset is a device reference already attached to a ticket.
type TicketAsset struct {
	ID   int    `json:"BackingItemID"`
	Name string `json:"Name"`
}

// Person is a requester or device owner in the remote directory.
type Person struct {
	UID      string `json:"UID"`
	Handle   string `json:"AlternateID"`
	FullName string `json:"FullName"`
}

// ApprovalClass is the decoded approval state of a loan-request ticket.
type ApprovalClass int

const (
	ApprovalPending ApprovalClass = iota
	ApprovalDenied
	ApprovedMac
	ApprovedWindows
)

func (c ApprovalClass) String() string {
	switch c {
	case ApprovalDenied:
		return "Denied"
	case ApprovedMac:
		return "Approved for Mac"
	case ApprovedWindows:
		return "Approved for Windows"
	default:
		return "Pending"
	}
}

// Approval decodes the ticket's approval-status attribute. Anything that is
// neither an approval nor an explicit denial counts as pending.
func (t *Ticket) Approval() ApprovalClass {
	switch t.Attributes.Text(approvalAttr) {
	case approvedMacValue:
		return ApprovedMac
	case approvedWindowsValue:
		return ApprovedWindows
	case deniedValue:
		return ApprovalDenied
	default:
		return ApprovalPending
	}
}

// DeviceRef identifies a device in an operation result.
type DeviceRef struct {
	Tag string `json:"tag"`
	ID  int    `json:"id"`
}

// TicketRef identifies a ticket in an operation result.
type TicketRef struct {
	ID int `json:"id"`
}

// LoanInfo describes the loan materialized by a successful checkout.
type LoanInfo struct {
	RequesterName string `json:"requester_name"`
	LoanDate      string `json:"loan_date"`
	Handle        string `json:"requester_handle"`
	RequesterUID  string `json:"requester_id"`
}

// CheckoutResult is returned on a successful checkout.
type CheckoutResult struct {
	Device DeviceRef `json:"device"`
	Loan   LoanInfo  `json:"loan"`
	Ticket TicketRef `json:"ticket"`
}

// OwnerRef identifies the person a device was checked in from.
type OwnerRef struct {
	Handle string `json:"handle"`
	UID    string `json:"id"`
}

// CheckinDevice identifies the device in a check-in result, echoing any
// caller-supplied comment recorded in the device notes.
type CheckinDevice struct {
	Tag     string `json:"tag"`
	ID      int    `json:"id"`
	Comment string `json:"comment,omitempty"`
}

// CheckinResult is returned on a successful check-in.
type CheckinResult struct {
	Device        CheckinDevice `json:"device"`
	PreviousOwner OwnerRef      `json:"previous_owner"`
}
