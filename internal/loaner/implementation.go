// internal/loaner/implementation.go
package loaner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Business constants for the Sites@Home loaner program.
const (
	requestTicketTitle = "Sites @ Home Request"
	responsibleGroup   = "ITS-SitesatHome"

	approvalAttr        = "sah_Approval Status"
	loanTermAttr        = "sah_Loan Length (Term)"
	loanDateAttr        = "sah_Loan Open Date"
	notesAttr           = "Notes"
	lastInventoriedAttr = "Last Inventoried"

	approvedMacValue     = "Approved for Mac"
	approvedWindowsValue = "Approved for Windows"
	deniedValue          = "Denied"

	statusAvailable       = "Available"
	statusOnLoan          = "On Loan"
	statusInStockReserved = "In Stock - Reserved"
	statusClosed          = "Closed"

	locationOffsite = "Offsite"
	locationReturn  = "MICHIGAN UNION"

	checkoutNote = "Checked out by Tech Consulting"
	checkinNote  = "Checked in by Tech Consulting"

	macTagPrefix = "SAHM"
	dateLayout   = "01/02/2006"
)

// requestTicketStatuses covers tickets auto-closed by the intake flow as
// well as still-open ones; approval state comes from the attribute, not the
// ticket status.
var requestTicketStatuses = []string{"Open", "Scheduled", "Closed"}

// service implements the Service interface.
type service struct {
	remote RemoteService
	tracer trace.Tracer
	now    func() time.Time
}

// NewService creates a new loaner workflow service instance.
func NewService(remote RemoteService) Service {
	return &service{
		remote: remote,
		tracer: otel.Tracer("loanerdesk/loaner"),
		now:    time.Now,
	}
}

type personResult struct {
	person *Person
	err    error
}

type deviceResult struct {
	device *Device
	err    error
}

// Checkout orchestrates the loan: validate, resolve person and device
// concurrently, run the eligibility guards in order, then commit the ticket
// and device mutations.
func (s *service) Checkout(ctx context.Context, handle, tag, comment string) (*CheckoutResult, error) {
	ctx, span := s.tracer.Start(ctx, "loaner.Checkout", trace.WithAttributes(
		attribute.String("loaner.uniqname", handle),
		attribute.String("loaner.tag", tag),
	))
	defer span.End()

	handle, err := ValidateHandle(handle)
	if err != nil {
		return nil, err
	}
	if err := ValidateTag(tag); err != nil {
		return nil, err
	}

	// The person and device lookups are independent, so they run
	// concurrently. Buffered channels let the loser of any abort be
	// discarded without leaking the goroutine.
	personCh := make(chan personResult, 1)
	deviceCh := make(chan deviceResult, 1)
	go func() {
		p, err := s.resolvePerson(ctx, handle)
		personCh <- personResult{person: p, err: err}
	}()
	go func() {
		d, err := s.resolveDevice(ctx, tag)
		deviceCh <- deviceResult{device: d, err: err}
	}()

	pr := <-personCh
	if pr.err != nil {
		return nil, pr.err
	}
	person := pr.person

	ticket, err := s.resolveRequestTicket(ctx, person)
	if err != nil {
		return nil, err
	}

	approval := ticket.Approval()
	switch approval {
	case ApprovalDenied:
		return nil, newError(KindLoanRequestDenied, "loan request was denied").
			With("ticket_id", strconv.Itoa(ticket.ID)).
			With("uniqname", handle)
	case ApprovedMac, ApprovedWindows:
		// eligible, keep going
	default:
		return nil, newError(KindNoLoanRequest, "loan request is not approved").
			With("ticket_id", strconv.Itoa(ticket.ID)).
			With("uniqname", handle)
	}

	attached, err := s.remote.TicketAssets(ctx, ticket.ID)
	if err != nil {
		return nil, s.transport(err, "listing ticket assets")
	}
	if len(attached) > 0 {
		fulfilled, err := s.remote.GetAsset(ctx, attached[0].ID)
		if err != nil {
			return nil, s.transport(err, "resolving attached asset")
		}
		return nil, newError(KindLoanAlreadyFulfilled, "ticket already has a device attached").
			With("ticket_id", strconv.Itoa(ticket.ID)).
			With("attached_tag", fulfilled.Tag)
	}

	// The device fetch was started up front but is only inspected now,
	// after the cheap ticket guards have passed.
	dr := <-deviceCh
	if dr.err != nil {
		return nil, dr.err
	}
	device := dr.device

	availableID, err := s.remote.StatusID(ctx, statusAvailable)
	if err != nil {
		return nil, s.transport(err, "resolving available status")
	}
	if device.StatusID != availableID {
		return nil, newError(KindAssetNotReadyToLoan, "device is not available for loan").
			With("tag", device.Tag)
	}

	if (approval == ApprovedMac) != IsMacTag(device.Tag) {
		return nil, newError(KindWrongAssetType, "device type does not match the approved loan").
			With("tag", device.Tag).
			With("approved_class", approval.String())
	}

	if err := s.remote.AttachAssetToTicket(ctx, ticket.ID, device.ID); err != nil {
		return nil, s.attachFailure(err, ticket.ID, device.Tag)
	}
	if err := s.remote.UpdateTicketStatus(ctx, ticket.ID, statusClosed, checkoutNote); err != nil {
		return nil, s.attachFailure(err, ticket.ID, device.Tag)
	}

	term := ticket.Attributes.Text(loanTermAttr)
	notes := fmt.Sprintf("On Loan to %s until %s (ticket %d)", handle, term, ticket.ID)
	if comment != "" {
		notes += " - " + comment
	}
	if err := s.inventoryDevice(ctx, device, locationOffsite, statusOnLoan, person.UID, notes); err != nil {
		// The ticket is already closed at this point; surface the
		// inconsistency rather than compensating.
		return nil, s.transport(err, "updating device record").
			With("ticket_id", strconv.Itoa(ticket.ID)).
			With("tag", device.Tag)
	}

	loanDate := ticket.Attributes.Text(loanDateAttr)
	if loanDate == "" {
		loanDate = s.now().Format(dateLayout)
	}

	return &CheckoutResult{
		Device: DeviceRef{Tag: device.Tag, ID: device.ID},
		Loan: LoanInfo{
			RequesterName: ticket.RequesterName,
			LoanDate:      loanDate,
			Handle:        handle,
			RequesterUID:  person.UID,
		},
		Ticket: TicketRef{ID: ticket.ID},
	}, nil
}

// CheckIn returns a device to stock, optionally attaching and closing a
// drop-off ticket.
func (s *service) CheckIn(ctx context.Context, tag, comment string, ticketID int) (*CheckinResult, error) {
	ctx, span := s.tracer.Start(ctx, "loaner.CheckIn", trace.WithAttributes(
		attribute.String("loaner.tag", tag),
	))
	defer span.End()

	if err := ValidateTag(tag); err != nil {
		return nil, err
	}

	device, err := s.resolveDevice(ctx, tag)
	if err != nil {
		return nil, err
	}

	availableID, err := s.remote.StatusID(ctx, statusAvailable)
	if err != nil {
		return nil, s.transport(err, "resolving available status")
	}
	if device.StatusID == availableID {
		return nil, newError(KindAssetAlreadyCheckedIn, "device is already checked in").
			With("tag", device.Tag)
	}

	var previous OwnerRef
	if device.OwnerUID != "" {
		owner, err := s.remote.GetPerson(ctx, device.OwnerUID)
		if err != nil {
			return nil, s.transport(err, "resolving previous owner")
		}
		previous = OwnerRef{Handle: owner.Handle, UID: owner.UID}
	}

	if ticketID != 0 {
		if err := s.remote.AttachAssetToTicket(ctx, ticketID, device.ID); err != nil {
			return nil, s.attachFailure(err, ticketID, device.Tag)
		}
		if err := s.remote.UpdateTicketStatus(ctx, ticketID, statusClosed, checkinNote); err != nil {
			return nil, s.attachFailure(err, ticketID, device.Tag)
		}
	}

	notes := checkinNote
	if comment != "" {
		notes += " - " + comment
	}
	if err := s.inventoryDevice(ctx, device, locationReturn, statusInStockReserved, "", notes); err != nil {
		return nil, s.transport(err, "updating device record").With("tag", device.Tag)
	}

	return &CheckinResult{
		Device:        CheckinDevice{Tag: device.Tag, ID: device.ID, Comment: comment},
		PreviousOwner: previous,
	}, nil
}

// resolvePerson finds exactly one person for a normalized handle.
func (s *service) resolvePerson(ctx context.Context, handle string) (*Person, error) {
	people, err := s.remote.SearchPeople(ctx, handle)
	if err != nil {
		return nil, s.transport(err, "searching people")
	}
	switch len(people) {
	case 0:
		return nil, newError(KindNoLoanRequest, "no person found for uniqname").
			With("uniqname", handle)
	case 1:
		return &people[0], nil
	default:
		return nil, newError(KindAmbiguousMatch, "multiple people match uniqname").
			With("uniqname", handle)
	}
}

// resolveDevice finds exactly one device for a tag and fetches its full
// record, attributes included.
func (s *service) resolveDevice(ctx context.Context, tag string) (*Device, error) {
	assets, err := s.remote.SearchAssets(ctx, tag)
	if err != nil {
		return nil, s.transport(err, "searching assets")
	}
	switch len(assets) {
	case 0:
		return nil, newError(KindAssetNotFound, "no asset found for tag").
			With("tag", tag)
	case 1:
		device, err := s.remote.GetAsset(ctx, assets[0].ID)
		if err != nil {
			return nil, s.transport(err, "fetching asset")
		}
		return device, nil
	default:
		return nil, newError(KindAmbiguousMatch, "multiple assets match tag").
			With("tag", tag)
	}
}

// resolveRequestTicket finds the single loan-request ticket for a person.
func (s *service) resolveRequestTicket(ctx context.Context, person *Person) (*Ticket, error) {
	tickets, err := s.remote.SearchTickets(ctx, TicketSearch{
		RequesterUID: person.UID,
		Statuses:     requestTicketStatuses,
		Title:        requestTicketTitle,
		Group:        responsibleGroup,
	})
	if err != nil {
		return nil, s.transport(err, "searching tickets")
	}
	switch len(tickets) {
	case 0:
		return nil, newError(KindNoLoanRequest, "no loan request ticket found").
			With("uniqname", person.Handle)
	case 1:
		ticket, err := s.remote.GetTicket(ctx, tickets[0].ID)
		if err != nil {
			return nil, s.transport(err, "fetching ticket")
		}
		return ticket, nil
	default:
		return nil, newError(KindAmbiguousMatch, "multiple loan request tickets found").
			With("uniqname", person.Handle)
	}
}

// inventoryDevice applies the device-side mutation: location, status, owner,
// notes, and a refreshed last-inventoried date. An empty ownerUID clears the
// owner. Attribute writes update in place when the name exists and append
// otherwise.
func (s *service) inventoryDevice(ctx context.Context, device *Device, locationName, statusName, ownerUID, notes string) error {
	locationID, err := s.remote.LocationID(ctx, locationName)
	if err != nil {
		return err
	}
	statusID, err := s.remote.StatusID(ctx, statusName)
	if err != nil {
		return err
	}
	device.LocationID = locationID
	device.StatusID = statusID
	device.OwnerUID = ownerUID

	notesID, err := s.attributeIDFor(ctx, device, notesAttr)
	if err != nil {
		return err
	}
	device.Attributes.Set(notesAttr, notesID, notes)

	invID, err := s.attributeIDFor(ctx, device, lastInventoriedAttr)
	if err != nil {
		return err
	}
	device.Attributes.Set(lastInventoriedAttr, invID, s.now().Format(dateLayout))

	return s.remote.UpdateAsset(ctx, device)
}

// attributeIDFor looks up the catalog id for an attribute name, but only
// when the device does not already carry the attribute; in-place updates
// keep the existing id.
func (s *service) attributeIDFor(ctx context.Context, device *Device, name string) (int, error) {
	if a, ok := device.Attributes.Get(name); ok {
		return a.ID, nil
	}
	return s.remote.AttributeID(ctx, name)
}

// transport wraps a remote-call failure, preserving an already-classified
// workflow error unchanged.
func (s *service) transport(err error, during string) *WorkflowError {
	var w *WorkflowError
	if errors.As(err, &w) {
		return w
	}
	return &WorkflowError{
		Kind:    KindTransportError,
		Message: "remote service call failed while " + during,
		Err:     err,
	}
}

// attachFailure classifies a failed ticket-side mutation.
func (s *service) attachFailure(err error, ticketID int, tag string) *WorkflowError {
	return (&WorkflowError{
		Kind:    KindAttachFailure,
		Message: "failed to attach device to ticket",
		Err:     err,
	}).With("ticket_id", strconv.Itoa(ticketID)).With("tag", tag)
}
