// internal/loaner/service.go
package loaner

import "context"

// Service defines the loaner workflow operations.
type Service interface {
	// Checkout loans the tagged device to the requester behind the handle,
	// attaching it to their approved loan-request ticket. A zero-value
	// comment adds nothing to the device notes.
	Checkout(ctx context.Context, handle, tag, comment string) (*CheckoutResult, error)

	// CheckIn returns the tagged device to stock. ticketID optionally names
	// a drop-off ticket to attach and close; zero means none was supplied.
	CheckIn(ctx context.Context, tag, comment string, ticketID int) (*CheckinResult, error)
}

// TicketSearch is the criteria for resolving tickets in the remote service.
type TicketSearch struct {
	RequesterUID string
	Statuses     []string
	Title        string
	Group        string
}

// RemoteService is the subset of the ticketing/asset service the workflow
// consumes. All authoritative state lives behind this interface; the
// workflow only reads records and requests mutations.
type RemoteService interface {
	SearchPeople(ctx context.Context, query string) ([]Person, error)
	GetPerson(ctx context.Context, uid string) (*Person, error)
	SearchAssets(ctx context.Context, tag string) ([]Device, error)
	GetAsset(ctx context.Context, id int) (*Device, error)
	SearchTickets(ctx context.Context, criteria TicketSearch) ([]Ticket, error)
	GetTicket(ctx context.Context, id int) (*Ticket, error)
	TicketAssets(ctx context.Context, ticketID int) ([]TicketAsset, error)
	UpdateAsset(ctx context.Context, device *Device) error
	UpdateTicketStatus(ctx context.Context, id int, status, note string) error
	AttachAssetToTicket(ctx context.Context, ticketID, assetID int) error
	StatusID(ctx context.Context, name string) (int, error)
	LocationID(ctx context.Context, name string) (int, error)
	AttributeID(ctx context.Context, name string) (int, error)
}
